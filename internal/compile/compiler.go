// Package compile partitions populated records into evolutionary-family
// groups and writes the merged exports.
package compile

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dex-cli/internal/model"
	"github.com/sells-group/dex-cli/internal/record"
)

// ErrorPolicy decides what a validation failure does to the compile.
type ErrorPolicy int

const (
	// ContinueOnError logs the failure, drops that group, and moves on.
	ContinueOnError ErrorPolicy = iota
	// FailFast stops the compile at the first failure.
	FailFast
)

// Rejection is a group dropped because one of its records failed validation.
type Rejection struct {
	Anchor  int    `json:"anchor"`
	Members []int  `json:"members"`
	Reason  string `json:"reason"`
}

// Result is the output of one compile.
type Result struct {
	Groups     []model.Group `json:"groups"`
	Rejections []Rejection   `json:"rejections,omitempty"`
	// Unlinked lists anchors whose related list named identities already
	// claimed by an earlier group. These are families split by a link that
	// is not reciprocated; they are reported, not repaired.
	Unlinked []int `json:"unlinked,omitempty"`
	// Pending lists the identities never reached when compilation stopped early.
	Pending []int `json:"pending,omitempty"`
}

// Compiler builds groups from the record store.
type Compiler struct {
	loader record.Loader
	policy ErrorPolicy
}

// NewCompiler creates a Compiler.
func NewCompiler(loader record.Loader, policy ErrorPolicy) *Compiler {
	return &Compiler{loader: loader, policy: policy}
}

// Compile drains remaining, taking the smallest identity as each group's
// anchor. A null or absent related list yields a singleton. Otherwise every
// listed identity still in remaining joins the group in list order;
// identities already grouped are skipped. The anchor is always removed and
// leads its group when its own list omits it.
func (c *Compiler) Compile(ctx context.Context, remaining *Remaining) (*Result, error) {
	res := &Result{}

	for {
		if err := ctx.Err(); err != nil {
			res.Pending = remaining.IDs()
			zap.L().Warn("compile: interrupted",
				zap.Int("groups", len(res.Groups)),
				zap.Int("pending", remaining.Len()),
			)
			return res, err
		}
		anchor, ok := remaining.Next()
		if !ok {
			break
		}

		group, members, split, err := c.build(ctx, anchor, remaining)
		if split {
			res.Unlinked = append(res.Unlinked, anchor)
		}
		if err != nil {
			var verr *ValidationError
			if !errors.As(err, &verr) || c.policy == FailFast {
				return res, eris.Wrapf(err, "compile: group at %d", anchor)
			}
			zap.L().Warn("compile: group rejected",
				zap.Int("anchor", anchor),
				zap.Ints("members", members),
				zap.Error(err),
			)
			res.Rejections = append(res.Rejections, Rejection{Anchor: anchor, Members: members, Reason: err.Error()})
			continue
		}
		res.Groups = append(res.Groups, group)
	}

	zap.L().Info("compile: complete",
		zap.Int("groups", len(res.Groups)),
		zap.Int("rejected", len(res.Rejections)),
		zap.Int("unlinked", len(res.Unlinked)),
	)
	return res, nil
}

func (c *Compiler) build(ctx context.Context, anchor int, remaining *Remaining) (model.Group, []int, bool, error) {
	first, err := c.load(ctx, anchor)
	if err != nil {
		remaining.Remove(anchor)
		return nil, []int{anchor}, false, err
	}

	if !first.Related.Set || first.Related.IsTerminal() {
		remaining.Remove(anchor)
		return model.Group{*first}, []int{anchor}, false, nil
	}

	var ids []int
	split := false
	for _, id := range first.Related.IDs {
		if remaining.Remove(id) {
			ids = append(ids, id)
		} else if id != anchor && remaining.Known(id) {
			split = true
		}
	}
	if remaining.Remove(anchor) {
		ids = append([]int{anchor}, ids...)
	}

	group := make(model.Group, 0, len(ids))
	for _, id := range ids {
		if id == anchor {
			group = append(group, *first)
			continue
		}
		rec, err := c.load(ctx, id)
		if err != nil {
			return nil, ids, split, err
		}
		group = append(group, *rec)
	}
	return group, ids, split, nil
}

func (c *Compiler) load(ctx context.Context, dexNo int) (*model.Pokemon, error) {
	rec, found, err := c.loader.Load(ctx, dexNo)
	if err != nil {
		return nil, eris.Wrapf(err, "compile: load %d", dexNo)
	}
	if err := Validate(dexNo, rec, found); err != nil {
		return nil, err
	}
	return rec, nil
}
