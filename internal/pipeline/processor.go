// Package pipeline drives per-identity collection and merging.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dex-cli/internal/collect"
	"github.com/sells-group/dex-cli/internal/merge"
	"github.com/sells-group/dex-cli/internal/model"
	"github.com/sells-group/dex-cli/internal/record"
)

// Collector resolves an identity's pages and extracts field groups.
type Collector interface {
	Open(ctx context.Context, dexNo int) (*collect.Pages, error)
	Collect(ctx context.Context, group model.FieldGroup, pages *collect.Pages) collect.Result
}

// Records loads and saves per-identity records.
type Records interface {
	record.Loader
	record.Saver
}

// Processor runs one identity through load, collect, merge, and save.
type Processor struct {
	records      Records
	collector    Collector
	policy       merge.Policy
	forceRewrite bool
}

// NewProcessor creates a Processor. With forceRewrite the record is saved
// even when nothing changed.
func NewProcessor(records Records, collector Collector, policy merge.Policy, forceRewrite bool) *Processor {
	return &Processor{
		records:      records,
		collector:    collector,
		policy:       policy,
		forceRewrite: forceRewrite,
	}
}

// Process handles a single identity. Every failure is folded into the
// returned outcome.
func (p *Processor) Process(ctx context.Context, dexNo int) model.Outcome {
	out := model.NewOutcome(dexNo)
	log := zap.L().With(zap.Int("dex_no", dexNo))

	loaded, _, err := p.records.Load(ctx, dexNo)
	if err != nil {
		log.Error("pipeline: load record", zap.Error(err))
		out.Fail(eris.Wrapf(err, "load record %d", dexNo))
		return *out
	}

	pages, err := p.collector.Open(ctx, dexNo)
	if err != nil {
		log.Warn("pipeline: name resolution failed", zap.Error(err))
		out.Fail(err)
		return *out
	}
	out.Name = pages.Name

	rec := loaded.Clone()
	rec.Name = pages.Name

	for _, g := range model.AllGroups() {
		if !p.policy.ShouldFetch(rec, g) {
			out.Groups[g] = model.GroupSkipped
			continue
		}

		res := p.collector.Collect(ctx, g, pages)
		merge.Apply(rec, g, res.Values)

		if res.IsDegraded() {
			log.Debug("pipeline: group degraded",
				zap.String("group", string(g)),
				zap.Strings("fields", g.Fields()),
				zap.Strings("labels", res.Degraded),
			)
			out.Groups[g] = model.GroupDegraded
			for _, label := range res.Degraded {
				out.Degrade(label)
			}
			continue
		}
		out.Groups[g] = model.GroupFetched
	}

	if err := ctx.Err(); err != nil {
		out.Fail(err)
		return *out
	}

	rec.Normalize()
	if !out.Fetched() || rec.Equal(loaded) {
		out.Mark(model.StatusNoUpdate)
		if !p.forceRewrite {
			return *out
		}
	}

	if err := p.records.Save(ctx, rec); err != nil {
		log.Error("pipeline: save record", zap.Error(err))
		out.Degraded = append(out.Degraded, fmt.Sprintf("Could not write to %d.json", dexNo))
		out.Fail(err)
		return *out
	}
	out.Wrote = true
	return *out
}
