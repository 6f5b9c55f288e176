// Package merge decides which field groups of a partially populated record
// need collecting and folds freshly collected values back into the record.
package merge

import (
	"slices"

	"github.com/sells-group/dex-cli/internal/model"
)

// Policy is the partial-update policy for one run.
type Policy struct {
	// ForceUpdate re-collects every group regardless of presence.
	ForceUpdate bool
	// AlwaysRefresh lists groups that are re-collected on every run.
	AlwaysRefresh []model.FieldGroup
}

// DefaultPolicy refreshes type matchups every run and otherwise only fills
// groups that are entirely absent.
func DefaultPolicy() Policy {
	return Policy{AlwaysRefresh: []model.FieldGroup{model.GroupMatchups}}
}

// Forced reports whether the group is re-collected regardless of presence.
func (p Policy) Forced(g model.FieldGroup) bool {
	return p.ForceUpdate || slices.Contains(p.AlwaysRefresh, g)
}

// ShouldFetch reports whether the collector must be invoked for the group.
// A group counts as present if any of its member fields is set, so it is only
// recomputed when none are (unless forced).
func (p Policy) ShouldFetch(rec *model.Pokemon, g model.FieldGroup) bool {
	return p.Forced(g) || !g.Present(rec)
}

// Apply copies the group's member fields that were successfully collected
// into rec. Members that failed to collect keep whatever rec already held.
func Apply(rec *model.Pokemon, g model.FieldGroup, fetched *model.Pokemon) {
	if fetched == nil {
		return
	}
	switch g {
	case model.GroupAppearances:
		setIf(&rec.AnimeCount, fetched.AnimeCount)
		setIf(&rec.MangaCount, fetched.MangaCount)
	case model.GroupMatchups:
		if fetched.Matchups != nil {
			rec.Matchups = fetched.Matchups
		}
	case model.GroupStats:
		if fetched.Stats != nil {
			rec.Stats = fetched.Stats
		}
		setIf(&rec.StatTotal, fetched.StatTotal)
	case model.GroupColor:
		setIf(&rec.Color, fetched.Color)
	case model.GroupTyping:
		if fetched.Typing != nil {
			rec.Typing = fetched.Typing
		}
		setIf(&rec.GenNo, fetched.GenNo)
	case model.GroupRelated:
		if fetched.Related.Set {
			rec.Related = fetched.Related
		}
	case model.GroupArtwork:
		setIf(&rec.Pic, fetched.Pic)
	}
}

func setIf[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}
