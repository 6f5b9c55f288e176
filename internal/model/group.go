package model

import (
	"github.com/rotisserie/eris"
)

// FieldGroup tags a cluster of record fields that are fetched, merged, and
// degraded together.
type FieldGroup string

const (
	GroupAppearances FieldGroup = "appearances"
	GroupMatchups    FieldGroup = "matchups"
	GroupStats       FieldGroup = "stats"
	GroupColor       FieldGroup = "color"
	GroupTyping      FieldGroup = "typing"
	GroupRelated     FieldGroup = "related"
	GroupArtwork     FieldGroup = "artwork"
)

// AllGroups returns every field group in collection order.
func AllGroups() []FieldGroup {
	return []FieldGroup{
		GroupAppearances,
		GroupMatchups,
		GroupStats,
		GroupColor,
		GroupTyping,
		GroupRelated,
		GroupArtwork,
	}
}

// ParseFieldGroup resolves a group tag from configuration.
func ParseFieldGroup(s string) (FieldGroup, error) {
	for _, g := range AllGroups() {
		if string(g) == s {
			return g, nil
		}
	}
	return "", eris.Errorf("unknown field group %q", s)
}

// Fields returns the JSON names of the record fields that belong to the group.
func (g FieldGroup) Fields() []string {
	switch g {
	case GroupAppearances:
		return []string{"anime_count", "manga_count"}
	case GroupMatchups:
		return []string{"matchups"}
	case GroupStats:
		return []string{"stats", "stat_total"}
	case GroupColor:
		return []string{"color"}
	case GroupTyping:
		return []string{"typing", "gen_no"}
	case GroupRelated:
		return []string{"related"}
	case GroupArtwork:
		return []string{"pic"}
	default:
		return nil
	}
}

// Present reports whether any member field of the group is set on the record.
func (g FieldGroup) Present(p *Pokemon) bool {
	switch g {
	case GroupAppearances:
		return p.AnimeCount != nil || p.MangaCount != nil
	case GroupMatchups:
		return p.Matchups != nil
	case GroupStats:
		return p.Stats != nil || p.StatTotal != nil
	case GroupColor:
		return p.Color != nil
	case GroupTyping:
		return p.Typing != nil || p.GenNo != nil
	case GroupRelated:
		return p.Related.Set
	case GroupArtwork:
		return p.Pic != nil
	default:
		return false
	}
}

// Degradation labels written to the run log when a field fails to parse.
const (
	LabelAnime     = "Anime Appearances"
	LabelManga     = "Manga Appearances"
	LabelMatchups  = "Type Matchups"
	LabelStats     = "Stats"
	LabelStatTotal = "Base Stat Total"
	LabelColor     = "Color"
	LabelTyping    = "Typing"
	LabelGen       = "Generation"
	LabelRelated   = "Related"
	LabelArtwork   = "Artwork"
)

// Group is one evolutionary family of full records, in link order.
type Group []Pokemon

// DexNos returns the identities in the group.
func (g Group) DexNos() []int {
	ids := make([]int, len(g))
	for i, p := range g {
		ids[i] = p.DexNo
	}
	return ids
}
