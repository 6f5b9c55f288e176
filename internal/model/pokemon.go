package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// MaxDexNo is the default upper bound of the identity range.
const MaxDexNo = 1010

// Pokemon is one progressively populated entity record. Every field other
// than DexNo is optional until the collector fills it in.
type Pokemon struct {
	DexNo      int      `json:"dex_no"`
	Name       string   `json:"name,omitempty"`
	GenNo      *int     `json:"gen_no,omitempty"`
	Typing     []string `json:"typing,omitempty"`
	Related    Related  `json:"related,omitzero"`
	Pic        *string  `json:"pic,omitempty"`
	Color      *string  `json:"color,omitempty"`
	Stats      []Stat   `json:"stats,omitempty"`
	StatTotal  *int     `json:"stat_total,omitempty"`
	Matchups   Matchups `json:"matchups,omitempty"`
	AnimeCount *int     `json:"anime_count,omitempty"`
	MangaCount *int     `json:"manga_count,omitempty"`
}

// NewPokemon returns an empty record for the given identity.
func NewPokemon(dexNo int) *Pokemon {
	return &Pokemon{DexNo: dexNo}
}

// Clone returns a deep copy of the record.
func (p *Pokemon) Clone() *Pokemon {
	c := *p
	c.GenNo = clonePtr(p.GenNo)
	c.Pic = clonePtr(p.Pic)
	c.Color = clonePtr(p.Color)
	c.StatTotal = clonePtr(p.StatTotal)
	c.AnimeCount = clonePtr(p.AnimeCount)
	c.MangaCount = clonePtr(p.MangaCount)
	c.Typing = slices.Clone(p.Typing)
	c.Stats = slices.Clone(p.Stats)
	c.Related = Related{Set: p.Related.Set, IDs: slices.Clone(p.Related.IDs)}
	if p.Matchups != nil {
		c.Matchups = make(Matchups, len(p.Matchups))
		for k, v := range p.Matchups {
			c.Matchups[k] = slices.Clone(v)
		}
	}
	return &c
}

// Equal reports whether two records serialize identically.
func (p *Pokemon) Equal(other *Pokemon) bool {
	a, errA := json.Marshal(p)
	b, errB := json.Marshal(other)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// Normalize applies the record style guide in place: non-name strings are
// capitalized per underscore-separated word, stat labels are canonicalized,
// and stats are ordered by value descending.
func (p *Pokemon) Normalize() {
	for i, t := range p.Typing {
		p.Typing[i] = styleWord(t)
	}
	if p.Color != nil {
		c := styleWord(*p.Color)
		p.Color = &c
	}
	for i := range p.Stats {
		p.Stats[i].Name = CanonicalStatName(p.Stats[i].Name)
	}
	slices.SortStableFunc(p.Stats, func(a, b Stat) int { return b.Value - a.Value })
	for k, types := range p.Matchups {
		for i, t := range types {
			p.Matchups[k][i] = styleWord(t)
		}
	}
}

func styleWord(s string) string {
	parts := strings.Split(strings.ToLower(s), "_")
	for i, part := range parts {
		if part == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(part)
		parts[i] = string(unicode.ToUpper(r)) + part[size:]
	}
	return strings.Join(parts, "")
}

// Related is the evolutionary link list. Set distinguishes "never collected"
// from a collected null, which marks a terminal entity with no relations.
type Related struct {
	Set bool
	IDs []int
}

// RelatedTo returns a collected link list.
func RelatedTo(ids ...int) Related {
	if ids == nil {
		ids = []int{}
	}
	return Related{Set: true, IDs: ids}
}

// Terminal returns a collected null link list.
func Terminal() Related {
	return Related{Set: true}
}

// IsZero reports whether the link list was never collected.
func (r Related) IsZero() bool { return !r.Set }

// IsTerminal reports whether the entity has no evolutionary relations.
func (r Related) IsTerminal() bool { return r.Set && r.IDs == nil }

func (r Related) MarshalJSON() ([]byte, error) {
	if r.IDs == nil {
		return []byte("null"), nil
	}
	return json.Marshal(r.IDs)
}

func (r *Related) UnmarshalJSON(data []byte) error {
	r.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		r.IDs = nil
		return nil
	}
	var ids []int
	if err := json.Unmarshal(data, &ids); err != nil {
		return eris.Wrap(err, "related: decode")
	}
	if ids == nil {
		ids = []int{}
	}
	r.IDs = ids
	return nil
}

// Stat is one (name, value) base stat pair.
type Stat struct {
	Name  string
	Value int
}

func (s Stat) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{s.Name, s.Value})
}

func (s *Stat) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return eris.Wrap(err, "stat: decode pair")
	}
	if len(pair) != 2 {
		return eris.Errorf("stat: expected 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &s.Name); err != nil {
		return eris.Wrap(err, "stat: decode name")
	}
	if err := json.Unmarshal(pair[1], &s.Value); err != nil {
		return eris.Wrap(err, "stat: decode value")
	}
	return nil
}

var statNames = map[string]string{
	"hp":      "Hp",
	"attack":  "Attack",
	"defense": "Defense",
	"spatk":   "SpAtk",
	"sp_atk":  "SpAtk",
	"spdef":   "SpDef",
	"sp_def":  "SpDef",
	"speed":   "Speed",
}

// CanonicalStatName maps a scraped stat label onto the stable stat name set.
// Unknown labels fall back to the style guide form.
func CanonicalStatName(label string) string {
	key := strings.ToLower(strings.TrimSpace(label))
	if name, ok := statNames[key]; ok {
		return name
	}
	return styleWord(strings.ReplaceAll(key, " ", "_"))
}

// Matchup multiplier classes, in percent.
const (
	MatchupImmune    = "0"
	MatchupQuarter   = "25"
	MatchupHalf      = "50"
	MatchupDouble    = "200"
	MatchupQuadruple = "400"
)

// MatchupClasses lists the damage-multiplier buckets in ascending order.
func MatchupClasses() []string {
	return []string{MatchupImmune, MatchupQuarter, MatchupHalf, MatchupDouble, MatchupQuadruple}
}

// Matchups maps a damage-multiplier class to the attacking types in it.
type Matchups map[string][]string

// String renders the identity as the zero-padded dex number used in logs.
func (p *Pokemon) String() string {
	if p.Name == "" {
		return fmt.Sprintf("#%04d", p.DexNo)
	}
	return fmt.Sprintf("#%04d %s", p.DexNo, p.Name)
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
