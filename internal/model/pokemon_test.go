package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPokemon_JSON_OmitsAbsentFields(t *testing.T) {
	p := NewPokemon(25)
	p.Name = "Pikachu"

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"dex_no":25,"name":"Pikachu"}`, string(data))
}

func TestRelated_TriState(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantSet    bool
		wantIDs    []int
		wantOutput string
	}{
		{name: "absent", input: `{"dex_no":1}`, wantSet: false, wantOutput: `{"dex_no":1}`},
		{name: "terminal", input: `{"dex_no":1,"related":null}`, wantSet: true, wantOutput: `{"dex_no":1,"related":null}`},
		{name: "list", input: `{"dex_no":1,"related":[1,2,3]}`, wantSet: true, wantIDs: []int{1, 2, 3}, wantOutput: `{"dex_no":1,"related":[1,2,3]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Pokemon
			require.NoError(t, json.Unmarshal([]byte(tt.input), &p))
			assert.Equal(t, tt.wantSet, p.Related.Set)
			assert.Equal(t, tt.wantIDs, p.Related.IDs)

			out, err := json.Marshal(&p)
			require.NoError(t, err)
			assert.JSONEq(t, tt.wantOutput, string(out))
		})
	}
}

func TestRelated_Terminal(t *testing.T) {
	assert.True(t, Terminal().IsTerminal())
	assert.False(t, RelatedTo(1, 2).IsTerminal())
	assert.False(t, Related{}.IsTerminal())
	assert.True(t, Related{}.IsZero())
}

func TestStat_PairEncoding(t *testing.T) {
	data, err := json.Marshal([]Stat{{Name: "Attack", Value: 130}})
	require.NoError(t, err)
	assert.JSONEq(t, `[["Attack",130]]`, string(data))

	var stats []Stat
	require.NoError(t, json.Unmarshal([]byte(`[["Hp",45],["Speed",45]]`), &stats))
	assert.Equal(t, []Stat{{Name: "Hp", Value: 45}, {Name: "Speed", Value: 45}}, stats)
}

func TestStat_RejectsMalformedPair(t *testing.T) {
	var s Stat
	err := json.Unmarshal([]byte(`["Hp"]`), &s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 elements")
}

func TestPokemon_Normalize(t *testing.T) {
	p := &Pokemon{
		DexNo:    6,
		Name:     "Charizard",
		Typing:   []string{"FIRE", "flying"},
		Color:    Ptr("red"),
		Stats:    []Stat{{Name: "HP", Value: 78}, {Name: "SpAtk", Value: 109}, {Name: "Speed", Value: 100}},
		Matchups: Matchups{MatchupDouble: {"water", "ROCK"}},
	}

	p.Normalize()

	assert.Equal(t, []string{"Fire", "Flying"}, p.Typing)
	assert.Equal(t, "Red", *p.Color)
	assert.Equal(t, []Stat{{Name: "SpAtk", Value: 109}, {Name: "Speed", Value: 100}, {Name: "Hp", Value: 78}}, p.Stats)
	assert.Equal(t, []string{"Water", "Rock"}, p.Matchups[MatchupDouble])
	assert.Equal(t, "Charizard", p.Name)
}

func TestPokemon_NormalizeMultiByteInitial(t *testing.T) {
	p := &Pokemon{DexNo: 1, Typing: []string{"ÉLAN", "ünder_world"}, Color: Ptr("ébène")}

	p.Normalize()

	assert.Equal(t, []string{"Élan", "ÜnderWorld"}, p.Typing)
	assert.Equal(t, "Ébène", *p.Color)
}

func TestCanonicalStatName(t *testing.T) {
	assert.Equal(t, "Hp", CanonicalStatName("HP"))
	assert.Equal(t, "SpDef", CanonicalStatName("SpDef"))
	assert.Equal(t, "SpAtk", CanonicalStatName("sp_atk"))
	assert.Equal(t, "BonusStat", CanonicalStatName("bonus stat"))
}

func TestPokemon_CloneIsDeep(t *testing.T) {
	orig := &Pokemon{
		DexNo:    1,
		Typing:   []string{"Grass"},
		GenNo:    Ptr(1),
		Related:  RelatedTo(1, 2, 3),
		Matchups: Matchups{MatchupHalf: {"Water"}},
	}
	c := orig.Clone()
	c.Typing[0] = "Fire"
	*c.GenNo = 9
	c.Related.IDs[0] = 99
	c.Matchups[MatchupHalf][0] = "Ice"

	assert.Equal(t, "Grass", orig.Typing[0])
	assert.Equal(t, 1, *orig.GenNo)
	assert.Equal(t, 1, orig.Related.IDs[0])
	assert.Equal(t, "Water", orig.Matchups[MatchupHalf][0])
	assert.True(t, orig.Equal(orig.Clone()))
	assert.False(t, orig.Equal(c))
}

func TestPokemon_String(t *testing.T) {
	assert.Equal(t, "#0007", NewPokemon(7).String())
	assert.Equal(t, "#0007 Squirtle", (&Pokemon{DexNo: 7, Name: "Squirtle"}).String())
}
