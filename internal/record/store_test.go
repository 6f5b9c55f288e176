package record

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dex-cli/internal/model"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	return s
}

func TestFileStore_LoadMissing(t *testing.T) {
	s := newTestStore(t)

	rec, found, err := s.Load(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 42, rec.DexNo)
	assert.Empty(t, rec.Name)
}

func TestFileStore_SaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &model.Pokemon{
		DexNo:   1,
		Name:    "Bulbasaur",
		Typing:  []string{"grass", "poison"},
		GenNo:   model.Ptr(1),
		Related: model.RelatedTo(1, 2, 3),
		Stats:   []model.Stat{{Name: "HP", Value: 45}, {Name: "SpAtk", Value: 65}},
	}
	require.NoError(t, s.Save(ctx, rec))

	got, found, err := s.Load(ctx, 1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Bulbasaur", got.Name)
	assert.Equal(t, []string{"Grass", "Poison"}, got.Typing)
	assert.Equal(t, []int{1, 2, 3}, got.Related.IDs)
	assert.Equal(t, []model.Stat{{Name: "SpAtk", Value: 65}, {Name: "Hp", Value: 45}}, got.Stats)
	assert.Nil(t, got.Color)
}

func TestFileStore_FileLayout(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(context.Background(), &model.Pokemon{DexNo: 7, Name: "Squirtle", Related: model.Terminal()}))

	data, err := os.ReadFile(filepath.Join(s.Dir(), "7.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"dex_no":7,"name":"Squirtle","related":null}`, string(data))
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(3), []byte("{not json"), 0o644))

	_, _, err := s.Load(context.Background(), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode 3")
}

func TestFileStore_List(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, id := range []int{10, 2, 33} {
		require.NoError(t, s.Save(ctx, model.NewPokemon(id)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0o644))

	ids, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 10, 33}, ids)
}
