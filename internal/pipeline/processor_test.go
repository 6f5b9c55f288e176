package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dex-cli/internal/collect"
	"github.com/sells-group/dex-cli/internal/merge"
	"github.com/sells-group/dex-cli/internal/model"
	"github.com/sells-group/dex-cli/internal/record"
)

// fakeCollector returns canned per-group results.
type fakeCollector struct {
	name     string
	openErr  error
	results  map[model.FieldGroup]collect.Result
	opens    int
	collects []model.FieldGroup
}

func (f *fakeCollector) Open(_ context.Context, dexNo int) (*collect.Pages, error) {
	f.opens++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &collect.Pages{DexNo: dexNo, Name: f.name}, nil
}

func (f *fakeCollector) Collect(_ context.Context, g model.FieldGroup, p *collect.Pages) collect.Result {
	f.collects = append(f.collects, g)
	res, ok := f.results[g]
	if !ok {
		return collect.Result{Values: model.NewPokemon(p.DexNo)}
	}
	v := res.Values.Clone()
	v.DexNo = p.DexNo
	return collect.Result{Values: v, Degraded: res.Degraded}
}

func fullResults() map[model.FieldGroup]collect.Result {
	ok := func(p *model.Pokemon) collect.Result { return collect.Result{Values: p} }
	return map[model.FieldGroup]collect.Result{
		model.GroupAppearances: ok(&model.Pokemon{AnimeCount: model.Ptr(12), MangaCount: model.Ptr(4)}),
		model.GroupMatchups: ok(&model.Pokemon{Matchups: model.Matchups{
			model.MatchupImmune: {}, model.MatchupQuarter: {"Grass"}, model.MatchupHalf: {"Water"},
			model.MatchupDouble: {"Fire"}, model.MatchupQuadruple: {},
		}}),
		model.GroupStats: ok(&model.Pokemon{
			Stats:     []model.Stat{{Name: "HP", Value: 45}, {Name: "SpAtk", Value: 65}},
			StatTotal: model.Ptr(318),
		}),
		model.GroupColor:   ok(&model.Pokemon{Color: model.Ptr("Green")}),
		model.GroupTyping:  ok(&model.Pokemon{Typing: []string{"Grass", "Poison"}, GenNo: model.Ptr(1)}),
		model.GroupRelated: ok(&model.Pokemon{Related: model.RelatedTo(1, 2, 3)}),
		model.GroupArtwork: ok(&model.Pokemon{Pic: model.Ptr("./pics/1.jpg")}),
	}
}

// countingStore wraps a FileStore and counts saves.
type countingStore struct {
	*record.FileStore
	saves   int
	saveErr error
}

func (c *countingStore) Save(ctx context.Context, rec *model.Pokemon) error {
	c.saves++
	if c.saveErr != nil {
		return c.saveErr
	}
	return c.FileStore.Save(ctx, rec)
}

func newCountingStore(t *testing.T) *countingStore {
	t.Helper()
	fs, err := record.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return &countingStore{FileStore: fs}
}

func TestProcess_FreshRecord(t *testing.T) {
	st := newCountingStore(t)
	col := &fakeCollector{name: "Bulbasaur", results: fullResults()}
	p := NewProcessor(st, col, merge.DefaultPolicy(), false)

	out := p.Process(context.Background(), 1)
	assert.Equal(t, model.StatusSuccess, out.Status)
	assert.Equal(t, "Bulbasaur", out.Name)
	assert.True(t, out.Wrote)
	assert.Equal(t, 1, st.saves)
	assert.Equal(t, model.AllGroups(), col.collects, "fixed collection order")

	rec, found, err := st.Load(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, found)
	for _, g := range model.AllGroups() {
		assert.True(t, g.Present(rec), "group %s", g)
	}
	assert.Equal(t, []model.Stat{{Name: "SpAtk", Value: 65}, {Name: "Hp", Value: 45}}, rec.Stats)
}

func TestProcess_SecondPassIsNoUpdate(t *testing.T) {
	st := newCountingStore(t)
	col := &fakeCollector{name: "Bulbasaur", results: fullResults()}
	p := NewProcessor(st, col, merge.DefaultPolicy(), false)

	require.True(t, p.Process(context.Background(), 1).Wrote)
	before, err := os.ReadFile(st.Path(1))
	require.NoError(t, err)

	col.collects = nil
	out := p.Process(context.Background(), 1)
	assert.Equal(t, model.StatusNoUpdate, out.Status)
	assert.False(t, out.Wrote)
	assert.Equal(t, 1, st.saves)
	assert.Equal(t, []model.FieldGroup{model.GroupMatchups}, col.collects, "only the always-refreshed group")
	assert.Equal(t, model.GroupSkipped, out.Groups[model.GroupColor])

	after, err := os.ReadFile(st.Path(1))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestProcess_RefreshedMatchupsChangeIsWritten(t *testing.T) {
	st := newCountingStore(t)
	col := &fakeCollector{name: "Bulbasaur", results: fullResults()}
	p := NewProcessor(st, col, merge.DefaultPolicy(), false)
	require.True(t, p.Process(context.Background(), 1).Wrote)

	col.results[model.GroupMatchups] = collect.Result{Values: &model.Pokemon{Matchups: model.Matchups{
		model.MatchupDouble: {"Fire", "Ice"},
	}}}
	out := p.Process(context.Background(), 1)
	assert.Equal(t, model.StatusSuccess, out.Status)
	assert.True(t, out.Wrote)

	rec, _, err := st.Load(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Fire", "Ice"}, rec.Matchups[model.MatchupDouble])
}

func TestProcess_DegradedGroupIsRetriedNextRun(t *testing.T) {
	st := newCountingStore(t)
	results := fullResults()
	results[model.GroupColor] = collect.Result{Values: &model.Pokemon{}, Degraded: []string{model.LabelColor}}
	col := &fakeCollector{name: "Bulbasaur", results: results}
	p := NewProcessor(st, col, merge.DefaultPolicy(), false)

	out := p.Process(context.Background(), 1)
	assert.Equal(t, model.StatusWarning, out.Status)
	assert.Equal(t, []string{model.LabelColor}, out.Degraded)
	assert.Equal(t, model.GroupDegraded, out.Groups[model.GroupColor])
	assert.True(t, out.Wrote)

	rec, _, err := st.Load(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, rec.Color)

	col.results = fullResults()
	col.collects = nil
	out = p.Process(context.Background(), 1)
	assert.Equal(t, model.StatusSuccess, out.Status)
	assert.Contains(t, col.collects, model.GroupColor)

	rec, _, err = st.Load(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, rec.Color)
	assert.Equal(t, "Green", *rec.Color)
}

func TestProcess_NameResolutionFailure(t *testing.T) {
	st := newCountingStore(t)
	col := &fakeCollector{openErr: collect.ErrNameResolution, results: fullResults()}
	p := NewProcessor(st, col, merge.DefaultPolicy(), true)

	out := p.Process(context.Background(), 5)
	assert.Equal(t, model.StatusFailure, out.Status)
	assert.Empty(t, out.Name)
	assert.ErrorIs(t, out.Err, collect.ErrNameResolution)
	assert.Empty(t, col.collects)
	assert.Zero(t, st.saves)

	_, err := os.Stat(st.Path(5))
	assert.True(t, os.IsNotExist(err))
}

func TestProcess_SaveFailure(t *testing.T) {
	st := newCountingStore(t)
	st.saveErr = errors.New("disk full")
	col := &fakeCollector{name: "Bulbasaur", results: fullResults()}
	p := NewProcessor(st, col, merge.DefaultPolicy(), false)

	out := p.Process(context.Background(), 1)
	assert.Equal(t, model.StatusFailure, out.Status)
	assert.False(t, out.Wrote)
	assert.Contains(t, out.Degraded, "Could not write to 1.json")
}

func TestProcess_CorruptRecordFails(t *testing.T) {
	st := newCountingStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(st.Dir(), "3.json"), []byte("{not json"), 0o644))
	col := &fakeCollector{name: "Venusaur", results: fullResults()}
	p := NewProcessor(st, col, merge.DefaultPolicy(), false)

	out := p.Process(context.Background(), 3)
	assert.Equal(t, model.StatusFailure, out.Status)
	assert.Zero(t, col.opens)
	assert.Zero(t, st.saves)
}

func TestProcess_ForceRewrite(t *testing.T) {
	st := newCountingStore(t)
	col := &fakeCollector{name: "Bulbasaur", results: fullResults()}
	require.True(t, NewProcessor(st, col, merge.DefaultPolicy(), false).Process(context.Background(), 1).Wrote)

	out := NewProcessor(st, col, merge.Policy{}, true).Process(context.Background(), 1)
	assert.Equal(t, model.StatusNoUpdate, out.Status)
	assert.True(t, out.Wrote)
	assert.Equal(t, 2, st.saves)
}

func TestProcess_ForceUpdateKeepsPriorOnDegrade(t *testing.T) {
	st := newCountingStore(t)
	col := &fakeCollector{name: "Bulbasaur", results: fullResults()}
	require.True(t, NewProcessor(st, col, merge.DefaultPolicy(), false).Process(context.Background(), 1).Wrote)

	col.results[model.GroupStats] = collect.Result{
		Values:   &model.Pokemon{StatTotal: model.Ptr(320)},
		Degraded: []string{model.LabelStats},
	}
	col.collects = nil
	out := NewProcessor(st, col, merge.Policy{ForceUpdate: true}, false).Process(context.Background(), 1)
	assert.Equal(t, model.StatusWarning, out.Status)
	assert.Equal(t, model.AllGroups(), col.collects)

	rec, _, err := st.Load(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, rec.Stats, 2, "prior stats kept")
	assert.Equal(t, 320, *rec.StatTotal)
}

func TestProcess_CancelledBeforeSave(t *testing.T) {
	st := newCountingStore(t)
	col := &fakeCollector{name: "Bulbasaur", results: fullResults()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := NewProcessor(st, col, merge.DefaultPolicy(), false).Process(ctx, 1)
	assert.Equal(t, model.StatusFailure, out.Status)
	assert.Zero(t, st.saves)
}
