package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dex-cli/internal/model"
	"github.com/sells-group/dex-cli/internal/store"
)

type mapLoader map[int]*model.Pokemon

func (m mapLoader) Load(_ context.Context, dexNo int) (*model.Pokemon, bool, error) {
	if rec, ok := m[dexNo]; ok {
		return rec, true, nil
	}
	return model.NewPokemon(dexNo), false, nil
}

func (m mapLoader) List() ([]int, error) {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

type mockRuns struct {
	mock.Mock
}

func (m *mockRuns) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	run, _ := args.Get(0).(*model.Run)
	return run, args.Error(1)
}

func (m *mockRuns) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	runs, _ := args.Get(0).([]model.Run)
	return runs, args.Error(1)
}

func (m *mockRuns) ListOutcomes(ctx context.Context, runID string) ([]model.EntityOutcome, error) {
	args := m.Called(ctx, runID)
	out, _ := args.Get(0).([]model.EntityOutcome)
	return out, args.Error(1)
}

func do(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := NewServer(mapLoader{}, &mockRuns{}, "", 0)
	rec := do(t, srv.Router(), "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestGetRecord(t *testing.T) {
	loader := mapLoader{25: {DexNo: 25, Name: "Pikachu", Related: model.RelatedTo(172, 25, 26)}}
	h := NewServer(loader, &mockRuns{}, "", 151).Router()

	rec := do(t, h, "/records/25")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"dex_no":25,"name":"Pikachu","related":[172,25,26]}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, do(t, h, "/records/4").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "/records/abc").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "/records/0").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "/records/152").Code)
}

func TestListRecords(t *testing.T) {
	loader := mapLoader{4: {DexNo: 4}, 1: {DexNo: 1}}
	rec := do(t, NewServer(loader, &mockRuns{}, "", 0).Router(), "/records")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":2,"dex_nos":[1,4]}`, rec.Body.String())

	rec = do(t, NewServer(mapLoader{}, &mockRuns{}, "", 0).Router(), "/records")
	assert.JSONEq(t, `{"count":0,"dex_nos":[]}`, rec.Body.String())
}

func TestListGroups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slides.json")
	h := NewServer(mapLoader{}, &mockRuns{}, path, 0).Router()

	assert.Equal(t, http.StatusNotFound, do(t, h, "/groups").Code)

	require.NoError(t, os.WriteFile(path, []byte(`[[{"dex_no":132,"name":"Ditto","related":null}]]`), 0o644))
	rec := do(t, h, "/groups")
	require.Equal(t, http.StatusOK, rec.Code)

	var groups []model.Group
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &groups))
	require.Len(t, groups, 1)
	assert.Equal(t, []int{132}, groups[0].DexNos())
	assert.True(t, groups[0][0].Related.IsTerminal())

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
	assert.Equal(t, http.StatusInternalServerError, do(t, h, "/groups").Code)
}

func TestListRuns(t *testing.T) {
	runs := &mockRuns{}
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	runs.On("ListRuns", mock.Anything, store.RunFilter{Status: model.RunStatusComplete, Limit: 5}).
		Return([]model.Run{{ID: "r1", Status: model.RunStatusComplete, CreatedAt: created, UpdatedAt: created}}, nil)
	runs.On("ListRuns", mock.Anything, store.RunFilter{}).Return(nil, nil)

	h := NewServer(mapLoader{}, runs, "", 0).Router()

	rec := do(t, h, "/runs?status=complete&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)

	rec = do(t, h, "/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, do(t, h, "/runs?limit=-1").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "/runs?offset=x").Code)
	runs.AssertExpectations(t)
}

func TestGetRun(t *testing.T) {
	runs := &mockRuns{}
	runs.On("GetRun", mock.Anything, "r1").Return(&model.Run{ID: "r1", Status: model.RunStatusInterrupted}, nil)
	runs.On("GetRun", mock.Anything, "missing").Return(nil, store.ErrRunNotFound)
	runs.On("GetRun", mock.Anything, "broken").Return(nil, errors.New("db down"))

	h := NewServer(mapLoader{}, runs, "", 0).Router()

	rec := do(t, h, "/runs/r1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"interrupted"`)

	assert.Equal(t, http.StatusNotFound, do(t, h, "/runs/missing").Code)
	assert.Equal(t, http.StatusInternalServerError, do(t, h, "/runs/broken").Code)
}

func TestListOutcomes(t *testing.T) {
	runs := &mockRuns{}
	runs.On("GetRun", mock.Anything, "r1").Return(&model.Run{ID: "r1"}, nil)
	runs.On("GetRun", mock.Anything, "missing").Return(nil, store.ErrRunNotFound)
	runs.On("ListOutcomes", mock.Anything, "r1").Return([]model.EntityOutcome{
		{RunID: "r1", DexNo: 1, Name: "Bulbasaur", Status: model.StatusWarning, Degraded: []string{model.LabelColor}},
	}, nil)

	h := NewServer(mapLoader{}, runs, "", 0).Router()

	rec := do(t, h, "/runs/r1/outcomes")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []model.EntityOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, model.StatusWarning, got[0].Status)
	assert.Equal(t, []string{"Color"}, got[0].Degraded)

	assert.Equal(t, http.StatusNotFound, do(t, h, "/runs/missing/outcomes").Code)
	runs.AssertNotCalled(t, "ListOutcomes", mock.Anything, "missing")
}

func TestCORSPreflight(t *testing.T) {
	h := NewServer(mapLoader{}, &mockRuns{}, "", 0).Router()

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
