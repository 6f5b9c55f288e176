package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/dex-cli/internal/model"
	"github.com/sells-group/dex-cli/internal/store"
)

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listRecords(w http.ResponseWriter, _ *http.Request) {
	ids, err := s.records.List()
	if err != nil {
		zap.L().Error("api: list records", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list records")
		return
	}
	if ids == nil {
		ids = []int{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(ids), "dex_nos": ids})
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 || id > s.maxID {
		writeError(w, http.StatusBadRequest, "invalid dex number")
		return
	}

	rec, found, err := s.records.Load(r.Context(), id)
	if err != nil {
		zap.L().Error("api: load record", zap.Int("dex_no", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load record")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) listGroups(w http.ResponseWriter, _ *http.Request) {
	data, err := os.ReadFile(s.groupsPath)
	if errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusNotFound, "groups have not been compiled")
		return
	}
	if err != nil {
		zap.L().Error("api: read groups", zap.String("path", s.groupsPath), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not read groups")
		return
	}

	var groups []model.Group
	if err := json.Unmarshal(data, &groups); err != nil {
		zap.L().Error("api: decode groups", zap.String("path", s.groupsPath), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "groups file is not valid JSON")
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{Status: model.RunStatus(q.Get("status"))}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}

	runs, err := s.runs.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.runError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) listOutcomes(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if _, err := s.runs.GetRun(r.Context(), runID); err != nil {
		s.runError(w, err)
		return
	}

	outcomes, err := s.runs.ListOutcomes(r.Context(), runID)
	if err != nil {
		zap.L().Error("api: list outcomes", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list outcomes")
		return
	}
	if outcomes == nil {
		outcomes = []model.EntityOutcome{}
	}
	writeJSON(w, http.StatusOK, outcomes)
}

func (s *Server) runError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	zap.L().Error("api: get run", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "could not load run")
}
