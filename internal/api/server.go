// Package api serves records, compiled groups, and run history over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/dex-cli/internal/model"
	"github.com/sells-group/dex-cli/internal/record"
	"github.com/sells-group/dex-cli/internal/store"
)

// RunReader is the read side of the run history store.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
	ListOutcomes(ctx context.Context, runID string) ([]model.EntityOutcome, error)
}

// RecordSource reads stored entity records.
type RecordSource interface {
	record.Loader
	List() ([]int, error)
}

// Server holds the read-only handlers.
type Server struct {
	records    RecordSource
	runs       RunReader
	groupsPath string
	maxID      int
}

// NewServer creates a Server. groupsPath is the compiled group file that
// GET /groups serves.
func NewServer(records RecordSource, runs RunReader, groupsPath string, maxID int) *Server {
	if maxID <= 0 {
		maxID = model.MaxDexNo
	}
	return &Server{records: records, runs: runs, groupsPath: groupsPath, maxID: maxID}
}

// Router builds the chi router with CORS and request logging.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Get("/records", s.listRecords)
	r.Get("/records/{id}", s.getRecord)
	r.Get("/groups", s.listGroups)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.listRuns)
		r.Get("/{id}", s.getRun)
		r.Get("/{id}/outcomes", s.listOutcomes)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
