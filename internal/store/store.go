// Package store persists collection run history and the upstream page cache.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dex-cli/internal/model"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = eris.New("run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for run history and page caching.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, opts model.RunOptions) (*model.Run, error)
	RecordOutcome(ctx context.Context, outcome model.EntityOutcome) error
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	ListOutcomes(ctx context.Context, runID string) ([]model.EntityOutcome, error)
	ResumePoint(ctx context.Context) (int, error)

	// Page cache
	GetCachedPage(ctx context.Context, url string) ([]byte, error)
	SetCachedPage(ctx context.Context, url string, body []byte, ttl time.Duration) error
	DeleteExpiredPages(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// URLHash returns the page cache key for a URL.
func URLHash(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// resumeFrom computes where a new run should start given the most recent
// run and the highest identity it recorded. A completed (or absent) run
// resumes from the beginning.
func resumeFrom(latest *model.Run, lastDexNo int) int {
	if latest == nil || latest.Status == model.RunStatusComplete {
		return 1
	}
	if lastDexNo > 0 {
		return lastDexNo + 1
	}
	if latest.Options.SkipTo > 1 {
		return latest.Options.SkipTo
	}
	return 1
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 50
	}
	return n
}
