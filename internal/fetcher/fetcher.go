// Package fetcher retrieves upstream pages and image assets over HTTP.
package fetcher

import (
	"context"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when the upstream answers 404.
var ErrNotFound = eris.New("fetcher: not found")

// Fetcher retrieves remote resources.
type Fetcher interface {
	// Get fetches the URL and returns the full response body.
	Get(ctx context.Context, url string) ([]byte, error)

	// DownloadToFile fetches the URL and writes it to path. Returns bytes written.
	// A non-nil validate rejects the body before anything is written.
	DownloadToFile(ctx context.Context, url string, path string, validate BodyValidator) (int64, error)
}

// BodyValidator inspects a downloaded body; a non-nil error aborts the write.
type BodyValidator func(body []byte) error
