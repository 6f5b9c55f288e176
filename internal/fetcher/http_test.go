package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/dex-cli/internal/resilience"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:  "test-agent",
		Timeout:    2 * time.Second,
		MaxRetries: 3,
		Backoff:    &resilience.Backoff{Initial: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2},
	})
}

func TestGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("<h1>Bulbasaur</h1>"))
	}))
	defer srv.Close()

	body, err := newTestFetcher().Get(context.Background(), srv.URL+"/pokedex/bulbasaur")
	require.NoError(t, err)
	assert.Equal(t, "<h1>Bulbasaur</h1>", string(body))
}

func TestGet_NotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Get(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := newTestFetcher().Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_ForbiddenNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 403")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGet_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{
		Timeout:    20 * time.Millisecond,
		MaxRetries: 1,
	})
	_, err := f.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, resilience.IsTimeout(err))
}

func TestGet_RateLimitedHostSharesLimiter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{RatePerSec: 1000})
	_, err := f.Get(context.Background(), srv.URL+"/a")
	require.NoError(t, err)
	_, err = f.Get(context.Background(), srv.URL+"/b")
	require.NoError(t, err)
	assert.Len(t, f.limiters, 1)
}

func TestDownloadToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("jpegbytes"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "pics", "25.jpg")
	n, err := newTestFetcher().DownloadToFile(context.Background(), srv.URL+"/pikachu.jpg", path, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jpegbytes", string(data))
}

func TestDownloadToFile_ValidatorRejectsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<h1>404 Not Found</h1>"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "pics", "25.jpg")
	rejected := errors.New("error page")
	n, err := newTestFetcher().DownloadToFile(context.Background(), srv.URL+"/pikachu.jpg", path, func(body []byte) error {
		if strings.Contains(string(body), "Not Found") {
			return rejected
		}
		return nil
	})
	require.ErrorIs(t, err, rejected)
	assert.Zero(t, n)
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, path+".tmp")
}

func TestAdaptiveLimiter(t *testing.T) {
	a := NewAdaptiveLimiter(8, 1)
	a.OnRateLimit()
	assert.Equal(t, rate.Limit(4), a.Limit())
	a.OnRateLimit()
	a.OnRateLimit()
	assert.Equal(t, rate.Limit(2), a.Limit())
	for range 20 {
		a.OnSuccess()
	}
	assert.Equal(t, rate.Limit(8), a.Limit())
}
