// Package collect resolves an identity's upstream pages and extracts field
// groups from them.
package collect

import (
	"bytes"
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dex-cli/internal/fetcher"
)

// PageCache stores raw upstream pages. store.Store satisfies it.
type PageCache interface {
	GetCachedPage(ctx context.Context, url string) ([]byte, error)
	SetCachedPage(ctx context.Context, url string, body []byte, ttl time.Duration) error
}

// PageSource fetches HTML documents, consulting an optional page cache.
type PageSource struct {
	fetcher fetcher.Fetcher
	cache   PageCache
	ttl     time.Duration
}

// NewPageSource returns a PageSource. A nil cache or zero ttl disables caching.
func NewPageSource(f fetcher.Fetcher, cache PageCache, ttl time.Duration) *PageSource {
	if ttl <= 0 {
		cache = nil
	}
	return &PageSource{fetcher: f, cache: cache, ttl: ttl}
}

// Raw returns the body at url, from cache when fresh.
func (s *PageSource) Raw(ctx context.Context, url string) ([]byte, error) {
	if s.cache != nil {
		body, err := s.cache.GetCachedPage(ctx, url)
		if err != nil {
			zap.L().Warn("collect: page cache read failed", zap.String("url", url), zap.Error(err))
		} else if body != nil {
			zap.L().Debug("collect: page cache hit", zap.String("url", url))
			return body, nil
		}
	}

	body, err := s.fetcher.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetCachedPage(ctx, url, body, s.ttl); err != nil {
			zap.L().Warn("collect: page cache write failed", zap.String("url", url), zap.Error(err))
		}
	}
	return body, nil
}

// Document fetches url and parses it as HTML.
func (s *PageSource) Document(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := s.Raw(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrapf(err, "collect: parse html %s", url)
	}
	return doc, nil
}
