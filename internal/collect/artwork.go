package collect

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// notFoundMarker in a downloaded body means the image host served an error
// page with a success status.
var notFoundMarker = []byte("404 Not Found")

var slugReplacer = strings.NewReplacer(
	" ", "-",
	".", "",
	"♀", "-f",
	"♂", "-m",
	":", "",
	"'", "",
)

// ArtworkSlug converts a display name to the artwork host's file slug:
// "Mr. Mime" → "mr-mime", "Nidoran♀" → "nidoran-f", "Flabébé" → "flabebe".
func ArtworkSlug(name string) string {
	s := slugReplacer.Replace(strings.ToLower(name))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// ArtworkPath returns where the artwork for an identity is stored.
func ArtworkPath(artDir string, dexNo int) string {
	return fmt.Sprintf("%s/%d.jpg", strings.TrimRight(artDir, "/"), dexNo)
}

// rejectErrorPage fails bodies that carry the image host's error page.
func rejectErrorPage(body []byte) error {
	if bytes.Contains(body, notFoundMarker) {
		return errArtworkMissing
	}
	return nil
}

var errArtworkMissing = eris.New("collect: artwork host served an error page")

func (c *Collector) downloadArtwork(ctx context.Context, p *Pages) (string, error) {
	path := ArtworkPath(c.artDir, p.DexNo)
	if _, err := c.source.fetcher.DownloadToFile(ctx, c.urls.ArtworkURL(p.Name), path, rejectErrorPage); err != nil {
		return "", eris.Wrapf(err, "collect: download artwork for %q", p.Name)
	}
	return path, nil
}
