package collect

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrNameResolution is returned when an identity's display name cannot be
// resolved. It is fatal for the entity.
var ErrNameResolution = eris.New("collect: name resolution failed")

// Pages holds the parsed upstream documents for one identity.
type Pages struct {
	DexNo int
	Name  string
	Dex   *goquery.Document
	// Wiki is nil when the wiki page could not be fetched; WikiErr says why.
	Wiki    *goquery.Document
	WikiErr error
}

// URLs locates the upstream sources.
type URLs struct {
	DexBase     string
	WikiBase    string
	ArtworkBase string
}

// DexURL returns the dex page for an identity.
func (u URLs) DexURL(dexNo int) string {
	return fmt.Sprintf("%s/%d", strings.TrimRight(u.DexBase, "/"), dexNo)
}

// WikiURL returns the wiki page for a display name. Each space-separated
// word and each hyphenated part is capitalized, then words are joined with
// underscores: "Ho-oh" becomes "Ho-Oh_(Pok%C3%A9mon)".
func (u URLs) WikiURL(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		parts := strings.Split(w, "-")
		for j, p := range parts {
			parts[j] = capitalize(p)
		}
		words[i] = strings.Join(parts, "-")
	}
	return fmt.Sprintf("%s/%s_(Pok%%C3%%A9mon)", strings.TrimRight(u.WikiBase, "/"), strings.Join(words, "_"))
}

// ArtworkURL returns the artwork image URL for a display name.
func (u URLs) ArtworkURL(name string) string {
	return fmt.Sprintf("%s/%s.jpg", strings.TrimRight(u.ArtworkBase, "/"), ArtworkSlug(name))
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Opener resolves an identity to its display name and upstream pages.
type Opener struct {
	source *PageSource
	urls   URLs
}

// NewOpener creates an Opener.
func NewOpener(source *PageSource, urls URLs) *Opener {
	return &Opener{source: source, urls: urls}
}

// Open fetches the dex page and resolves the display name. Any failure there
// wraps ErrNameResolution. The wiki page is fetched afterwards; its failure
// is recorded on Pages and is not returned.
func (o *Opener) Open(ctx context.Context, dexNo int) (*Pages, error) {
	dex, err := o.source.Document(ctx, o.urls.DexURL(dexNo))
	if err != nil {
		return nil, eris.Wrapf(ErrNameResolution, "dex page %d: %v", dexNo, err)
	}

	name, ok := ParseName(dex)
	if !ok {
		return nil, eris.Wrapf(ErrNameResolution, "no heading on dex page %d", dexNo)
	}

	pages := &Pages{DexNo: dexNo, Name: name, Dex: dex}

	wikiURL := o.urls.WikiURL(name)
	wiki, err := o.source.Document(ctx, wikiURL)
	if err != nil {
		zap.L().Warn("collect: wiki page unavailable",
			zap.Int("dex_no", dexNo),
			zap.String("url", wikiURL),
			zap.Error(err),
		)
		pages.WikiErr = err
		return pages, nil
	}
	pages.Wiki = wiki
	return pages, nil
}

// ParseName reads the display name from the first <h1> of the dex page,
// dropping gender suffixes.
func ParseName(doc *goquery.Document) (string, bool) {
	h1 := doc.Find("h1").First()
	if h1.Length() == 0 {
		return "", false
	}
	name := strings.TrimSpace(h1.Text())
	name = strings.ReplaceAll(name, "(female)", "")
	name = strings.ReplaceAll(name, "(male)", "")
	name = strings.TrimSpace(name)
	return name, name != ""
}
