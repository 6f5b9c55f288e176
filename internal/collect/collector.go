package collect

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/dex-cli/internal/model"
)

// Result is the outcome of collecting one field group. Values carries only
// the members that parsed; Degraded lists labels of those that did not.
type Result struct {
	Values   *model.Pokemon
	Degraded []string
}

// IsDegraded reports whether any member of the group failed.
func (r Result) IsDegraded() bool { return len(r.Degraded) > 0 }

// Collector extracts field groups from an identity's pages.
type Collector struct {
	opener *Opener
	source *PageSource
	urls   URLs
	artDir string
}

// NewCollector creates a Collector that stores artwork under artDir.
func NewCollector(source *PageSource, urls URLs, artDir string) *Collector {
	return &Collector{
		opener: NewOpener(source, urls),
		source: source,
		urls:   urls,
		artDir: artDir,
	}
}

// Open resolves the identity's name and pages.
func (c *Collector) Open(ctx context.Context, dexNo int) (*Pages, error) {
	return c.opener.Open(ctx, dexNo)
}

// Collect extracts one field group. Failures are reported as degraded labels,
// never as errors.
func (c *Collector) Collect(ctx context.Context, group model.FieldGroup, p *Pages) Result {
	res := Result{Values: model.NewPokemon(p.DexNo)}
	v := res.Values
	degrade := func(label string) { res.Degraded = append(res.Degraded, label) }

	switch group {
	case model.GroupAppearances:
		if p.Wiki == nil {
			degrade(model.LabelAnime)
			degrade(model.LabelManga)
			break
		}
		v.AnimeCount, v.MangaCount = ParseAppearances(p.Wiki)
		if v.AnimeCount == nil {
			degrade(model.LabelAnime)
		}
		if v.MangaCount == nil {
			degrade(model.LabelManga)
		}

	case model.GroupMatchups:
		m, ok := ParseMatchups(p.Dex)
		if !ok {
			degrade(model.LabelMatchups)
			break
		}
		v.Matchups = m

	case model.GroupStats:
		v.Stats, v.StatTotal = ParseStats(p.Dex)
		if v.Stats == nil {
			degrade(model.LabelStats)
		}
		if v.StatTotal == nil {
			degrade(model.LabelStatTotal)
		}

	case model.GroupColor:
		if p.Wiki == nil {
			degrade(model.LabelColor)
			break
		}
		color, ok := ParseColor(p.Wiki)
		if !ok {
			degrade(model.LabelColor)
			break
		}
		v.Color = &color

	case model.GroupTyping:
		v.Typing, v.GenNo = ParseTyping(p.Dex)
		if v.Typing == nil {
			degrade(model.LabelTyping)
		}
		if v.GenNo == nil {
			degrade(model.LabelGen)
		}

	case model.GroupRelated:
		rel, ok := ParseRelated(p.Dex)
		if !ok {
			degrade(model.LabelRelated)
			break
		}
		v.Related = rel

	case model.GroupArtwork:
		path, err := c.downloadArtwork(ctx, p)
		if err != nil {
			zap.L().Warn("collect: artwork unavailable",
				zap.Int("dex_no", p.DexNo),
				zap.String("name", p.Name),
				zap.Error(err),
			)
			degrade(model.LabelArtwork)
			break
		}
		v.Pic = &path
	}

	return res
}
