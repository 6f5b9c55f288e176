package collect

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/dex-cli/internal/model"
)

// ParseAppearances counts the paragraphs between the "In the anime" and
// "In the manga" headings of a wiki page and the next <h2>. Each count is
// ok only when its heading exists and is followed by an <h2>.
func ParseAppearances(doc *goquery.Document) (anime *int, manga *int) {
	return countSection(doc, "In_the_anime"), countSection(doc, "In_the_manga")
}

func countSection(doc *goquery.Document, id string) *int {
	heading := doc.Find("span#" + id).First().Parent()
	if heading.Length() == 0 {
		return nil
	}
	if heading.NextAllFiltered("h2").Length() == 0 {
		return nil
	}
	n := heading.NextUntil("h2").Filter("p").Length()
	return &n
}

// ParseMatchups reads the type effectiveness table of the active dex tab.
func ParseMatchups(doc *goquery.Document) (model.Matchups, bool) {
	tab := doc.Find("div.sv-tabs-panel.active").First()
	if tab.Length() == 0 {
		return nil, false
	}

	m := make(model.Matchups, len(model.MatchupClasses()))
	for _, class := range model.MatchupClasses() {
		vals := []string{}
		tab.Find("td.type-fx-" + class).Each(func(_ int, s *goquery.Selection) {
			title, ok := s.Attr("title")
			if !ok {
				return
			}
			if f := strings.Fields(title); len(f) > 0 {
				vals = append(vals, f[0])
			}
		})
		m[class] = vals
	}
	return m, true
}

// ParseStats reads the base stats table and its total. Stats and total are
// reported independently.
func ParseStats(doc *goquery.Document) (stats []model.Stat, total *int) {
	table := doc.Find("#dex-stats").First().Parent().Find("table.vitals-table").First()
	if table.Length() == 0 {
		return nil, nil
	}

	rows := table.Find("tbody tr")
	ok := rows.Length() > 0
	rows.EachWithBreak(func(_ int, row *goquery.Selection) bool {
		name := strings.ReplaceAll(row.Find("th").First().Text(), ". ", "")
		value, err := strconv.Atoi(strings.TrimSpace(row.Find("td").First().Text()))
		if err != nil || strings.TrimSpace(name) == "" {
			ok = false
			return false
		}
		stats = append(stats, model.Stat{Name: strings.TrimSpace(name), Value: value})
		return true
	})
	if !ok {
		stats = nil
	}

	cell := table.Find("tfoot td.cell-total").First()
	if cell.Length() > 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(cell.Text())); err == nil {
			total = &n
		}
	}
	return stats, total
}

// ParseColor reads the dex color from a wiki infobox.
func ParseColor(doc *goquery.Document) (string, bool) {
	link := doc.Find(`a[title="List of Pokémon by color"]`).First()
	if link.Length() == 0 {
		return "", false
	}
	cells := link.Parent().Parent().Parent().Find("td")
	if cells.Length() < 2 {
		return "", false
	}
	color := strings.TrimSpace(cells.Eq(1).Text())
	return color, color != ""
}

// ParseTyping reads one or two type tags from the first paragraph of the dex
// page and the generation number from the first <abbr>.
func ParseTyping(doc *goquery.Document) (typing []string, gen *int) {
	doc.Find("p").First().Find("a.itype").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := strings.TrimSpace(s.Text()); t != "" {
			typing = append(typing, t)
		}
		return len(typing) < 2
	})

	abbr := doc.Find("abbr").First()
	if abbr.Length() > 0 {
		digits := strings.Map(func(r rune) rune {
			if unicode.IsDigit(r) {
				return r
			}
			return -1
		}, abbr.Text())
		if n, err := strconv.Atoi(digits); err == nil {
			gen = &n
		}
	}
	return typing, gen
}

// ParseRelated reads the evolution chain. A page without an evolution list
// yields a terminal value.
func ParseRelated(doc *goquery.Document) (model.Related, bool) {
	list := doc.Find("div.infocard-list-evo").First()
	if list.Length() == 0 {
		return model.Terminal(), true
	}

	ids := []int{}
	ok := true
	list.Find("div.infocard").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		small := card.Find("span.infocard-lg-data small").First()
		n, err := strconv.Atoi(strings.TrimSpace(strings.ReplaceAll(small.Text(), "#", "")))
		if small.Length() == 0 || err != nil {
			ok = false
			return false
		}
		ids = append(ids, n)
		return true
	})
	if !ok {
		return model.Related{}, false
	}
	return model.RelatedTo(ids...), true
}
