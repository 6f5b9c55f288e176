// Package export renders compiled groups as a spreadsheet.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/dex-cli/internal/model"
)

// SheetName is the worksheet holding one row per record.
const SheetName = "Groups"

// Header is the first row of the worksheet.
var Header = []string{
	"Group", "Dex No", "Name", "Generation", "Typing", "Color",
	"Stat Total", "Stats", "Anime", "Manga", "Related", "Pic",
}

// WriteWorkbook writes a denormalized view of groups to an XLSX file: one
// row per record, tagged with its zero-based group index.
func WriteWorkbook(path string, groups []model.Group) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	addRow(sheet, Header)
	for gi, g := range groups {
		for i := range g {
			addRow(sheet, recordRow(gi, &g[i]))
		}
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "xlsx: create dir %s", dir)
		}
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}

func recordRow(group int, p *model.Pokemon) []string {
	return []string{
		strconv.Itoa(group),
		strconv.Itoa(p.DexNo),
		p.Name,
		optInt(p.GenNo),
		strings.Join(p.Typing, "/"),
		optString(p.Color),
		optInt(p.StatTotal),
		formatStats(p.Stats),
		optInt(p.AnimeCount),
		optInt(p.MangaCount),
		formatRelated(p.Related),
		optString(p.Pic),
	}
}

func formatStats(stats []model.Stat) string {
	parts := make([]string, len(stats))
	for i, s := range stats {
		parts[i] = fmt.Sprintf("%s %d", s.Name, s.Value)
	}
	return strings.Join(parts, ", ")
}

func formatRelated(r model.Related) string {
	if !r.Set || r.IsTerminal() {
		return ""
	}
	parts := make([]string, len(r.IDs))
	for i, id := range r.IDs {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
