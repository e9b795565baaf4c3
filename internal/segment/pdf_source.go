package segment

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFSource extracts pages in-process with github.com/ledongthuc/pdf.
type PDFSource struct {
	logger *slog.Logger
}

func NewPDFSource(logger *slog.Logger) *PDFSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFSource{logger: logger}
}

func (s *PDFSource) Pages(ctx context.Context, path string) ([]Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	n := r.NumPage()
	pages := make([]Page, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, Page{Number: i})
			continue
		}
		rows, err := readPage(p)
		if err != nil {
			s.logger.Warn("segment.page_unreadable", "page", i, "error", err)
			pages = append(pages, Page{Number: i})
			continue
		}
		pages = append(pages, Page{Number: i, Text: rowsText(rows), HasTable: looksTabular(rows)})
	}
	return pages, nil
}

// readPage recovers from the panics the pdf package raises on malformed content streams.
func readPage(p pdf.Page) (rows [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed page content: %v", r)
		}
	}()
	return layout(p.Content().Text), nil
}

// layout groups glyphs into visual rows by baseline, top of page first, and
// splits each row into cells wherever the horizontal gap exceeds about one and
// a half glyph widths. Smaller gaps, or a space glyph, separate words.
func layout(texts []pdf.Text) [][]string {
	byLine := map[int][]pdf.Text{}
	for _, t := range texts {
		y := int(math.Round(t.Y))
		byLine[y] = append(byLine[y], t)
	}
	ys := make([]int, 0, len(byLine))
	for y := range byLine {
		ys = append(ys, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ys)))

	rows := make([][]string, 0, len(ys))
	for _, y := range ys {
		line := byLine[y]
		// stable, so glyphs without width metrics keep content order
		sort.SliceStable(line, func(i, j int) bool { return line[i].X < line[j].X })

		var (
			cells    []string
			cur      strings.Builder
			last     *pdf.Text
			sawSpace bool
		)
		for i := range line {
			t := &line[i]
			if strings.TrimSpace(t.S) == "" {
				sawSpace = true
				continue
			}
			if last != nil {
				gap := t.X - (last.X + last.W)
				switch {
				case gap > cellGap(last.FontSize):
					cells = append(cells, cur.String())
					cur.Reset()
				case sawSpace || gap > wordGap(last.FontSize):
					cur.WriteByte(' ')
				}
			}
			cur.WriteString(t.S)
			last, sawSpace = t, false
		}
		if last == nil {
			continue
		}
		cells = append(cells, cur.String())
		rows = append(rows, cells)
	}
	return rows
}

// rowsText renders rows one per line with tab-separated cells.
func rowsText(rows [][]string) string {
	lines := make([]string, len(rows))
	for i, cells := range rows {
		lines[i] = strings.Join(cells, "\t")
	}
	return strings.Join(lines, "\n")
}

// hasTable reports whether the glyphs form at least two multi-cell rows.
func hasTable(texts []pdf.Text) bool {
	return looksTabular(layout(texts))
}

func cellGap(fontSize float64) float64 {
	if fontSize <= 0 {
		return 10
	}
	return 1.5 * fontSize
}

func wordGap(fontSize float64) float64 {
	if fontSize <= 0 {
		return 1.5
	}
	return 0.2 * fontSize
}
