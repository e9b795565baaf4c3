// Package segment reads per-page text from procurement PDFs and selects the
// pages that belong to the commodity-specification section.
package segment

import (
	"context"
	"regexp"
	"strings"
)

// Page is the extracted content of one PDF page. Number is 1-based.
type Page struct {
	Number   int
	Text     string
	HasTable bool
}

// Source extracts pages from a PDF on disk.
type Source interface {
	Pages(ctx context.Context, path string) ([]Page, error)
}

var (
	layoutGap   = regexp.MustCompile(`\S\s{2,}\S`)
	cellSplitRe = regexp.MustCompile(`\s{2,}`)
)

// looksTabular reports whether at least two rows split into two or more cells.
func looksTabular(rows [][]string) bool {
	n := 0
	for _, cells := range rows {
		nonEmpty := 0
		for _, c := range cells {
			if strings.TrimSpace(c) != "" {
				nonEmpty++
			}
		}
		if nonEmpty >= 2 {
			n++
			if n >= 2 {
				return true
			}
		}
	}
	return false
}

// layoutRows splits column-preserving text into cells on runs of two or more spaces.
func layoutRows(text string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !layoutGap.MatchString(line) {
			continue
		}
		rows = append(rows, cellSplitRe.Split(line, -1))
	}
	return rows
}
