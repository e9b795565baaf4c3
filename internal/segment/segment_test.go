package segment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/spec-matcher/internal/common"
)

func numbers(pages []Page) []int {
	out := make([]int, 0, len(pages))
	for _, p := range pages {
		out = append(out, p.Number)
	}
	return out
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsSectionStart("제 3 장  물 품 규 격 서"))
	assert.True(t, IsSectionStart("Annex B - Commodity Description"))
	assert.True(t, IsSectionStart("Commodity\tDescription"))
	assert.True(t, IsSectionStart("물품\n규격서"))
	assert.False(t, IsSectionStart("입찰 공고문"))

	assert.True(t, IsSectionEnd("[별지 제1호 서식] 입찰서"))
	assert.False(t, IsSectionEnd("별지 참조"))
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name     string
		pages    []Page
		want     []int
		fallback bool
	}{
		{
			name: "section with table pages",
			pages: []Page{
				{Number: 1, Text: "입찰 공고"},
				{Number: 2, Text: "물품규격서", HasTable: true},
				{Number: 3, Text: "품명: 프로젝터 5000 안시"},
				{Number: 4, Text: "별지 제1호 서식"},
				{Number: 5, Text: "품명: 스크린", HasTable: true},
			},
			want: []int{2, 3},
		},
		{
			name: "start and end on the same page closes the section",
			pages: []Page{
				{Number: 1, Text: "물품규격서 별지 서식", HasTable: true},
				{Number: 2, Text: "품명 table", HasTable: true},
				{Number: 3, Text: "Commodity Description", HasTable: true},
			},
			want: []int{3},
		},
		{
			name: "section page without items is skipped",
			pages: []Page{
				{Number: 1, Text: "Commodity Description overview"},
				{Number: 2, Text: "Specifications: 4K camera"},
			},
			want: []int{2},
		},
		{
			name: "no markers falls back to every non-empty page",
			pages: []Page{
				{Number: 1, Text: "cover"},
				{Number: 2, Text: "   "},
				{Number: 3, Text: "body", HasTable: true},
			},
			want:     []int{1, 3},
			fallback: true,
		},
		{
			name: "empty pages drive no transitions",
			pages: []Page{
				{Number: 1, Text: ""},
				{Number: 2, Text: "물품규격서"},
				{Number: 3, Text: ""},
				{Number: 4, Text: "품명 list"},
			},
			want: []int{4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := Select(tt.pages)
			assert.Equal(t, tt.want, numbers(sel.Pages))
			assert.Equal(t, tt.fallback, sel.Fallback)
			assert.Equal(t, len(tt.pages), sel.Total)
		})
	}
}

func TestTrackerReentersSection(t *testing.T) {
	var tr SectionTracker
	assert.False(t, tr.Observe(Page{Text: "intro"}))
	assert.Equal(t, BeforeSection, tr.State())

	assert.True(t, tr.Observe(Page{Text: "물품규격서 품명"}))
	assert.Equal(t, InSection, tr.State())

	assert.False(t, tr.Observe(Page{Text: "별지 서식", HasTable: true}))
	assert.Equal(t, AfterSection, tr.State())

	assert.True(t, tr.Observe(Page{Text: "Commodity Description", HasTable: true}))
	assert.Equal(t, InSection, tr.State())
}

type fakeRunner struct {
	out  string
	err  error
	args []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.args = append([]string{name}, args...)
	if f.err != nil {
		return nil, []byte("Syntax Error: Couldn't read xref table"), f.err
	}
	return []byte(f.out), nil, nil
}

func TestPdftotextSourceSplitsPages(t *testing.T) {
	r := &fakeRunner{out: "cover page\f" +
		"물품규격서\n품명      규격       수량\n카메라    4K         2\n\f" +
		"별지 서식\f"}
	src := NewPdftotextSource("/usr/bin/pdftotext", r)

	pages, err := src.Pages(context.Background(), "/tmp/in.pdf")
	require.NoError(t, err)
	require.Len(t, pages, 3)

	assert.Equal(t, []string{"/usr/bin/pdftotext", "-layout", "-enc", "UTF-8", "-eol", "unix", "/tmp/in.pdf", "-"}, r.args)
	assert.False(t, pages[0].HasTable)
	assert.True(t, pages[1].HasTable)
	assert.Equal(t, 3, pages[2].Number)
}

func TestSegmenterWrapsReadErrors(t *testing.T) {
	src := NewPdftotextSource("", &fakeRunner{err: errors.New("exit status 1")})
	seg := NewSegmenter(src, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := seg.Segment(context.Background(), "/tmp/broken.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPDFRead)
}

func TestPDFSourceRejectsNonPDF(t *testing.T) {
	_, err := NewPDFSource(nil).Pages(context.Background(), "testdata/does-not-exist.pdf")
	assert.Error(t, err)
}

func TestPDFSourceReadsRowsAndCells(t *testing.T) {
	pages, err := NewPDFSource(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Pages(context.Background(), "testdata/commodity_table.pdf")
	require.NoError(t, err)
	require.Len(t, pages, 1)

	p := pages[0]
	assert.Equal(t, 1, p.Number)
	assert.Equal(t, "Commodity Description\nItem\tQty\nProjector\t2\nSpecifications: 5000 lumens", p.Text)
	assert.True(t, p.HasTable)
	assert.True(t, IsSectionStart(p.Text))

	sel := Select(pages)
	assert.False(t, sel.Fallback)
	assert.Equal(t, []int{1}, numbers(sel.Pages))
}

func TestLayoutSeparatesWordsAndCells(t *testing.T) {
	glyphs := func(x, y float64, s string) []pdf.Text {
		var out []pdf.Text
		for _, r := range s {
			out = append(out, pdf.Text{FontSize: 10, X: x, Y: y, W: 5, S: string(r)})
			x += 5
		}
		return out
	}
	var texts []pdf.Text
	texts = append(texts, glyphs(50, 680, "TV")...)         // lower row listed first
	texts = append(texts, glyphs(200, 680, "2")...)         // cell gap
	texts = append(texts, glyphs(50, 700.2, "Name Qty")...) // space glyph
	texts = append(texts, glyphs(300, 700, "Model")...)

	rows := layout(texts)
	assert.Equal(t, [][]string{{"Name Qty", "Model"}, {"TV", "2"}}, rows)
	assert.Equal(t, "Name Qty\tModel\nTV\t2", rowsText(rows))
}

func TestHasTableFromGlyphs(t *testing.T) {
	glyph := func(x, y float64, s string) pdf.Text {
		return pdf.Text{FontSize: 10, X: x, Y: y, W: 6, S: s}
	}
	table := []pdf.Text{
		glyph(50, 700, "품"), glyph(56, 700, "명"), glyph(200, 700, "수"), glyph(206, 700, "량"),
		glyph(50, 680, "T"), glyph(56, 680, "V"), glyph(200, 680, "2"),
	}
	prose := []pdf.Text{
		glyph(50, 700, "A"), glyph(57, 700, "B"), glyph(64, 700, "C"),
		glyph(50, 680, "D"), glyph(57, 680, "E"),
	}
	assert.True(t, hasTable(table))
	assert.False(t, hasTable(prose))
	assert.False(t, hasTable(nil))
}

func TestNewSourceByBackend(t *testing.T) {
	_, native := NewSource(common.PDFConfig{Backend: common.BackendNative}, nil).(*PDFSource)
	assert.True(t, native)

	src, ok := NewSource(common.PDFConfig{Backend: common.BackendPdftotext, Pdftotext: "/opt/pdftotext"}, nil).(*PdftotextSource)
	require.True(t, ok)
	assert.Equal(t, "/opt/pdftotext", src.Bin)
}
