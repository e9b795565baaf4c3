package pipeline

import (
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/spec-matcher/constants"
	"github.com/joseph-ayodele/spec-matcher/internal/segment"
)

// Batch is a run of consecutive retained pages sent to the model together.
type Batch struct {
	Index int // 0-based
	Pages []int
	Text  string
}

// MakeBatches slices pages into contiguous groups of size, preserving order.
// The final batch may be shorter. A size below 1 uses constants.BatchSize.
func MakeBatches(pages []segment.Page, size int) []Batch {
	if size < 1 {
		size = constants.BatchSize
	}
	batches := make([]Batch, 0, (len(pages)+size-1)/size)
	for i := 0; i < len(pages); i += size {
		end := min(i+size, len(pages))
		group := pages[i:end]

		nums := make([]int, 0, len(group))
		texts := make([]string, 0, len(group))
		for _, p := range group {
			nums = append(nums, p.Number)
			texts = append(texts, p.Text)
		}
		batches = append(batches, Batch{
			Index: len(batches),
			Pages: nums,
			Text:  strings.Join(texts, "\n"),
		})
	}
	return batches
}

// TooShort reports whether the batch carries too little text to be worth a model call.
func (b Batch) TooShort() bool {
	return utf8.RuneCountInString(strings.TrimSpace(b.Text)) < constants.MinBatchChars
}
