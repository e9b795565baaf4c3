package segment

import (
	"strings"

	"github.com/joseph-ayodele/spec-matcher/constants"
)

// SectionState is the position of the tracker relative to the specification section.
type SectionState int

const (
	BeforeSection SectionState = iota
	InSection
	AfterSection
)

func (s SectionState) String() string {
	switch s {
	case BeforeSection:
		return "before"
	case InSection:
		return "in"
	case AfterSection:
		return "after"
	default:
		return "unknown"
	}
}

// IsSectionStart reports whether text opens a commodity-specification section.
// The Korean marker is matched with all whitespace removed, the English one
// with whitespace runs collapsed to a single space.
func IsSectionStart(text string) bool {
	words := strings.Fields(text)
	return strings.Contains(strings.Join(words, ""), constants.MarkerSectionStartKO) ||
		strings.Contains(strings.Join(words, " "), constants.MarkerSectionStartEN)
}

// IsSectionEnd reports whether text is an appendix form page, which closes the section.
func IsSectionEnd(text string) bool {
	return strings.Contains(text, constants.MarkerAppendix) && strings.Contains(text, constants.MarkerForm)
}

// mentionsItems reports whether text carries an item-name column header.
func mentionsItems(text string) bool {
	return strings.Contains(text, constants.MarkerItemNameKO) || strings.Contains(text, constants.MarkerItemNameEN)
}

// SectionTracker walks pages in order. Start is evaluated before end, so a page
// carrying both markers leaves the tracker in AfterSection. A later start marker
// re-enters the section.
type SectionTracker struct {
	state SectionState
}

// State returns the current state.
func (t *SectionTracker) State() SectionState { return t.state }

// Observe advances the tracker with one non-empty page and reports whether the
// page should be retained.
func (t *SectionTracker) Observe(p Page) bool {
	if IsSectionStart(p.Text) {
		t.state = InSection
	}
	if t.state == InSection && IsSectionEnd(p.Text) {
		t.state = AfterSection
	}
	return t.state == InSection && (p.HasTable || mentionsItems(p.Text))
}
