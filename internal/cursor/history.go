// Path: internal/cursor/history.go
package cursor

import "media-search/internal/domain"

// History is the stack of cursors used to reach the current page.
// Entry i is the cursor that fetches page i; entry 0 is always the empty
// cursor. Entries are only appended or truncated, never reordered.
//
// History is not safe for concurrent use; the controller serialises access.
type History struct {
	entries []domain.Cursor
}

// NewHistory returns a history positioned on the first page.
func NewHistory() *History {
	h := &History{}
	h.Reset()
	return h
}

// Reset drops every cursor and returns to the first page.
func (h *History) Reset() {
	h.entries = []domain.Cursor{nil}
}

// Current returns the cursor for the page being shown. Nil on page 1.
func (h *History) Current() domain.Cursor {
	return h.entries[len(h.entries)-1].Clone()
}

// PushNext moves forward one page. An empty cursor is refused.
func (h *History) PushNext(c domain.Cursor) bool {
	if c.IsEmpty() {
		return false
	}
	h.entries = append(h.entries, c.Clone())
	return true
}

// PopPrev moves back one page. Refused on page 1.
func (h *History) PopPrev() bool {
	if len(h.entries) <= 1 {
		return false
	}
	h.entries[len(h.entries)-1] = nil
	h.entries = h.entries[:len(h.entries)-1]
	return true
}

// PageIndex is the zero-based index of the current page.
func (h *History) PageIndex() int {
	return len(h.entries) - 1
}

// Entries returns a deep copy of the stack, bottom first.
func (h *History) Entries() []domain.Cursor {
	out := make([]domain.Cursor, len(h.entries))
	for i, c := range h.entries {
		out[i] = c.Clone()
	}
	return out
}

// Restore replaces the stack with entries loaded from storage. The first
// entry is forced empty and empty entries past it are dropped, so a
// corrupted document cannot break the page-0 rule.
func (h *History) Restore(entries []domain.Cursor) {
	h.Reset()
	for i, c := range entries {
		if i == 0 {
			continue
		}
		h.PushNext(c)
	}
}
