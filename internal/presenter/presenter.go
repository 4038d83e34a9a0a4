// Path: internal/presenter/presenter.go
package presenter

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"media-search/internal/domain"
)

const (
	placeholder = "--"
	invalidDate = "Invalid Date"
)

// Row is a MediaItem prepared for display.
type Row struct {
	ID           string
	Title        string
	Description  string
	Date         string
	Photographer string
	Dimensions   string
	ThumbnailURL string
	LargeURL     string
}

// SortByDate returns a copy of items ordered by date. Ties keep their
// original relative order. Items whose date does not parse go last in
// both directions. The input slice is not modified.
func SortByDate(items []domain.MediaItem, order domain.SortOrder) []domain.MediaItem {
	type keyed struct {
		item domain.MediaItem
		at   time.Time
		ok   bool
	}
	keys := make([]keyed, len(items))
	for i, it := range items {
		at, ok := ParseDate(it.Date)
		keys[i] = keyed{item: it, at: at, ok: ok}
	}

	slices.SortStableFunc(keys, func(a, b keyed) int {
		switch {
		case !a.ok && !b.ok:
			return 0
		case !a.ok:
			return 1
		case !b.ok:
			return -1
		}
		cmp := a.at.Compare(b.at)
		if order == domain.SortDescending {
			cmp = -cmp
		}
		return cmp
	})

	out := make([]domain.MediaItem, len(keys))
	for i, k := range keys {
		out[i] = k.item
	}
	return out
}

// ParseDate reads the backend's ISO 8601 date. Both full timestamps and
// plain dates are accepted.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", domain.DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders s as YYYY-MM-DD, or "Invalid Date".
func FormatDate(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return invalidDate
	}
	return t.Format(domain.DateLayout)
}

// LargeImageURL swaps a trailing small-thumbnail name for the large one.
func LargeImageURL(thumb string) string {
	if base, ok := strings.CutSuffix(thumb, "/s.jpg"); ok {
		return base + "/l.jpg"
	}
	return thumb
}

// Rows maps items to display rows without changing their order.
func Rows(items []domain.MediaItem) []Row {
	rows := make([]Row, len(items))
	for i, it := range items {
		rows[i] = Row{
			ID:           it.ID,
			Title:        orPlaceholder(it.Title),
			Description:  orPlaceholder(it.Description),
			Date:         FormatDate(it.Date),
			Photographer: orPlaceholder(it.Photographer),
			Dimensions:   dimensions(it.Width, it.Height),
			ThumbnailURL: it.ThumbnailURL,
			LargeURL:     LargeImageURL(it.ThumbnailURL),
		}
	}
	return rows
}

func dimensions(w, h int) string {
	if w <= 0 || h <= 0 {
		return placeholder
	}
	return strconv.Itoa(w) + "×" + strconv.Itoa(h)
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}
