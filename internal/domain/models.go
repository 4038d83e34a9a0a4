// Path: internal/domain/models.go
package domain

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// DateLayout is the wire and display format for date-only values.
const DateLayout = "2006-01-02"

// --- Sort order ---

// SortOrder is the direction of the backend's date-sorted scan.
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// Toggle returns the opposite direction.
func (o SortOrder) Toggle() SortOrder {
	if o == SortDescending {
		return SortAscending
	}
	return SortDescending
}

// ParseSortOrder accepts "asc" or "desc" (case-insensitive).
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case SortAscending:
		return SortAscending, nil
	case SortDescending:
		return SortDescending, nil
	default:
		return "", fmt.Errorf("unknown sort order: %q", s)
	}
}

// --- Query ---

// DateRange is an inclusive, date-only interval. Start is never after End.
type DateRange struct {
	Start time.Time `bson:"start"`
	End   time.Time `bson:"end"`
}

// StartString returns the start date in DateLayout.
func (r DateRange) StartString() string { return r.Start.Format(DateLayout) }

// EndString returns the end date in DateLayout.
func (r DateRange) EndString() string { return r.End.Format(DateLayout) }

// Equal reports whether both ranges cover the same days.
func (r *DateRange) Equal(other *DateRange) bool {
	if r == nil || other == nil {
		return r == nil && other == nil
	}
	return r.Start.Equal(other.Start) && r.End.Equal(other.End)
}

// Query is the user-editable search state.
// A cursor obtained under one Query is only valid for the same keyword,
// sort order, date range and exact-match flag.
type Query struct {
	Keyword    string     `bson:"keyword"`
	PageSize   int        `bson:"pageSize" validate:"gt=0"`
	SortOrder  SortOrder  `bson:"sortOrder" validate:"oneof=asc desc"`
	DateRange  *DateRange `bson:"dateRange,omitempty"`
	ExactMatch bool       `bson:"exactMatch"`
}

// DefaultPageSize is used when nothing else is configured.
const DefaultPageSize = 20

// DefaultQuery returns the state a fresh search page starts with.
func DefaultQuery() Query {
	return Query{
		PageSize:  DefaultPageSize,
		SortOrder: SortAscending,
	}
}

// --- Cursor ---

// Cursor is an opaque search-after token: the sort values of the last hit
// of a page. It is never parsed, only passed back as received.
type Cursor []string

// IsEmpty reports whether the cursor carries no values (first page).
func (c Cursor) IsEmpty() bool { return len(c) == 0 }

// Clone returns an independent copy.
func (c Cursor) Clone() Cursor {
	if c == nil {
		return nil
	}
	out := make(Cursor, len(c))
	copy(out, c)
	return out
}

// UnmarshalJSON accepts an array of strings, numbers or booleans and
// coerces every element to its string form. Numbers keep their literal
// text so large integer sort keys survive without float rounding.
func (c *Cursor) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = nil
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("cursor is not an array: %w", err)
	}

	out := make(Cursor, 0, len(raw))
	for i, elem := range raw {
		elem = bytes.TrimSpace(elem)
		if len(elem) == 0 {
			return fmt.Errorf("cursor element %d is empty", i)
		}
		switch elem[0] {
		case '"':
			var s string
			if err := json.Unmarshal(elem, &s); err != nil {
				return fmt.Errorf("cursor element %d: %w", i, err)
			}
			out = append(out, s)
		case '{', '[':
			return fmt.Errorf("cursor element %d is not a scalar", i)
		default:
			out = append(out, string(elem))
		}
	}
	*c = out
	return nil
}

// --- Media ---

// MediaItem is a single search hit as shown to the user.
// ID, Title, Description, Date and ThumbnailURL are always sent by the
// backend; Photographer, Width and Height are optional (zero value = unknown).
// Date is kept as the backend's ISO 8601 string and never localised here.
type MediaItem struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Date         string `json:"date"`
	Photographer string `json:"photographer,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

// FlexibleInt is an integer that can be unmarshaled from a JSON number
// or from a numeric JSON string ("1024"). Empty strings decode to 0.
type FlexibleInt int

// UnmarshalJSON implements the json.Unmarshaler interface for FlexibleInt.
func (fi *FlexibleInt) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*fi = FlexibleInt(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("value is neither a number nor a string: %s", data)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*fi = 0
		return nil
	}
	parsed, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*fi = FlexibleInt(parsed)
	return nil
}

// MediaSource is the raw index document some backends return inside
// search hits instead of a mapped MediaItem.
type MediaSource struct {
	ImageNumber  string      `json:"bildnummer"`
	Date         string      `json:"datum"`
	SearchText   string      `json:"suchtext"`
	Photographer string      `json:"fotografen"`
	Height       FlexibleInt `json:"hoehe"`
	Width        FlexibleInt `json:"breite"`
	Database     string      `json:"db"`
}

// ToMediaItem maps a raw document to the display contract. The first line
// of the search text becomes the title; thumbnailBase is the media host
// root under which images live as {db}/{bildnummer}/s.jpg.
func (s MediaSource) ToMediaItem(id, thumbnailBase string) MediaItem {
	if id == "" {
		id = s.ImageNumber
	}
	title, _, _ := strings.Cut(strings.TrimSpace(s.SearchText), "\n")

	var thumb string
	if thumbnailBase != "" && s.ImageNumber != "" {
		thumb = strings.TrimRight(thumbnailBase, "/") + "/" + s.Database + "/" + s.ImageNumber + "/s.jpg"
	}

	return MediaItem{
		ID:           id,
		Title:        strings.TrimSpace(title),
		Description:  strings.TrimSpace(s.SearchText),
		Date:         s.Date,
		Photographer: s.Photographer,
		Width:        int(s.Width),
		Height:       int(s.Height),
		ThumbnailURL: thumb,
	}
}

// PageResult is one fetched page. NextCursor is set only when the backend
// reported a continuation token.
type PageResult struct {
	TotalCount int
	Size       int
	Items      []MediaItem
	NextCursor Cursor
}

// --- Persistence ---

// SessionDocument is the persisted navigation state of one search session.
// History[i] is the cursor that fetches page i.
type SessionDocument struct {
	ID        string    `bson:"_id"`
	Query     Query     `bson:"query"`
	History   []Cursor  `bson:"history"`
	UpdatedAt time.Time `bson:"updatedAt"`
}
