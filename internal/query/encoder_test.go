package query

import (
	"testing"
	"time"

	"media-search/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestEncodeDefaults(t *testing.T) {
	v := Encode(domain.DefaultQuery(), nil)

	assert.Equal(t, "exactMatch=false&size=20&sortOrder=asc", v.Encode())
	assert.False(t, v.Has(ParamKeyword))
	assert.False(t, v.Has(ParamSearchAfter))
}

func TestEncodeAllFields(t *testing.T) {
	q := domain.Query{
		Keyword:    "  alps  ",
		PageSize:   10,
		SortOrder:  domain.SortDescending,
		DateRange:  &domain.DateRange{Start: day("2024-01-01"), End: day("2024-01-31")},
		ExactMatch: true,
	}
	v := Encode(q, domain.Cursor{"12345", "doc-9"})

	assert.Equal(t, "alps", v.Get(ParamKeyword))
	assert.Equal(t, "10", v.Get(ParamSize))
	assert.Equal(t, "desc", v.Get(ParamSortOrder))
	assert.Equal(t, "2024-01-01", v.Get(ParamStartDate))
	assert.Equal(t, "2024-01-31", v.Get(ParamEndDate))
	assert.Equal(t, "true", v.Get(ParamExactMatch))
	assert.Equal(t, []string{"12345", "doc-9"}, v[ParamSearchAfter])
}

func TestEncodeIsIdempotent(t *testing.T) {
	q := domain.Query{Keyword: "x", PageSize: 5, SortOrder: domain.SortAscending}
	c := domain.Cursor{"b", "a"}

	first := Encode(q, c).Encode()
	second := Encode(q, c).Encode()
	require.Equal(t, first, second)
	// cursor order is preserved, not sorted
	assert.Equal(t, []string{"b", "a"}, Encode(q, c)[ParamSearchAfter])
}

func TestEncodeOmitsBlankKeyword(t *testing.T) {
	q := domain.DefaultQuery()
	q.Keyword = "   "
	assert.False(t, Encode(q, nil).Has(ParamKeyword))
}
