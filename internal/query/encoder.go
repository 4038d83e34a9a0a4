// Path: internal/query/encoder.go

// Package query turns search state into request parameters for GET media/search.
package query

import (
	"net/url"
	"strconv"
	"strings"

	"media-search/internal/domain"
)

// Parameter names understood by the media search endpoint.
const (
	ParamKeyword     = "query"
	ParamSize        = "size"
	ParamSortOrder   = "sortOrder"
	ParamStartDate   = "startDate"
	ParamEndDate     = "endDate"
	ParamExactMatch  = "exactMatch"
	ParamSearchAfter = "searchAfter[]"
)

// Encode builds the parameter set for q, resuming after c when c is non-empty.
// Only present fields are emitted; exactMatch is always sent as a boolean
// literal. Cursor values are appended under ParamSearchAfter in their
// original order. url.Values.Encode sorts keys, so the encoded string is
// identical for identical inputs.
func Encode(q domain.Query, c domain.Cursor) url.Values {
	v := url.Values{}

	if kw := strings.TrimSpace(q.Keyword); kw != "" {
		v.Set(ParamKeyword, kw)
	}
	if q.PageSize > 0 {
		v.Set(ParamSize, strconv.Itoa(q.PageSize))
	}
	if q.SortOrder != "" {
		v.Set(ParamSortOrder, string(q.SortOrder))
	}
	if q.DateRange != nil {
		v.Set(ParamStartDate, q.DateRange.StartString())
		v.Set(ParamEndDate, q.DateRange.EndString())
	}
	v.Set(ParamExactMatch, strconv.FormatBool(q.ExactMatch))

	for _, part := range c {
		v.Add(ParamSearchAfter, part)
	}
	return v
}
