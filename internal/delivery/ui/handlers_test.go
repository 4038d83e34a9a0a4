package ui

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"media-search/internal/domain"
	"media-search/internal/query"
	"media-search/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pageSearcher struct{}

func (pageSearcher) Search(_ context.Context, params url.Values) (*domain.PageResult, error) {
	size, _ := strconv.Atoi(params.Get(query.ParamSize))
	items := make([]domain.MediaItem, size)
	for i := range items {
		items[i] = domain.MediaItem{
			ID:           fmt.Sprintf("m-%d", i),
			Title:        fmt.Sprintf("Item %d", i),
			Description:  "",
			Date:         fmt.Sprintf("2024-02-%02dT00:00:00Z", i%28+1),
			ThumbnailURL: fmt.Sprintf("https://media.example.com/st/%d/s.jpg", i),
		}
	}
	depth := len(params[query.ParamSearchAfter])
	return &domain.PageResult{
		TotalCount: 77,
		Items:      items,
		NextCursor: domain.Cursor{strconv.Itoa(depth + 1)},
	}, nil
}

func newClient(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()
	manager := service.NewManager(service.ManagerConfig{
		DefaultQuery: domain.DefaultQuery(),
		PageSizes:    []int{5, 10, 20},
	}, pageSearcher{}, nil, nil)
	t.Cleanup(manager.Shutdown)

	srv := httptest.NewServer(NewHandlers(manager, []int{5, 10, 20}, 2*time.Second).Routes())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return srv, &http.Client{Jar: jar}
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestIndexRendersFirstPage(t *testing.T) {
	srv, client := newClient(t)

	resp, err := client.Get(srv.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	html := body(t, resp)

	assert.Contains(t, html, "Total Results: 77")
	assert.Contains(t, html, "Page 1")
	assert.Contains(t, html, "https://media.example.com/st/0/l.jpg")
	assert.Contains(t, html, "<td>--</td>")
	assert.Contains(t, html, `<option value="20" selected>`)
}

func TestActionsRedirectAndKeepSession(t *testing.T) {
	srv, client := newClient(t)

	resp, err := client.Get(srv.URL + "/")
	require.NoError(t, err)
	body(t, resp)

	resp, err = client.PostForm(srv.URL+"/next", nil)
	require.NoError(t, err)
	assert.Contains(t, body(t, resp), "Page 2")

	resp, err = client.PostForm(srv.URL+"/search", url.Values{"keyword": {"alps"}})
	require.NoError(t, err)
	html := body(t, resp)
	assert.Contains(t, html, "Page 1")
	assert.Contains(t, html, `value="alps"`)

	resp, err = client.PostForm(srv.URL+"/page-size", url.Values{"pageSize": {"5"}})
	require.NoError(t, err)
	assert.Contains(t, body(t, resp), `<option value="5" selected>`)

	resp, err = client.PostForm(srv.URL+"/page-size", url.Values{"pageSize": {"7"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInvalidDateRangeShowsInlineError(t *testing.T) {
	srv, client := newClient(t)

	resp, err := client.PostForm(srv.URL+"/date-range", url.Values{"start": {"2024-02-01"}, "end": {"2024-01-01"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	html := body(t, resp)
	assert.Contains(t, html, "start date must be before or equal to end date")
	assert.Contains(t, html, `value="2024-02-01"`)

	resp, err = client.PostForm(srv.URL+"/date-range", url.Values{"start": {"2024-01-01"}, "end": {"2024-01-31"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), `value="2024-01-31"`)
}

func TestDateColumnSortIsLocal(t *testing.T) {
	srv, client := newClient(t)

	resp, err := client.Get(srv.URL + "/?dateSort=desc")
	require.NoError(t, err)
	html := body(t, resp)

	first := strings.Index(html, "2024-02-20")
	last := strings.Index(html, "2024-02-01")
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, last)
	assert.Less(t, first, last)
	assert.Contains(t, html, "Date (desc)")
}
