package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"media-search/internal/domain"
	"media-search/internal/events"
	"media-search/internal/metrics"
	"media-search/internal/query"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

// pendingCall is a search request held until the test answers it.
type pendingCall struct {
	params url.Values
	reply  chan reply
}

type reply struct {
	res *domain.PageResult
	err error
}

func (p *pendingCall) respond(res *domain.PageResult, err error) {
	p.reply <- reply{res: res, err: err}
}

// manualSearcher blocks every search until the test responds, and ignores
// cancellation so responses can be delivered in any order.
type manualSearcher struct {
	calls chan *pendingCall
}

func newManualSearcher() *manualSearcher {
	return &manualSearcher{calls: make(chan *pendingCall, 16)}
}

func (m *manualSearcher) Search(_ context.Context, params url.Values) (*domain.PageResult, error) {
	call := &pendingCall{params: params, reply: make(chan reply, 1)}
	m.calls <- call
	r := <-call.reply
	return r.res, r.err
}

func (m *manualSearcher) next(t *testing.T) *pendingCall {
	t.Helper()
	select {
	case c := <-m.calls:
		return c
	case <-time.After(waitTimeout):
		t.Fatal("expected a search request")
		return nil
	}
}

func (m *manualSearcher) assertNoCall(t *testing.T) {
	t.Helper()
	select {
	case c := <-m.calls:
		t.Fatalf("unexpected search request: %s", c.params.Encode())
	case <-time.After(20 * time.Millisecond):
	}
}

// recordingSearcher answers immediately from a function and records params.
type recordingSearcher struct {
	mu     sync.Mutex
	params []url.Values
	fn     func(params url.Values) (*domain.PageResult, error)
}

func (r *recordingSearcher) Search(_ context.Context, params url.Values) (*domain.PageResult, error) {
	r.mu.Lock()
	r.params = append(r.params, params)
	r.mu.Unlock()
	return r.fn(params)
}

func (r *recordingSearcher) last() url.Values {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.params[len(r.params)-1]
}

func (r *recordingSearcher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.params)
}

func page(prefix string, n int, next domain.Cursor) *domain.PageResult {
	items := make([]domain.MediaItem, n)
	for i := range items {
		items[i] = domain.MediaItem{
			ID:    fmt.Sprintf("%s-%d", prefix, i),
			Title: prefix,
			Date:  "2024-01-01T00:00:00Z",
		}
	}
	return &domain.PageResult{TotalCount: 1000, Size: n, Items: items, NextCursor: next}
}

// fullPages always returns a full page with a cursor derived from the request.
func fullPages() *recordingSearcher {
	return &recordingSearcher{fn: func(params url.Values) (*domain.PageResult, error) {
		size := 20
		fmt.Sscan(params.Get(query.ParamSize), &size)
		depth := len(params[query.ParamSearchAfter])
		return page("p", size, domain.Cursor{fmt.Sprint(12345 + depth), "doc-9"}), nil
	}}
}

func wait(t *testing.T, c *Controller) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
	return c.Snapshot()
}

func discardedCount() float64 {
	return testutil.ToFloat64(metrics.SearchFetches.WithLabelValues(metrics.OutcomeDiscarded))
}

func TestMountFetchesFirstPage(t *testing.T) {
	s := fullPages()
	c := NewController("s1", s)
	defer c.Close()

	assert.Equal(t, StatusIdle, c.Snapshot().Status)

	c.Mount()
	snap := wait(t, c)

	assert.Equal(t, StatusSuccess, snap.Status)
	assert.False(t, snap.Loading)
	assert.Equal(t, 0, snap.PageIndex)
	assert.False(t, snap.CanPrev)
	assert.True(t, snap.CanNext)
	require.NotNil(t, snap.Result)
	assert.Len(t, snap.Result.Items, 20)
	assert.Equal(t, "exactMatch=false&size=20&sortOrder=asc", s.last().Encode())
}

func TestOrderingInputsResetHistory(t *testing.T) {
	tests := map[string]func(c *Controller){
		"keyword":     func(c *Controller) { c.SubmitKeyword("alps") },
		"page size":   func(c *Controller) { require.NoError(t, c.SetPageSize(10)) },
		"sort":        func(c *Controller) { c.ToggleSort() },
		"date range":  func(c *Controller) { require.NoError(t, c.ApplyDateRange("2024-01-01", "2024-01-31")) },
		"clear range": func(c *Controller) { c.ClearDateRange() },
		"exact match": func(c *Controller) { c.SetExactMatch(true) },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			s := fullPages()
			c := NewController("s1", s)
			defer c.Close()

			c.Mount()
			wait(t, c)
			require.True(t, c.Next())
			wait(t, c)
			require.True(t, c.Next())
			snap := wait(t, c)
			require.Equal(t, 2, snap.PageIndex)

			mutate(c)
			snap = wait(t, c)

			assert.Equal(t, 0, snap.PageIndex)
			assert.False(t, snap.CanPrev)
			assert.False(t, s.last().Has(query.ParamSearchAfter))
		})
	}
}

func TestNavigationDoesNotReset(t *testing.T) {
	s := fullPages()
	c := NewController("s1", s)
	defer c.Close()

	c.Mount()
	wait(t, c)
	require.True(t, c.Next())
	wait(t, c)
	require.True(t, c.Next())
	wait(t, c)
	require.True(t, c.Prev())
	snap := wait(t, c)

	assert.Equal(t, 1, snap.PageIndex)
	assert.Equal(t, []string{"12345", "doc-9"}, s.last()[query.ParamSearchAfter])
}

func TestNextAndPrevRoundTrip(t *testing.T) {
	s := newManualSearcher()
	c := NewController("s1", s)
	defer c.Close()

	c.Mount()
	first := s.next(t)
	assert.False(t, first.params.Has(query.ParamSearchAfter))
	first.respond(page("one", 20, domain.Cursor{"12345", "doc-9"}), nil)
	snap := wait(t, c)
	require.True(t, snap.CanNext)

	require.True(t, c.Next())
	second := s.next(t)
	assert.Equal(t, []string{"12345", "doc-9"}, second.params[query.ParamSearchAfter])
	second.respond(page("two", 20, domain.Cursor{"12399", "doc-40"}), nil)
	snap = wait(t, c)
	assert.Equal(t, 1, snap.PageIndex)
	assert.True(t, snap.CanPrev)

	require.True(t, c.Prev())
	back := s.next(t)
	assert.False(t, back.params.Has(query.ParamSearchAfter))
	back.respond(page("one", 20, domain.Cursor{"12345", "doc-9"}), nil)
	snap = wait(t, c)
	assert.Equal(t, 0, snap.PageIndex)
	assert.False(t, snap.CanPrev)
	assert.False(t, c.Prev())
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	s := newManualSearcher()
	c := NewController("s1", s)
	defer c.Close()

	before := discardedCount()

	c.SubmitKeyword("first")
	f1 := s.next(t)
	c.SubmitKeyword("second")
	f2 := s.next(t)
	assert.Equal(t, "first", f1.params.Get(query.ParamKeyword))
	assert.Equal(t, "second", f2.params.Get(query.ParamKeyword))

	f2.respond(page("second", 20, domain.Cursor{"2"}), nil)
	snap := wait(t, c)
	require.Equal(t, "second", snap.Result.Items[0].Title)
	seq := snap.Seq

	f1.respond(page("first", 20, domain.Cursor{"1"}), nil)
	require.Eventually(t, func() bool { return discardedCount() >= before+1 }, waitTimeout, 5*time.Millisecond)

	snap = c.Snapshot()
	assert.Equal(t, "second", snap.Result.Items[0].Title)
	assert.Equal(t, seq, snap.Seq)
	assert.Equal(t, StatusSuccess, snap.Status)
}

func TestStaleResponseArrivingFirstIsDiscarded(t *testing.T) {
	s := newManualSearcher()
	c := NewController("s1", s)
	defer c.Close()

	before := discardedCount()

	c.SubmitKeyword("first")
	f1 := s.next(t)
	c.SubmitKeyword("second")
	f2 := s.next(t)

	f1.respond(nil, errors.New("boom"))
	require.Eventually(t, func() bool { return discardedCount() >= before+1 }, waitTimeout, 5*time.Millisecond)

	snap := c.Snapshot()
	assert.True(t, snap.Loading)
	assert.Empty(t, snap.Error)

	f2.respond(page("second", 3, nil), nil)
	snap = wait(t, c)
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.Equal(t, "second", snap.Result.Items[0].Title)
}

func TestShortPageDisablesNext(t *testing.T) {
	s := newManualSearcher()
	c := NewController("s1", s)
	defer c.Close()

	c.Mount()
	s.next(t).respond(page("p", 19, domain.Cursor{"x"}), nil)
	snap := wait(t, c)

	assert.False(t, snap.CanNext)
	assert.False(t, c.Next())
	s.assertNoCall(t)
	assert.Equal(t, 0, c.Snapshot().PageIndex)
}

func TestFullPageWithoutCursorDisablesNext(t *testing.T) {
	s := newManualSearcher()
	c := NewController("s1", s)
	defer c.Close()

	c.Mount()
	s.next(t).respond(page("p", 20, nil), nil)
	snap := wait(t, c)

	assert.False(t, snap.CanNext)
	assert.False(t, c.Next())
}

func TestRepeatedNextPushesOnce(t *testing.T) {
	s := newManualSearcher()
	c := NewController("s1", s)
	defer c.Close()

	c.Mount()
	s.next(t).respond(page("p", 20, domain.Cursor{"c1"}), nil)
	wait(t, c)

	require.True(t, c.Next())
	assert.False(t, c.Next())

	s.next(t).respond(page("p", 20, domain.Cursor{"c2"}), nil)
	snap := wait(t, c)
	assert.Equal(t, 1, snap.PageIndex)
	s.assertNoCall(t)
}

func TestFailureClearsResult(t *testing.T) {
	s := newManualSearcher()
	c := NewController("s1", s)
	defer c.Close()

	c.Mount()
	s.next(t).respond(page("p", 20, domain.Cursor{"c1"}), nil)
	require.NotNil(t, wait(t, c).Result)

	c.Refresh()
	s.next(t).respond(nil, errors.New("media api returned status 500"))
	snap := wait(t, c)

	assert.Equal(t, StatusFailed, snap.Status)
	assert.Nil(t, snap.Result)
	assert.Equal(t, "media api returned status 500", snap.Error)
	assert.False(t, snap.CanNext)

	// no automatic retry
	s.assertNoCall(t)

	c.Refresh()
	s.next(t).respond(page("p", 5, nil), nil)
	snap = wait(t, c)
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.Empty(t, snap.Error)
}

func TestInvalidDateRangeLeavesStateUntouched(t *testing.T) {
	s := fullPages()
	c := NewController("s1", s)
	defer c.Close()

	c.Mount()
	before := wait(t, c)

	err := c.ApplyDateRange("2024-01-01", "")
	require.Error(t, err)

	after := c.Snapshot()
	assert.Equal(t, before.Seq, after.Seq)
	assert.Nil(t, after.Query.DateRange)
	assert.Equal(t, 1, s.count())
}

func TestDateRangeIsEncoded(t *testing.T) {
	s := fullPages()
	c := NewController("s1", s)
	defer c.Close()

	require.NoError(t, c.ApplyDateRange("2024-01-01", "2024-01-31"))
	wait(t, c)
	assert.Equal(t, "2024-01-01", s.last().Get(query.ParamStartDate))
	assert.Equal(t, "2024-01-31", s.last().Get(query.ParamEndDate))

	require.NoError(t, c.ApplyDateRange("", ""))
	snap := wait(t, c)
	assert.Nil(t, snap.Query.DateRange)
	assert.False(t, s.last().Has(query.ParamStartDate))
}

func TestSetPageSizeValidation(t *testing.T) {
	c := NewController("s1", fullPages(), WithPageSizes([]int{5, 10, 20}))
	defer c.Close()

	assert.ErrorIs(t, c.SetPageSize(0), ErrInvalidPageSize)
	assert.ErrorIs(t, c.SetPageSize(7), ErrInvalidPageSize)
	require.NoError(t, c.SetPageSize(10))
	assert.Equal(t, 10, wait(t, c).Query.PageSize)
}

func TestSortToggle(t *testing.T) {
	s := fullPages()
	c := NewController("s1", s)
	defer c.Close()

	c.ToggleSort()
	snap := wait(t, c)
	assert.Equal(t, domain.SortDescending, snap.Query.SortOrder)
	assert.Equal(t, "desc", s.last().Get(query.ParamSortOrder))

	c.SetSortOrder(domain.SortAscending)
	assert.Equal(t, domain.SortAscending, wait(t, c).Query.SortOrder)
}

func TestPublishesSnapshots(t *testing.T) {
	broker := events.NewBroker()
	ch, unsubscribe := broker.Subscribe(events.TopicSearchState)
	defer unsubscribe()

	s := newManualSearcher()
	c := NewController("s1", s, WithPublisher(broker))
	defer c.Close()

	c.Mount()
	ev := <-ch
	assert.Equal(t, StatusLoading, ev.Data.(Snapshot).Status)

	s.next(t).respond(page("p", 1, nil), nil)
	ev = <-ch
	snap := ev.Data.(Snapshot)
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.Equal(t, "s1", snap.SessionID)
}

func TestCommitHookReceivesHistory(t *testing.T) {
	docs := make(chan domain.SessionDocument, 4)
	s := fullPages()
	c := NewController("s1", s, WithCommitHook(func(doc domain.SessionDocument) { docs <- doc }))
	defer c.Close()

	c.SubmitKeyword("alps")
	wait(t, c)
	<-docs
	require.True(t, c.Next())
	wait(t, c)

	doc := <-docs
	assert.Equal(t, "s1", doc.ID)
	assert.Equal(t, "alps", doc.Query.Keyword)
	require.Len(t, doc.History, 2)
	assert.Equal(t, domain.Cursor{"12345", "doc-9"}, doc.History[1])
}

func TestRestoredHistoryFetchesCurrentPage(t *testing.T) {
	s := fullPages()
	c := NewController("s1", s, WithHistory([]domain.Cursor{nil, {"12345", "doc-9"}}))
	defer c.Close()

	c.Mount()
	snap := wait(t, c)
	assert.Equal(t, 1, snap.PageIndex)
	assert.Equal(t, []string{"12345", "doc-9"}, s.last()[query.ParamSearchAfter])
}

func TestWaitHonoursContext(t *testing.T) {
	s := newManualSearcher()
	c := NewController("s1", s)
	defer c.Close()

	c.Mount()
	call := s.next(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Wait(ctx), context.DeadlineExceeded)

	call.respond(page("p", 1, nil), nil)
	wait(t, c)
}

func TestCloseDiscardsInFlightFetch(t *testing.T) {
	s := newManualSearcher()
	c := NewController("s1", s)

	c.Mount()
	call := s.next(t)
	c.Close()

	// Wait returns once closed
	require.NoError(t, c.Wait(context.Background()))

	call.respond(page("p", 1, nil), nil)
	assert.False(t, c.Next())
	c.Refresh()
	s.assertNoCall(t)
	assert.Equal(t, StatusLoading, c.Snapshot().Status)
}
