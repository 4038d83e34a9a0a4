// Path: internal/service/controller.go
package service

import (
	"context"
	"errors"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"media-search/internal/cursor"
	"media-search/internal/daterange"
	"media-search/internal/domain"
	"media-search/internal/events"
	"media-search/internal/logging"
	"media-search/internal/metrics"
	"media-search/internal/query"

	"github.com/rs/zerolog"
)

// ErrInvalidPageSize is returned for a page size that is not positive or not offered.
var ErrInvalidPageSize = errors.New("invalid page size")

// Status is the controller's fetch state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Searcher runs a search request. *mediaapi.Client implements it.
type Searcher interface {
	Search(ctx context.Context, params url.Values) (*domain.PageResult, error)
}

// Publisher receives controller snapshots. *events.Broker implements it.
type Publisher interface {
	Publish(topic string, data any)
}

// CommitHook is called after each committed fetch with the state to persist.
// It runs outside the controller lock.
type CommitHook func(doc domain.SessionDocument)

// Snapshot is an immutable view of a controller.
type Snapshot struct {
	SessionID string
	Query     domain.Query
	Status    Status
	Loading   bool
	Error     string
	Result    *domain.PageResult
	PageIndex int
	CanPrev   bool
	CanNext   bool
	Seq       uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithQuery sets the initial query.
func WithQuery(q domain.Query) Option {
	return func(c *Controller) { c.query = q }
}

// WithHistory restores a stored cursor stack.
func WithHistory(entries []domain.Cursor) Option {
	return func(c *Controller) { c.history.Restore(entries) }
}

// WithPageSizes limits SetPageSize to the given choices.
func WithPageSizes(sizes []int) Option {
	return func(c *Controller) { c.pageSizes = slices.Clone(sizes) }
}

// WithPublisher publishes a Snapshot on events.TopicSearchState after every transition.
func WithPublisher(p Publisher) Option {
	return func(c *Controller) { c.publisher = p }
}

// WithCommitHook registers fn to run after every committed fetch.
func WithCommitHook(fn CommitHook) Option {
	return func(c *Controller) { c.onCommit = fn }
}

// Controller owns the query, cursor history and current page of one search
// session. Every trigger supersedes the fetch in flight; only the response
// to the most recently issued request may change what is shown.
type Controller struct {
	id        string
	searcher  Searcher
	publisher Publisher
	onCommit  CommitHook
	pageSizes []int
	logger    zerolog.Logger

	baseCtx context.Context
	stop    context.CancelFunc

	mu         sync.Mutex
	query      domain.Query
	history    *cursor.History
	status     Status
	result     *domain.PageResult
	errMsg     string
	nextCursor domain.Cursor
	fetchSize  int
	seq        uint64
	cancel     context.CancelFunc
	idle       chan struct{}
	closed     bool
}

// NewController creates an idle controller. Call Mount to load the first page.
func NewController(id string, searcher Searcher, opts ...Option) *Controller {
	ctx, stop := context.WithCancel(context.Background())
	c := &Controller{
		id:       id,
		searcher: searcher,
		baseCtx:  ctx,
		stop:     stop,
		query:    domain.DefaultQuery(),
		history:  cursor.NewHistory(),
		status:   StatusIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.Component("controller").With().Str("session", id).Logger()
	return c
}

// ID returns the session id.
func (c *Controller) ID() string { return c.id }

// Mount loads the page the history currently points at.
func (c *Controller) Mount() {
	c.apply(TriggerMount, nil)
}

// Refresh re-fetches the current page with the current cursor.
func (c *Controller) Refresh() {
	c.apply(TriggerRefresh, nil)
}

// SubmitKeyword sets the keyword and starts over from page 1.
func (c *Controller) SubmitKeyword(keyword string) {
	keyword = strings.TrimSpace(keyword)
	c.apply(TriggerKeyword, func() bool {
		c.query.Keyword = keyword
		return true
	})
}

// SetPageSize changes the page size and starts over from page 1.
func (c *Controller) SetPageSize(size int) error {
	if size <= 0 || (len(c.pageSizes) > 0 && !slices.Contains(c.pageSizes, size)) {
		return ErrInvalidPageSize
	}
	c.apply(TriggerPageSize, func() bool {
		c.query.PageSize = size
		return true
	})
	return nil
}

// ToggleSort flips the sort order and starts over from page 1.
func (c *Controller) ToggleSort() {
	c.apply(TriggerSort, func() bool {
		c.query.SortOrder = c.query.SortOrder.Toggle()
		return true
	})
}

// SetSortOrder sets the sort order and starts over from page 1.
func (c *Controller) SetSortOrder(order domain.SortOrder) {
	c.apply(TriggerSort, func() bool {
		c.query.SortOrder = order
		return true
	})
}

// ApplyDateRange validates the pair and, if valid, applies it and starts
// over from page 1. Two blank bounds clear the range. On a validation error
// nothing changes and no request is sent.
func (c *Controller) ApplyDateRange(start, end string) error {
	r, err := daterange.Validate(start, end)
	if err != nil {
		return err
	}
	c.apply(TriggerDateRange, func() bool {
		c.query.DateRange = r
		return true
	})
	return nil
}

// ClearDateRange removes the range and starts over from page 1.
func (c *Controller) ClearDateRange() {
	c.apply(TriggerDateRange, func() bool {
		c.query.DateRange = nil
		return true
	})
}

// SetExactMatch sets the exact-match flag and starts over from page 1.
func (c *Controller) SetExactMatch(exact bool) {
	c.apply(TriggerExactMatch, func() bool {
		c.query.ExactMatch = exact
		return true
	})
}

// Next moves to the following page. It reports false, and does nothing,
// when there is no next page. The next cursor is consumed so a repeated
// call before the page arrives cannot push it twice.
func (c *Controller) Next() bool {
	return c.apply(TriggerNext, func() bool {
		if !c.canNextLocked() {
			return false
		}
		return c.history.PushNext(c.nextCursor)
	})
}

// Prev moves to the previous page. It reports false on page 1.
func (c *Controller) Prev() bool {
	return c.apply(TriggerPrev, func() bool {
		return c.history.PopPrev()
	})
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Wait blocks until no fetch is in flight or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels any fetch in flight. Later triggers are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stop()
	c.markIdleLocked()
}

// apply runs mutate under the lock, then applies the trigger's rule.
// A nil mutate always proceeds.
func (c *Controller) apply(t Trigger, mutate func() bool) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	if mutate != nil && !mutate() {
		c.mu.Unlock()
		return false
	}

	rule := ruleFor(t)
	if rule.resetHistory {
		c.history.Reset()
	}
	var run func()
	if rule.fetch {
		run = c.startFetchLocked(t)
	}
	c.publishLocked()
	c.mu.Unlock()

	if run != nil {
		go run()
	}
	return true
}

// startFetchLocked issues a new request for the current query and cursor.
// It bumps the sequence number and cancels the superseded request.
func (c *Controller) startFetchLocked(t Trigger) func() {
	c.seq++
	seq := c.seq

	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(c.baseCtx)
	ctx = logging.ContextWithRequestID(ctx, logging.GenerateRequestID())
	c.cancel = cancel

	c.status = StatusLoading
	c.nextCursor = nil
	c.fetchSize = c.query.PageSize
	if c.idle == nil {
		c.idle = make(chan struct{})
	}

	params := query.Encode(c.query, c.history.Current())
	c.logger.Debug().
		Str("trigger", string(t)).
		Uint64("seq", seq).
		Str("params", params.Encode()).
		Msg("fetch issued")

	started := time.Now()
	return func() {
		defer cancel()
		res, err := c.searcher.Search(ctx, params)
		c.complete(seq, res, err, started)
	}
}

// complete commits a response if it belongs to the newest request.
func (c *Controller) complete(seq uint64, res *domain.PageResult, err error, started time.Time) {
	elapsed := time.Since(started).Seconds()

	c.mu.Lock()
	if c.closed || seq != c.seq {
		latest := c.seq
		c.mu.Unlock()
		metrics.SearchFetches.WithLabelValues(metrics.OutcomeDiscarded).Inc()
		metrics.SearchFetchDuration.WithLabelValues(metrics.OutcomeDiscarded).Observe(elapsed)
		c.logger.Debug().Uint64("seq", seq).Uint64("latest", latest).Msg("stale response discarded")
		return
	}

	c.cancel = nil
	if err != nil {
		c.status = StatusFailed
		c.errMsg = err.Error()
		c.result = nil
		c.nextCursor = nil
		metrics.SearchFetches.WithLabelValues(metrics.OutcomeFailed).Inc()
		metrics.SearchFetchDuration.WithLabelValues(metrics.OutcomeFailed).Observe(elapsed)
		c.logger.Warn().Err(err).Uint64("seq", seq).Msg("fetch failed")
	} else {
		if res == nil {
			res = &domain.PageResult{}
		}
		if res.Items == nil {
			res.Items = []domain.MediaItem{}
		}
		c.status = StatusSuccess
		c.errMsg = ""
		c.result = res
		c.nextCursor = res.NextCursor.Clone()
		metrics.SearchFetches.WithLabelValues(metrics.OutcomeCommitted).Inc()
		metrics.SearchFetchDuration.WithLabelValues(metrics.OutcomeCommitted).Observe(elapsed)
		c.logger.Debug().
			Uint64("seq", seq).
			Int("items", len(res.Items)).
			Int("total", res.TotalCount).
			Int("page", c.history.PageIndex()).
			Msg("fetch committed")
	}
	c.publishLocked()

	// Waiters are released only after the hook ran, so a caller of Wait
	// can rely on the committed state being persisted.
	idle := c.idle
	c.idle = nil
	hook := c.onCommit
	doc := domain.SessionDocument{
		ID:        c.id,
		Query:     c.query,
		History:   c.history.Entries(),
		UpdatedAt: time.Now().UTC(),
	}
	c.mu.Unlock()

	if hook != nil {
		hook(doc)
	}
	if idle != nil {
		close(idle)
	}
}

func (c *Controller) markIdleLocked() {
	if c.idle != nil {
		close(c.idle)
		c.idle = nil
	}
}

// canNextLocked: a next cursor was returned and the page was full.
// A short page means end of results even when a cursor is present.
func (c *Controller) canNextLocked() bool {
	return c.status == StatusSuccess &&
		c.result != nil &&
		!c.nextCursor.IsEmpty() &&
		len(c.result.Items) == c.fetchSize
}

func (c *Controller) snapshotLocked() Snapshot {
	q := c.query
	if q.DateRange != nil {
		r := *q.DateRange
		q.DateRange = &r
	}

	var result *domain.PageResult
	if c.result != nil {
		result = &domain.PageResult{
			TotalCount: c.result.TotalCount,
			Size:       c.result.Size,
			Items:      slices.Clone(c.result.Items),
			NextCursor: c.result.NextCursor.Clone(),
		}
	}

	pageIndex := c.history.PageIndex()
	return Snapshot{
		SessionID: c.id,
		Query:     q,
		Status:    c.status,
		Loading:   c.status == StatusLoading,
		Error:     c.errMsg,
		Result:    result,
		PageIndex: pageIndex,
		CanPrev:   pageIndex > 0,
		CanNext:   c.canNextLocked(),
		Seq:       c.seq,
	}
}

func (c *Controller) publishLocked() {
	if c.publisher != nil {
		c.publisher.Publish(events.TopicSearchState, c.snapshotLocked())
	}
}
