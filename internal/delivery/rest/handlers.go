// Path: internal/delivery/rest/handlers.go
package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"media-search/internal/domain"
	"media-search/internal/presenter"
	"media-search/internal/service"
	"media-search/internal/validation"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

// sessionService defines what the handlers need from the session manager.
type sessionService interface {
	Create(ctx context.Context) (*service.Controller, error)
	Get(ctx context.Context, id string) (*service.Controller, error)
	Delete(ctx context.Context, id string) error
}

// SessionHandlers holds dependencies for session HTTP handlers.
type SessionHandlers struct {
	sessions sessionService
	// waitTimeout bounds how long a mutating call waits for its fetch.
	waitTimeout time.Duration
}

// NewSessionHandlers creates a new handler struct.
func NewSessionHandlers(s sessionService, waitTimeout time.Duration) *SessionHandlers {
	return &SessionHandlers{sessions: s, waitTimeout: waitTimeout}
}

// --- Request and response bodies ---

type keywordRequest struct {
	Keyword string `json:"keyword"`
}

type pageSizeRequest struct {
	PageSize int `json:"pageSize" validate:"gt=0"`
}

type sortRequest struct {
	SortOrder string `json:"sortOrder" validate:"omitempty,oneof=asc desc"`
}

type exactMatchRequest struct {
	ExactMatch *bool `json:"exactMatch" validate:"required"`
}

type dateRangeRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type queryView struct {
	Keyword    string `json:"keyword"`
	PageSize   int    `json:"pageSize"`
	SortOrder  string `json:"sortOrder"`
	StartDate  string `json:"startDate,omitempty"`
	EndDate    string `json:"endDate,omitempty"`
	ExactMatch bool   `json:"exactMatch"`
}

type snapshotView struct {
	SessionID  string             `json:"sessionId"`
	Query      queryView          `json:"query"`
	Status     string             `json:"status"`
	Loading    bool               `json:"loading"`
	Error      string             `json:"error,omitempty"`
	TotalCount int                `json:"totalCount"`
	Items      []domain.MediaItem `json:"items"`
	NextCursor []string           `json:"nextCursor,omitempty"`
	PageIndex  int                `json:"pageIndex"`
	CanPrev    bool               `json:"canPrev"`
	CanNext    bool               `json:"canNext"`
	Seq        uint64             `json:"seq"`
}

type rowsView struct {
	SortOrder string          `json:"sortOrder"`
	Rows      []presenter.Row `json:"rows"`
}

func toSnapshotView(s service.Snapshot) snapshotView {
	v := snapshotView{
		SessionID: s.SessionID,
		Query: queryView{
			Keyword:    s.Query.Keyword,
			PageSize:   s.Query.PageSize,
			SortOrder:  string(s.Query.SortOrder),
			ExactMatch: s.Query.ExactMatch,
		},
		Status:    string(s.Status),
		Loading:   s.Loading,
		Error:     s.Error,
		Items:     []domain.MediaItem{},
		PageIndex: s.PageIndex,
		CanPrev:   s.CanPrev,
		CanNext:   s.CanNext,
		Seq:       s.Seq,
	}
	if r := s.Query.DateRange; r != nil {
		v.Query.StartDate = r.StartString()
		v.Query.EndDate = r.EndString()
	}
	if s.Result != nil {
		v.TotalCount = s.Result.TotalCount
		v.Items = s.Result.Items
		v.NextCursor = s.Result.NextCursor
	}
	return v
}

// --- Handlers ---

// CreateSession handles POST /api/sessions.
func (h *SessionHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.sessions.Create(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	h.respond(w, r, ctrl, http.StatusCreated)
}

// GetSession handles GET /api/sessions/{id}. It never waits for a fetch.
func (h *SessionHandlers) GetSession(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotView(ctrl.Snapshot()))
}

// DeleteSession handles DELETE /api/sessions/{id}.
func (h *SessionHandlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetRows handles GET /api/sessions/{id}/rows?sort=asc|desc. The current
// page is re-ordered by date locally; no request is sent upstream.
func (h *SessionHandlers) GetRows(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	snap := ctrl.Snapshot()

	order := snap.Query.SortOrder
	if raw := r.URL.Query().Get("sort"); raw != "" {
		parsed, err := domain.ParseSortOrder(raw)
		if err != nil {
			WriteError(w, r, validation.Errors{{Field: "sort", Tag: "oneof", Param: "asc desc"}})
			return
		}
		order = parsed
	}

	var items []domain.MediaItem
	if snap.Result != nil {
		items = presenter.SortByDate(snap.Result.Items, order)
	}
	writeJSON(w, http.StatusOK, rowsView{SortOrder: string(order), Rows: presenter.Rows(items)})
}

// SubmitKeyword handles POST /api/sessions/{id}/keyword.
func (h *SessionHandlers) SubmitKeyword(w http.ResponseWriter, r *http.Request) {
	var req keywordRequest
	h.mutate(w, r, &req, func(c *service.Controller) error {
		c.SubmitKeyword(req.Keyword)
		return nil
	})
}

// SetPageSize handles POST /api/sessions/{id}/page-size.
func (h *SessionHandlers) SetPageSize(w http.ResponseWriter, r *http.Request) {
	var req pageSizeRequest
	h.mutate(w, r, &req, func(c *service.Controller) error {
		return c.SetPageSize(req.PageSize)
	})
}

// SetSort handles POST /api/sessions/{id}/sort. An empty body toggles.
func (h *SessionHandlers) SetSort(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	h.mutate(w, r, &req, func(c *service.Controller) error {
		if req.SortOrder == "" {
			c.ToggleSort()
			return nil
		}
		c.SetSortOrder(domain.SortOrder(req.SortOrder))
		return nil
	})
}

// SetExactMatch handles POST /api/sessions/{id}/exact-match.
func (h *SessionHandlers) SetExactMatch(w http.ResponseWriter, r *http.Request) {
	var req exactMatchRequest
	h.mutate(w, r, &req, func(c *service.Controller) error {
		c.SetExactMatch(*req.ExactMatch)
		return nil
	})
}

// ApplyDateRange handles POST /api/sessions/{id}/date-range.
func (h *SessionHandlers) ApplyDateRange(w http.ResponseWriter, r *http.Request) {
	var req dateRangeRequest
	h.mutate(w, r, &req, func(c *service.Controller) error {
		return c.ApplyDateRange(req.Start, req.End)
	})
}

// ClearDateRange handles DELETE /api/sessions/{id}/date-range.
func (h *SessionHandlers) ClearDateRange(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, nil, func(c *service.Controller) error {
		c.ClearDateRange()
		return nil
	})
}

// Next handles POST /api/sessions/{id}/next.
func (h *SessionHandlers) Next(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, nil, func(c *service.Controller) error {
		if !c.Next() {
			return errNavigation
		}
		return nil
	})
}

// Prev handles POST /api/sessions/{id}/prev.
func (h *SessionHandlers) Prev(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, nil, func(c *service.Controller) error {
		if !c.Prev() {
			return errNavigation
		}
		return nil
	})
}

// Refresh handles POST /api/sessions/{id}/refresh.
func (h *SessionHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, nil, func(c *service.Controller) error {
		c.Refresh()
		return nil
	})
}

// --- Helpers ---

func (h *SessionHandlers) lookup(w http.ResponseWriter, r *http.Request) (*service.Controller, bool) {
	ctrl, err := h.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, err)
		return nil, false
	}
	return ctrl, true
}

// mutate decodes and validates the body into req (when non-nil), applies fn
// and answers with the snapshot once the triggered fetch has settled.
func (h *SessionHandlers) mutate(w http.ResponseWriter, r *http.Request, req any, fn func(*service.Controller) error) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if req != nil {
		if err := decodeBody(r, req); err != nil {
			WriteError(w, r, err)
			return
		}
		if err := validation.ValidateStruct(req); err != nil {
			WriteError(w, r, err)
			return
		}
	}
	if err := fn(ctrl); err != nil {
		WriteError(w, r, err)
		return
	}
	h.respond(w, r, ctrl, http.StatusOK)
}

func (h *SessionHandlers) respond(w http.ResponseWriter, r *http.Request, ctrl *service.Controller, status int) {
	ctx := r.Context()
	if h.waitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.waitTimeout)
		defer cancel()
	}
	// On timeout the snapshot is returned with loading=true.
	_ = ctrl.Wait(ctx)
	writeJSON(w, status, toSnapshotView(ctrl.Snapshot()))
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		return errors.Join(errBadBody, err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Join(errBadBody, err)
	}
	return nil
}
