// Path: internal/delivery/ui/handlers.go
package ui

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"media-search/internal/daterange"
	"media-search/internal/domain"
	"media-search/internal/logging"
	"media-search/internal/presenter"
	"media-search/internal/service"

	"github.com/go-chi/chi/v5"
)

const sessionCookie = "media_search_session"

//go:embed templates/*.html
var templateFS embed.FS

// sessionService defines what the UI needs from the session manager.
type sessionService interface {
	Create(ctx context.Context) (*service.Controller, error)
	Get(ctx context.Context, id string) (*service.Controller, error)
}

// Handlers holds dependencies for UI handlers.
type Handlers struct {
	sessions    sessionService
	templates   *template.Template
	pageSizes   []int
	waitTimeout time.Duration
}

// NewHandlers creates a new UI handler struct.
func NewHandlers(s sessionService, pageSizes []int, waitTimeout time.Duration) *Handlers {
	tpl := template.Must(template.ParseFS(templateFS, "templates/*.html"))
	if waitTimeout <= 0 {
		waitTimeout = 10 * time.Second
	}
	return &Handlers{
		sessions:    s,
		templates:   tpl,
		pageSizes:   pageSizes,
		waitTimeout: waitTimeout,
	}
}

// Routes returns the router for the HTML pages. Every form posts to an
// action endpoint that redirects back to "/".
func (h *Handlers) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.handleShowIndex)
	r.Post("/search", h.action(func(c *service.Controller, r *http.Request) error {
		c.SubmitKeyword(r.PostFormValue("keyword"))
		return nil
	}))
	r.Post("/page-size", h.action(func(c *service.Controller, r *http.Request) error {
		size, err := strconv.Atoi(r.PostFormValue("pageSize"))
		if err != nil {
			return service.ErrInvalidPageSize
		}
		return c.SetPageSize(size)
	}))
	r.Post("/sort", h.action(func(c *service.Controller, r *http.Request) error {
		c.ToggleSort()
		return nil
	}))
	r.Post("/exact-match", h.action(func(c *service.Controller, r *http.Request) error {
		exact, _ := strconv.ParseBool(r.PostFormValue("exactMatch"))
		c.SetExactMatch(exact)
		return nil
	}))
	r.Post("/date-range/clear", h.action(func(c *service.Controller, r *http.Request) error {
		c.ClearDateRange()
		return nil
	}))
	r.Post("/next", h.action(func(c *service.Controller, r *http.Request) error {
		c.Next()
		return nil
	}))
	r.Post("/prev", h.action(func(c *service.Controller, r *http.Request) error {
		c.Prev()
		return nil
	}))
	r.Post("/refresh", h.action(func(c *service.Controller, r *http.Request) error {
		c.Refresh()
		return nil
	}))
	r.Post("/date-range", h.handleApplyDateRange)
	return r
}

// handleShowIndex serves the main search page.
func (h *Handlers) handleShowIndex(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.session(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, ctrl, http.StatusOK, pageForm{})
}

// handleApplyDateRange re-renders the page with the error next to the
// offending input instead of redirecting when the range is invalid.
func (h *Handlers) handleApplyDateRange(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.session(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	start, end := r.PostFormValue("start"), r.PostFormValue("end")
	if err := ctrl.ApplyDateRange(start, end); err != nil {
		var dateErr *daterange.Error
		if !errors.As(err, &dateErr) {
			h.fail(w, r, err)
			return
		}
		h.render(w, r, ctrl, http.StatusUnprocessableEntity, pageForm{
			start:      start,
			end:        end,
			dateError:  dateErr.Error(),
			errorField: dateErr.Field(),
		})
		return
	}
	h.wait(r, ctrl)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// action wraps a mutation in the session lookup and the redirect.
func (h *Handlers) action(fn func(*service.Controller, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctrl, err := h.session(w, r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if err := fn(ctrl, r); err != nil {
			if errors.Is(err, service.ErrInvalidPageSize) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			h.fail(w, r, err)
			return
		}
		h.wait(r, ctrl)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// session returns the controller for the request's cookie, creating a new
// session (and cookie) when there is none or it expired.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*service.Controller, error) {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		ctrl, err := h.sessions.Get(r.Context(), c.Value)
		if err == nil {
			return ctrl, nil
		}
		if !errors.Is(err, service.ErrSessionNotFound) {
			return nil, err
		}
	}

	ctrl, err := h.sessions.Create(r.Context())
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    ctrl.ID(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return ctrl, nil
}

func (h *Handlers) wait(r *http.Request, ctrl *service.Controller) {
	ctx, cancel := context.WithTimeout(r.Context(), h.waitTimeout)
	defer cancel()
	_ = ctrl.Wait(ctx)
}

// pageForm carries what the user typed when it cannot be applied.
type pageForm struct {
	start, end string
	dateError  string
	errorField string
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, ctrl *service.Controller, status int, form pageForm) {
	h.wait(r, ctrl)
	data := buildTemplateData(ctrl.Snapshot(), r.URL.Query().Get("dateSort"), h.pageSizes, form)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("template execution failed")
	}
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	logging.Ctx(r.Context()).Error().Err(err).Msg("ui request failed")
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// buildTemplateData is a helper to construct the data map for templates.
func buildTemplateData(snap service.Snapshot, dateSort string, pageSizes []int, form pageForm) map[string]any {
	order := snap.Query.SortOrder
	if parsed, err := domain.ParseSortOrder(dateSort); err == nil {
		order = parsed
	}

	var rows []presenter.Row
	if snap.Result != nil {
		rows = presenter.Rows(presenter.SortByDate(snap.Result.Items, order))
	}

	startInput, endInput := form.start, form.end
	if form.errorField == "" && snap.Query.DateRange != nil {
		startInput = snap.Query.DateRange.StartString()
		endInput = snap.Query.DateRange.EndString()
	}

	return map[string]any{
		"Snapshot":       snap,
		"Rows":           rows,
		"PageSizes":      pageSizes,
		"PageNumber":     snap.PageIndex + 1,
		"DateSort":       string(order),
		"NextDateSort":   string(order.Toggle()),
		"StartInput":     startInput,
		"EndInput":       endInput,
		"DateError":      form.dateError,
		"DateErrorField": form.errorField,
	}
}
