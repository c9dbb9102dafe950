package orderpage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/buysell-kh/backoffice/internal/backend"
	"github.com/buysell-kh/backoffice/internal/debounce"
	"github.com/buysell-kh/backoffice/internal/i18n"
	"github.com/buysell-kh/backoffice/internal/shared"
	"github.com/buysell-kh/backoffice/internal/view"
	"github.com/buysell-kh/backoffice/jobs"
)

const basePath = "/orders"

// Locker guards an action against concurrent duplicates.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// PrintQueue hands receipt jobs to the worker.
type PrintQueue interface {
	EnqueuePrintOrder(ctx context.Context, payload jobs.PrintOrderPayload) error
}

// PrintStore serves rendered receipts.
type PrintStore interface {
	Fetch(ctx context.Context, token string) ([]byte, error)
}

// Inbox yields notices produced by background work for a session.
type Inbox interface {
	Drain(ctx context.Context, sessionID string) ([]shared.FlashMessage, error)
}

// Deps collects the handler collaborators. Locker, Prints, PDFs and Inbox
// are optional.
type Deps struct {
	Logger    *slog.Logger
	Service   *Service
	Templates *view.Engine
	CSRF      *shared.CSRFManager
	Debounce  *debounce.Group
	Locker    Locker
	Prints    PrintQueue
	PDFs      PrintStore
	Inbox     Inbox
}

// Handler wires the order page endpoints.
type Handler struct {
	Deps
}

// NewHandler constructs a Handler.
func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Debounce == nil {
		deps.Debounce = debounce.NewGroup(300 * time.Millisecond)
	}
	return &Handler{Deps: deps}
}

// MountRoutes registers the order page routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/search", h.liveSearch)
	r.Post("/search", h.search)
	r.Post("/page", h.changePage)
	r.Post("/filters/clear", h.clearFilters)
	r.Post("/filters/clear/{field}", h.clearFilter)
	r.Get("/clients/{id}", h.detail)
	r.Post("/back", h.back)

	r.Post("/clients/{id}/delete", h.openClientDelete)
	r.Post("/modal/client/confirm", h.confirmClientDelete)
	r.Post("/modal/client/cancel", h.cancelClientDelete)
	r.Post("/orders/{id}/delete", h.openOrderDelete)
	r.Post("/modal/order/confirm", h.confirmOrderDelete)
	r.Post("/modal/order/cancel", h.cancelOrderDelete)
	r.Post("/orders/{id}", h.updateOrder)
	r.Post("/orders/{id}/print", h.printOrder)
	r.Get("/prints/{token}", h.download)
}

type listView struct {
	State         State
	ActiveFilters int
	From          int
	To            int
	Total         int
	Pages         []int
	ShowControls  bool
	Notice        *shared.FlashMessage
}

type detailView struct {
	Detail      *backend.ClientDetail
	ClientModal Modal
	OrderModal  Modal
}

func (h *Handler) newListView(st State, notice i18n.Notice) listView {
	from, to, total := shared.DisplayRange(st.Page)
	v := listView{
		State:         st,
		ActiveFilters: st.Filters.Active(),
		From:          from,
		To:            to,
		Total:         total,
		Pages:         shared.PageNumbers(st.Page.TotalPages),
		ShowControls:  st.Page.ShowControls(len(st.Clients)),
	}
	if !notice.Empty() {
		msg := notice.Flash()
		v.Notice = &msg
	}
	return v
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	st := h.Service.Back(LoadState(sess))
	if !st.Loaded {
		next, notice, err := h.Service.Load(r.Context(), st, 1)
		if h.abandoned(err) {
			return
		}
		st = next
		h.flash(sess, notice)
	}
	h.save(sess, st)
	h.render(w, r, "pages/orders_list.html", h.newListView(st, i18n.Notice{}), http.StatusOK)
}

// liveSearch answers the search-as-you-type requests of the page script.
// Calls are debounced per session; a call replaced by a newer one answers 204.
func (h *Handler) liveSearch(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	filters := FiltersFromValues(r.URL.Query())
	key := r.RemoteAddr
	if sess != nil {
		key = sess.ID
	}

	var (
		next   State
		notice i18n.Notice
	)
	err := h.Debounce.Do(r.Context(), key, func(ctx context.Context) error {
		st := LoadState(sess)
		var err error
		switch {
		case !filters.Empty():
			next, notice, err = h.Service.Search(ctx, st, filters, 1)
		case st.SearchMode:
			next, notice, err = h.Service.Clear(ctx, st)
		default:
			st.Filters = filters
			next = st
		}
		return err
	})
	if errors.Is(err, debounce.ErrSuperseded) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if h.abandoned(err) {
		return
	}
	h.save(sess, next)
	h.fragment(w, r, "partials/orders_results.html", h.newListView(next, notice))
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	if !h.parse(w, r) {
		return
	}
	sess := shared.SessionFromContext(r.Context())
	st := LoadState(sess)
	filters := FiltersFromValues(r.PostForm)
	if filters.Empty() {
		st.Filters = filters
		h.finish(w, r, sess, st, i18n.Failure(i18n.AtLeastOneCriterion))
		return
	}
	next, notice, err := h.Service.Search(r.Context(), h.Service.Back(st), filters, 1)
	if h.abandoned(err) {
		return
	}
	h.finish(w, r, sess, next, notice)
}

func (h *Handler) changePage(w http.ResponseWriter, r *http.Request) {
	if !h.parse(w, r) {
		return
	}
	sess := shared.SessionFromContext(r.Context())
	st := LoadState(sess)
	page, err := strconv.Atoi(r.PostFormValue("page"))
	if err != nil {
		h.finish(w, r, sess, st, i18n.Notice{})
		return
	}
	next, notice, err := h.Service.ChangePage(r.Context(), st, page)
	if h.abandoned(err) {
		return
	}
	h.finish(w, r, sess, next, notice)
}

func (h *Handler) clearFilters(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	next, notice, err := h.Service.Clear(r.Context(), h.Service.Back(LoadState(sess)))
	if h.abandoned(err) {
		return
	}
	h.finish(w, r, sess, next, notice)
}

func (h *Handler) clearFilter(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	st := LoadState(sess)
	filters, ok := st.Filters.Clear(FilterField(chi.URLParam(r, "field")))
	if !ok {
		h.finish(w, r, sess, st, i18n.Failure(i18n.InvalidRequest))
		return
	}
	st.Filters = filters
	h.finish(w, r, sess, st, i18n.Notice{})
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	st := LoadState(sess)
	id, ok := idParam(r)
	if !ok {
		h.finish(w, r, sess, h.Service.Back(st), i18n.Failure(i18n.InvalidRequest))
		return
	}

	if !st.DetailFresh || st.DetailID() != id {
		next, notice, err := h.Service.Detail(r.Context(), st, id)
		if h.abandoned(err) {
			return
		}
		if !notice.Empty() {
			h.finish(w, r, sess, h.Service.Back(next), notice)
			return
		}
		if next.DetailID() != st.DetailID() {
			next.OrderModal.Cancel()
		}
		st = next
	}
	st.DetailFresh = false
	h.save(sess, st)
	h.render(w, r, "pages/orders_detail.html", detailView{
		Detail:      st.Detail,
		ClientModal: st.ClientModal,
		OrderModal:  st.OrderModal,
	}, http.StatusOK)
}

func (h *Handler) back(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	h.finish(w, r, sess, h.Service.Back(LoadState(sess)), i18n.Notice{})
}

func (h *Handler) openClientDelete(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	st := LoadState(sess)
	id, ok := idParam(r)
	if !ok {
		h.finish(w, r, sess, st, i18n.Failure(i18n.InvalidRequest))
		return
	}
	h.finish(w, r, sess, h.keepDetail(h.Service.OpenClientDelete(st, id)), i18n.Notice{})
}

func (h *Handler) cancelClientDelete(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	st := LoadState(sess)
	st.ClientModal.Cancel()
	h.finish(w, r, sess, h.keepDetail(st), i18n.Notice{})
}

func (h *Handler) confirmClientDelete(w http.ResponseWriter, r *http.Request) {
	h.confirm(w, r, "client-delete", h.Service.ConfirmClientDelete)
}

func (h *Handler) openOrderDelete(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	st := LoadState(sess)
	id, ok := idParam(r)
	if !ok {
		h.finish(w, r, sess, st, i18n.Failure(i18n.InvalidRequest))
		return
	}
	h.finish(w, r, sess, h.keepDetail(h.Service.OpenOrderDelete(st, id)), i18n.Notice{})
}

func (h *Handler) cancelOrderDelete(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	st := LoadState(sess)
	st.OrderModal.Cancel()
	h.finish(w, r, sess, h.keepDetail(st), i18n.Notice{})
}

func (h *Handler) confirmOrderDelete(w http.ResponseWriter, r *http.Request) {
	h.confirm(w, r, "order-delete", h.Service.ConfirmOrderDelete)
}

// confirm runs a modal confirmation under the session's in-flight lock.
func (h *Handler) confirm(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context, State) (State, i18n.Notice, error)) {
	sess := shared.SessionFromContext(r.Context())
	st := LoadState(sess)

	if h.Locker != nil && sess != nil {
		release, err := h.Locker.Acquire(r.Context(), shared.InFlightKey(sess.ID, action))
		switch {
		case errors.Is(err, shared.ErrInFlight):
			h.finish(w, r, sess, h.keepDetail(st), i18n.Info(i18n.RequestRunning))
			return
		case err != nil:
			h.Logger.Warn("orderpage: in-flight lock unavailable", slog.String("action", action), slog.Any("error", err))
		default:
			defer release()
		}
	}

	next, notice, err := fn(r.Context(), st)
	if h.abandoned(err) {
		return
	}
	h.finish(w, r, sess, next, notice)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	if !h.parse(w, r) {
		return
	}
	sess := shared.SessionFromContext(r.Context())
	st := LoadState(sess)
	id, ok := idParam(r)
	update, valid := orderUpdateFromForm(r)
	if !ok || !valid {
		h.finish(w, r, sess, h.keepDetail(st), i18n.Failure(i18n.InvalidRequest))
		return
	}
	next, notice, err := h.Service.UpdateOrder(r.Context(), st, id, update)
	if h.abandoned(err) {
		return
	}
	h.finish(w, r, sess, next, notice)
}

func (h *Handler) printOrder(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	st := LoadState(sess)
	id, ok := idParam(r)
	if ok {
		_, ok = st.Detail.Order(id)
	}
	if !ok || sess == nil || h.Prints == nil {
		h.finish(w, r, sess, h.keepDetail(st), i18n.Failure(i18n.PrintError))
		return
	}

	err := h.Prints.EnqueuePrintOrder(r.Context(), jobs.PrintOrderPayload{
		SessionID: sess.ID,
		ClientID:  int64(st.DetailID()),
		OrderID:   int64(id),
	})
	if err != nil {
		h.Logger.Error("orderpage: enqueue print", slog.Int64("order_id", int64(id)), slog.Any("error", err))
		h.finish(w, r, sess, h.keepDetail(st), i18n.Failure(i18n.PrintError))
		return
	}
	h.finish(w, r, sess, h.keepDetail(st), i18n.Info(i18n.PrintQueued))
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if h.PDFs == nil || token == "" {
		http.NotFound(w, r)
		return
	}
	pdf, err := h.PDFs.Fetch(r.Context(), token)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			h.Logger.Warn("orderpage: fetch receipt", slog.Any("error", err))
		}
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=receipt-%s.pdf", token))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

// keepDetail marks a stored detail as current so redirecting back to it does
// not fetch again when nothing changed.
func (h *Handler) keepDetail(st State) State {
	if st.Detail != nil {
		st.DetailFresh = true
	}
	return st
}

func (h *Handler) abandoned(err error) bool {
	if err == nil {
		return false
	}
	h.Logger.Debug("orderpage: request ended before the API answered", slog.Any("error", err))
	return true
}

func (h *Handler) parse(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) save(sess *shared.Session, st State) {
	if sess == nil {
		return
	}
	if err := SaveState(sess, st); err != nil {
		h.Logger.Error("orderpage: save state", slog.Any("error", err))
	}
}

func (h *Handler) flash(sess *shared.Session, notice i18n.Notice) {
	if sess != nil && !notice.Empty() {
		sess.AddFlash(notice.Flash())
	}
}

// finish stores the state and redirects to the view it describes.
func (h *Handler) finish(w http.ResponseWriter, r *http.Request, sess *shared.Session, st State, notice i18n.Notice) {
	h.save(sess, st)
	h.flash(sess, notice)
	target := basePath
	if id := st.DetailID(); id.Valid() {
		target = fmt.Sprintf("%s/clients/%d", basePath, int64(id))
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, tmpl string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.CSRF.EnsureToken(r.Context(), sess)

	var flashes []shared.FlashMessage
	if sess != nil {
		flashes = sess.PopFlashes()
		if h.Inbox != nil {
			pending, err := h.Inbox.Drain(r.Context(), sess.ID)
			if err != nil {
				h.Logger.Warn("orderpage: drain notices", slog.Any("error", err))
			}
			flashes = append(flashes, pending...)
		}
	}

	viewData := view.TemplateData{
		Title:       "ស្វែងរកការកម្ម៉ង់",
		CSRFToken:   csrfToken,
		Flashes:     flashes,
		CurrentPath: r.URL.Path,
		Data:        data,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.Templates.Render(w, tmpl, viewData); err != nil {
		h.Logger.Error("template render failed", slog.Any("error", err), slog.String("template", tmpl))
	}
}

// fragment renders a partial for the page script. Queued flashes stay in the
// session for the next full page.
func (h *Handler) fragment(w http.ResponseWriter, r *http.Request, tmpl string, data any) {
	csrfToken, _ := h.CSRF.EnsureToken(r.Context(), shared.SessionFromContext(r.Context()))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := h.Templates.Render(w, tmpl, view.TemplateData{CSRFToken: csrfToken, CurrentPath: r.URL.Path, Data: data}); err != nil {
		h.Logger.Error("template render failed", slog.Any("error", err), slog.String("template", tmpl))
	}
}

func idParam(r *http.Request) (backend.ID, bool) {
	n, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return backend.ID(n), true
}

// orderUpdateFromForm reads the editable order fields. Blank fields are left
// out; a malformed deposit makes the form invalid.
func orderUpdateFromForm(r *http.Request) (backend.OrderUpdate, bool) {
	var out backend.OrderUpdate
	if raw := strings.TrimSpace(r.PostFormValue("order_deposit")); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			return out, false
		}
		out.Deposit = &d
	}
	if raw := strings.TrimSpace(r.PostFormValue("order_date")); raw != "" {
		out.Date = &raw
	}
	return out, out.Deposit != nil || out.Date != nil
}
