package clientform

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/buysell-kh/backoffice/internal/i18n"
	"github.com/buysell-kh/backoffice/internal/phone"
	"github.com/buysell-kh/backoffice/internal/shared"
	"github.com/buysell-kh/backoffice/internal/view"
)

const basePath = "/buysell"

// Handler wires the client form endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	pageSize  int
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, pageSize int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, pageSize: pageSize}
}

// MountRoutes registers the client form routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showForm)
	r.Post("/client/phone", h.livePhone)
	r.Post("/client/search", h.search)
	r.Post("/client", h.create)
	r.Post("/client/reset", h.reset)
}

type pageData struct {
	State          State
	PhoneError     string
	NextID         int64
	Nav            formNav
	IdempotencyKey string
}

type formNav struct {
	Name    Nav
	Phone   Nav
	Address Nav
	Search  Nav
}

func newFormNav() formNav {
	nav := Navigation()
	return formNav{Name: nav[FieldName], Phone: nav[FieldPhone], Address: nav[FieldAddress], Search: nav[FieldSearch]}
}

type phoneFieldData struct {
	Value string
	Error string
	Valid bool
	Nav   Nav
}

func (h *Handler) showForm(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	st := LoadState(sess)

	data := pageData{
		State:          st,
		NextID:         h.service.PreviewNextID(r.Context(), h.pageSize),
		Nav:            newFormNav(),
		IdempotencyKey: uuid.NewString(),
	}
	if st.PhoneError != "" {
		data.PhoneError = i18n.T(st.PhoneError)
	}
	if sess != nil {
		if err := SaveState(sess, st.Settle()); err != nil {
			h.logger.Warn("clientform: save state", slog.Any("error", err))
		}
	}
	h.render(w, r, "pages/buysell.html", data, http.StatusOK)
}

// livePhone reformats the phone field as staff type and returns the field
// fragment.
func (h *Handler) livePhone(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	st := LoadState(sess)

	value := phone.FormatInput(st.Form.Phone, r.PostFormValue("phone_number"))
	formatted, err := phone.Live(value)
	st.Form.Phone = formatted
	st.PhoneError = phoneErrorKey(err)
	if sess != nil {
		if err := SaveState(sess, st); err != nil {
			h.logger.Warn("clientform: save state", slog.Any("error", err))
		}
	}

	data := phoneFieldData{Value: formatted, Valid: err == nil && phone.Valid(formatted), Nav: Navigation()[FieldPhone]}
	if st.PhoneError != "" {
		data.Error = i18n.T(st.PhoneError)
	}
	h.fragment(w, r, "partials/phone_field.html", data)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	st := LoadState(sess)
	st.Form = formFromRequest(r)

	next, notice, err := h.service.Search(r.Context(), st)
	if h.abandoned(r.Context(), err) {
		return
	}
	h.finish(w, r, sess, next, notice)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	st := LoadState(sess)
	st.Form = formFromRequest(r)

	next, notice, created, err := h.service.Create(r.Context(), st, r.PostFormValue("idempotency_key"))
	if h.abandoned(r.Context(), err) {
		return
	}
	if created {
		h.logger.Info("client created", slog.String("name", st.Form.Name))
	}
	h.finish(w, r, sess, next, notice)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	h.finish(w, r, sess, h.service.Reset(r.Context()), i18n.Notice{})
}

// abandoned reports whether the browser went away while the API was being
// called, in which case nothing is written back.
func (h *Handler) abandoned(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		h.logger.Debug("clientform: request ended before the API answered", slog.Any("error", err))
		return true
	}
	return !shared.Alive(ctx)
}

func (h *Handler) finish(w http.ResponseWriter, r *http.Request, sess *shared.Session, st State, notice i18n.Notice) {
	if sess != nil {
		if err := SaveState(sess, st); err != nil {
			h.logger.Error("clientform: save state", slog.Any("error", err))
		}
		if !notice.Empty() {
			sess.AddFlash(notice.Flash())
		}
	}
	http.Redirect(w, r, basePath, http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, tmpl string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)

	var flashes []shared.FlashMessage
	if sess != nil {
		flashes = sess.PopFlashes()
	}

	viewData := view.TemplateData{
		Title:       "បំពេញអតិថិជនថ្មី",
		CSRFToken:   csrfToken,
		Flashes:     flashes,
		CurrentPath: r.URL.Path,
		Data:        data,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, tmpl, viewData); err != nil {
		h.logger.Error("template render failed", slog.Any("error", err), slog.String("template", tmpl))
	}
}

// fragment renders a partial for the page script. Queued flashes stay in the
// session for the next full page.
func (h *Handler) fragment(w http.ResponseWriter, r *http.Request, tmpl string, data any) {
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), shared.SessionFromContext(r.Context()))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := h.templates.Render(w, tmpl, view.TemplateData{CSRFToken: csrfToken, CurrentPath: r.URL.Path, Data: data}); err != nil {
		h.logger.Error("template render failed", slog.Any("error", err), slog.String("template", tmpl))
	}
}

func formFromRequest(r *http.Request) Form {
	return Form{
		Name:    r.PostFormValue("cus_name"),
		Phone:   r.PostFormValue("phone_number"),
		Address: r.PostFormValue("address"),
	}
}
