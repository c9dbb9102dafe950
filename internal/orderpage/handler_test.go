package orderpage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buysell-kh/backoffice/internal/backend"
	"github.com/buysell-kh/backoffice/internal/debounce"
	"github.com/buysell-kh/backoffice/internal/i18n"
	"github.com/buysell-kh/backoffice/internal/shared"
	"github.com/buysell-kh/backoffice/internal/view"
	"github.com/buysell-kh/backoffice/jobs"
)

type stubLocker struct{ err error }

func (l stubLocker) Acquire(context.Context, string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	return func() {}, nil
}

type stubQueue struct{ payloads []jobs.PrintOrderPayload }

func (q *stubQueue) EnqueuePrintOrder(_ context.Context, p jobs.PrintOrderPayload) error {
	q.payloads = append(q.payloads, p)
	return nil
}

type stubPDFs map[string][]byte

func (s stubPDFs) Fetch(_ context.Context, token string) ([]byte, error) {
	pdf, ok := s[token]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return pdf, nil
}

type stubInbox struct{ pending []shared.FlashMessage }

func (s *stubInbox) Drain(context.Context, string) ([]shared.FlashMessage, error) {
	out := s.pending
	s.pending = nil
	return out, nil
}

type harness struct {
	router chi.Router
	sess   *shared.Session
	api    *fakeAPI
}

func newHarness(t *testing.T, api *fakeAPI, deps Deps) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sm := shared.NewSessionManager(client, "test_session", "secret", 0, false)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	engine, err := view.NewEngine()
	require.NoError(t, err)

	deps.Service = NewService(api, nil, 10, nil)
	deps.Templates = engine
	deps.CSRF = shared.NewCSRFManager("csrf")
	if deps.Debounce == nil {
		deps.Debounce = debounce.NewGroup(0)
	}
	h := NewHandler(deps)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	r.Route(basePath, h.MountRoutes)
	return &harness{router: r, sess: sess, api: api}
}

func (h *harness) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *harness) flashes() []string {
	var out []string
	for _, f := range h.sess.PopFlashes() {
		out = append(out, f.Message)
	}
	return out
}

func TestListLoadsFirstPage(t *testing.T) {
	h := newHarness(t, &fakeAPI{list: pageOf(sok, dara)}, Deps{})

	rec := h.do(http.MethodGet, "/orders/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Sok")
	assert.Contains(t, rec.Body.String(), "Dara")

	st := LoadState(h.sess)
	assert.True(t, st.Loaded)
	assert.Len(t, st.Clients, 2)

	h.do(http.MethodGet, "/orders/", nil)
	assert.Len(t, h.api.listCalls, 1)
}

func TestListShowsBackgroundNotices(t *testing.T) {
	inbox := &stubInbox{pending: []shared.FlashMessage{{Kind: shared.FlashSuccess, Message: "receipt ready", Link: "/orders/prints/abc"}}}
	h := newHarness(t, &fakeAPI{list: pageOf(sok)}, Deps{Inbox: inbox})

	rec := h.do(http.MethodGet, "/orders/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "receipt ready")
	assert.Contains(t, rec.Body.String(), "/orders/prints/abc")
}

func TestSearchRequiresCriterion(t *testing.T) {
	h := newHarness(t, &fakeAPI{}, Deps{})

	rec := h.do(http.MethodPost, "/orders/search", url.Values{"search_name": {"  "}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/orders", rec.Header().Get("Location"))
	assert.Equal(t, []string{i18n.T(i18n.AtLeastOneCriterion)}, h.flashes())
	assert.Empty(t, h.api.listCalls)
}

func TestSearchStoresResults(t *testing.T) {
	h := newHarness(t, &fakeAPI{list: pageOf(dara)}, Deps{})

	rec := h.do(http.MethodPost, "/orders/search", url.Values{"search_address": {"Kandal"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	st := LoadState(h.sess)
	assert.True(t, st.SearchMode)
	assert.Equal(t, "Kandal", st.Filters.Address)
	assert.Equal(t, []backend.Client{dara}, st.Clients)
}

func TestLiveSearchRendersFragment(t *testing.T) {
	h := newHarness(t, &fakeAPI{list: pageOf(dara)}, Deps{})

	rec := h.do(http.MethodGet, "/orders/search?search_name=Dara", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `id="orders-results"`)
	assert.Contains(t, body, "Dara")
	assert.NotContains(t, body, "<html")
	assert.True(t, LoadState(h.sess).SearchMode)
}

func TestLiveSearchEmptyLeavesSearchMode(t *testing.T) {
	h := newHarness(t, &fakeAPI{list: pageOf(sok, dara)}, Deps{})
	require.NoError(t, SaveState(h.sess, State{SearchMode: true, Loaded: true, Filters: Filters{Name: "x"}}))

	rec := h.do(http.MethodGet, "/orders/search", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := LoadState(h.sess)
	assert.False(t, st.SearchMode)
	assert.Len(t, st.Clients, 2)
}

func TestClearFilterField(t *testing.T) {
	h := newHarness(t, &fakeAPI{}, Deps{})
	require.NoError(t, SaveState(h.sess, State{Filters: Filters{Name: "Sok", Phone: "011"}}))

	rec := h.do(http.MethodPost, "/orders/filters/clear/search_phone", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, Filters{Name: "Sok"}, LoadState(h.sess).Filters)

	h.do(http.MethodPost, "/orders/filters/clear/bogus", url.Values{})
	assert.Equal(t, []string{i18n.T(i18n.InvalidRequest)}, h.flashes())
}

func TestDetailRendersClient(t *testing.T) {
	api := &fakeAPI{detail: func(id backend.ID) (*backend.ClientDetail, error) {
		return &backend.ClientDetail{Info: sok, Orders: []backend.Order{{ID: 11, Date: "2024-05-01"}}}, nil
	}}
	h := newHarness(t, api, Deps{})

	rec := h.do(http.MethodGet, "/orders/clients/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sok")
	assert.Contains(t, rec.Body.String(), "2024-05-01")
	assert.EqualValues(t, 1, LoadState(h.sess).DetailID())
}

func TestDetailFailureReturnsToList(t *testing.T) {
	api := &fakeAPI{detail: func(backend.ID) (*backend.ClientDetail, error) {
		return nil, &backend.APIError{Status: 404}
	}}
	h := newHarness(t, api, Deps{})

	rec := h.do(http.MethodGet, "/orders/clients/5", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/orders", rec.Header().Get("Location"))
	assert.Equal(t, []string{i18n.T(i18n.DetailLoadFailed)}, h.flashes())

	rec = h.do(http.MethodGet, "/orders/clients/abc", nil)
	assert.Equal(t, "/orders", rec.Header().Get("Location"))
}

func TestDetailUsesFreshState(t *testing.T) {
	h := newHarness(t, &fakeAPI{}, Deps{})
	require.NoError(t, SaveState(h.sess, State{Detail: &backend.ClientDetail{Info: sok}, DetailFresh: true}))

	rec := h.do(http.MethodGet, "/orders/clients/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, h.api.detailCalls)
	assert.False(t, LoadState(h.sess).DetailFresh)
}

func TestConfirmWhileInFlight(t *testing.T) {
	h := newHarness(t, &fakeAPI{}, Deps{Locker: stubLocker{err: shared.ErrInFlight}})
	st := State{Clients: []backend.Client{sok}}
	st.ClientModal.Open(sok.ID, sok.Name)
	require.NoError(t, SaveState(h.sess, st))

	rec := h.do(http.MethodPost, "/orders/modal/client/confirm", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, []string{i18n.T(i18n.RequestRunning)}, h.flashes())
	assert.Empty(t, h.api.deleted)
	assert.True(t, LoadState(h.sess).ClientModal.IsOpen)
}

func TestConfirmClientDeleteRedirectsToList(t *testing.T) {
	h := newHarness(t, &fakeAPI{list: pageOf(dara)}, Deps{Locker: stubLocker{}})
	st := State{Detail: &backend.ClientDetail{Info: sok}}
	st.ClientModal.Open(sok.ID, sok.Name)
	require.NoError(t, SaveState(h.sess, st))

	rec := h.do(http.MethodPost, "/orders/modal/client/confirm", url.Values{})
	assert.Equal(t, "/orders", rec.Header().Get("Location"))
	assert.Equal(t, []backend.ID{1}, h.api.deleted)
	assert.Equal(t, []string{i18n.T(i18n.ClientDeleted)}, h.flashes())
}

func TestUpdateOrderRejectsBadDeposit(t *testing.T) {
	h := newHarness(t, &fakeAPI{}, Deps{})
	require.NoError(t, SaveState(h.sess, State{Detail: &backend.ClientDetail{Info: sok}}))

	rec := h.do(http.MethodPost, "/orders/orders/11", url.Values{"order_deposit": {"-4"}})
	assert.Equal(t, "/orders/clients/1", rec.Header().Get("Location"))
	assert.Equal(t, []string{i18n.T(i18n.InvalidRequest)}, h.flashes())
	assert.Empty(t, h.api.updates)
	assert.True(t, LoadState(h.sess).DetailFresh)
}

func TestPrintOrderEnqueues(t *testing.T) {
	queue := &stubQueue{}
	h := newHarness(t, &fakeAPI{}, Deps{Prints: queue})
	require.NoError(t, SaveState(h.sess, State{Detail: &backend.ClientDetail{Info: sok, Orders: []backend.Order{{ID: 11}}}}))

	rec := h.do(http.MethodPost, "/orders/orders/11/print", url.Values{})
	assert.Equal(t, "/orders/clients/1", rec.Header().Get("Location"))
	require.Len(t, queue.payloads, 1)
	assert.Equal(t, jobs.PrintOrderPayload{SessionID: h.sess.ID, ClientID: 1, OrderID: 11}, queue.payloads[0])
	assert.Equal(t, []string{i18n.T(i18n.PrintQueued)}, h.flashes())

	h.do(http.MethodPost, "/orders/orders/99/print", url.Values{})
	assert.Len(t, queue.payloads, 1)
	assert.Equal(t, []string{i18n.T(i18n.PrintError)}, h.flashes())
}

func TestDownloadReceipt(t *testing.T) {
	h := newHarness(t, &fakeAPI{}, Deps{PDFs: stubPDFs{"abc": []byte("%PDF-1.7")}})

	rec := h.do(http.MethodGet, "/orders/prints/abc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.7", rec.Body.String())

	rec = h.do(http.MethodGet, "/orders/prints/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
