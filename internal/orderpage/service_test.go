package orderpage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buysell-kh/backoffice/internal/backend"
	"github.com/buysell-kh/backoffice/internal/i18n"
	"github.com/buysell-kh/backoffice/internal/shared"
)

type fakeAPI struct {
	list      func(p backend.ListParams) (*backend.ClientPage, error)
	lookup    func(digits string) (*backend.Client, error)
	detail    func(id backend.ID) (*backend.ClientDetail, error)
	deleteErr error
	updateErr error

	listCalls   []backend.ListParams
	lookupCalls []string
	detailCalls []backend.ID
	deleted     []backend.ID
	deletedOrds []backend.ID
	updates     []backend.OrderUpdate
}

func (f *fakeAPI) ListClients(_ context.Context, p backend.ListParams) (*backend.ClientPage, error) {
	f.listCalls = append(f.listCalls, p)
	if f.list == nil {
		return &backend.ClientPage{}, nil
	}
	return f.list(p)
}

func (f *fakeAPI) LookupByPhone(_ context.Context, digits string) (*backend.Client, error) {
	f.lookupCalls = append(f.lookupCalls, digits)
	if f.lookup == nil {
		return nil, backend.ErrNotFound
	}
	return f.lookup(digits)
}

func (f *fakeAPI) GetClientDetail(_ context.Context, id backend.ID) (*backend.ClientDetail, error) {
	f.detailCalls = append(f.detailCalls, id)
	if f.detail == nil {
		return &backend.ClientDetail{Info: backend.Client{ID: id}}, nil
	}
	return f.detail(id)
}

func (f *fakeAPI) DeleteClient(_ context.Context, id backend.ID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAPI) DeleteOrder(_ context.Context, id backend.ID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedOrds = append(f.deletedOrds, id)
	return nil
}

func (f *fakeAPI) UpdateOrder(_ context.Context, _ backend.ID, in backend.OrderUpdate) error {
	f.updates = append(f.updates, in)
	return f.updateErr
}

type fakeAudit struct{ logs []shared.AuditLog }

func (f *fakeAudit) Record(_ context.Context, log shared.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

func pageOf(clients ...backend.Client) func(backend.ListParams) (*backend.ClientPage, error) {
	return func(p backend.ListParams) (*backend.ClientPage, error) {
		return &backend.ClientPage{
			Clients: clients,
			Pagination: &backend.Pagination{
				CurrentPage: p.Page,
				PageSize:    p.Limit,
				TotalItems:  25,
				TotalPages:  3,
				HasNext:     p.Page < 3,
			},
		}, nil
	}
}

var (
	sok  = backend.Client{ID: 1, Name: "Sok", Phone: "011 733 744", Address: "Takeo"}
	dara = backend.Client{ID: 2, Name: "Dara", Phone: "012 345 678", Address: "Kandal"}
)

func TestLoadFillsListing(t *testing.T) {
	api := &fakeAPI{list: pageOf(sok, dara)}
	svc := NewService(api, nil, 0, nil)

	st, notice, err := svc.Load(context.Background(), State{SearchMode: true}, 1)
	require.NoError(t, err)
	assert.True(t, notice.Empty())
	assert.True(t, st.Loaded)
	assert.False(t, st.SearchMode)
	assert.Len(t, st.Clients, 2)
	assert.Equal(t, 3, st.Page.TotalPages)
	require.Len(t, api.listCalls, 1)
	assert.Equal(t, backend.ListParams{Page: 1, Limit: DefaultPageSize}, api.listCalls[0])
}

func TestLoadFailureKeepsRows(t *testing.T) {
	cases := []struct {
		name string
		err  error
		key  i18n.Key
	}{
		{"refused", &backend.APIError{Endpoint: "clients", Status: 500}, i18n.ListLoadFailed},
		{"transport", errors.New("dial tcp: refused"), i18n.ListLoadError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &fakeAPI{list: func(backend.ListParams) (*backend.ClientPage, error) { return nil, tc.err }}
			svc := NewService(api, nil, 10, nil)

			st, notice, err := svc.Load(context.Background(), State{Clients: []backend.Client{sok}}, 2)
			require.NoError(t, err)
			assert.Equal(t, tc.key, notice.Key)
			assert.Equal(t, shared.FlashError, notice.Kind)
			assert.Equal(t, []backend.Client{sok}, st.Clients)
		})
	}
}

func TestLoadAbandonedWhenContextEnds(t *testing.T) {
	api := &fakeAPI{list: pageOf(sok)}
	svc := NewService(api, nil, 10, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	before := State{Clients: []backend.Client{dara}}
	st, _, err := svc.Load(ctx, before, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before, st)
}

func TestSearchEmptyFiltersDoesNothing(t *testing.T) {
	api := &fakeAPI{}
	svc := NewService(api, nil, 10, nil)

	st, notice, err := svc.Search(context.Background(), State{}, Filters{Name: "  "}, 1)
	require.NoError(t, err)
	assert.True(t, notice.Empty())
	assert.False(t, st.SearchMode)
	assert.Empty(t, api.listCalls)
	assert.Empty(t, api.lookupCalls)
}

func TestSearchPhoneOnlyLooksUpDigits(t *testing.T) {
	api := &fakeAPI{lookup: func(string) (*backend.Client, error) { return &sok, nil }}
	svc := NewService(api, nil, 10, nil)

	st, notice, err := svc.Search(context.Background(), State{}, Filters{Phone: "011 733 744"}, 1)
	require.NoError(t, err)
	assert.True(t, notice.Empty())
	assert.Equal(t, []string{"011733744"}, api.lookupCalls)
	assert.Empty(t, api.listCalls)
	assert.True(t, st.SearchMode)
	assert.Equal(t, []backend.Client{sok}, st.Clients)
	assert.Equal(t, shared.SinglePage(1, 1), st.Page)
}

func TestSearchPhoneMiss(t *testing.T) {
	api := &fakeAPI{}
	svc := NewService(api, nil, 10, nil)

	st, notice, err := svc.Search(context.Background(), State{Clients: []backend.Client{dara}}, Filters{Phone: "011733744"}, 1)
	require.NoError(t, err)
	assert.Equal(t, i18n.NoResults, notice.Key)
	assert.Empty(t, st.Clients)

	api.lookup = func(string) (*backend.Client, error) { return nil, errors.New("timeout") }
	_, notice, err = svc.Search(context.Background(), State{}, Filters{Phone: "011733744"}, 1)
	require.NoError(t, err)
	assert.Equal(t, i18n.SearchError, notice.Key)
}

func TestSearchListing(t *testing.T) {
	api := &fakeAPI{list: pageOf(dara)}
	svc := NewService(api, nil, 10, nil)

	st, notice, err := svc.Search(context.Background(), State{}, Filters{Name: "Dara", Phone: "012345678"}, 2)
	require.NoError(t, err)
	assert.True(t, notice.Empty())
	require.Len(t, api.listCalls, 1)
	assert.Equal(t, 2, api.listCalls[0].Page)
	assert.Equal(t, "012 345 678", api.listCalls[0].Filters.Phone)
	assert.Equal(t, []backend.Client{dara}, st.Clients)
	assert.Equal(t, 2, st.Page.CurrentPage)
}

func TestSearchListingNoResults(t *testing.T) {
	api := &fakeAPI{list: pageOf()}
	svc := NewService(api, nil, 10, nil)

	_, notice, err := svc.Search(context.Background(), State{}, Filters{Name: "nobody"}, 1)
	require.NoError(t, err)
	assert.Equal(t, i18n.NoResults, notice.Key)
}

func TestSearchListingFailureClearsRows(t *testing.T) {
	api := &fakeAPI{list: func(backend.ListParams) (*backend.ClientPage, error) {
		return nil, &backend.APIError{Status: 502}
	}}
	svc := NewService(api, nil, 10, nil)

	st, notice, err := svc.Search(context.Background(), State{Clients: []backend.Client{sok}}, Filters{Address: "Takeo"}, 1)
	require.NoError(t, err)
	assert.Equal(t, i18n.SearchError, notice.Key)
	assert.Empty(t, st.Clients)
	assert.Equal(t, shared.PageInfo{}, st.Page)
}

func TestDetail(t *testing.T) {
	api := &fakeAPI{}
	svc := NewService(api, nil, 10, nil)

	_, notice, err := svc.Detail(context.Background(), State{}, 0)
	require.NoError(t, err)
	assert.Equal(t, i18n.InvalidRequest, notice.Key)
	assert.Empty(t, api.detailCalls)

	st, notice, err := svc.Detail(context.Background(), State{}, 4)
	require.NoError(t, err)
	assert.True(t, notice.Empty())
	assert.EqualValues(t, 4, st.DetailID())

	api.detail = func(backend.ID) (*backend.ClientDetail, error) { return nil, &backend.APIError{Status: 404} }
	st, notice, err = svc.Detail(context.Background(), State{}, 4)
	require.NoError(t, err)
	assert.Equal(t, i18n.DetailLoadFailed, notice.Key)
	assert.Nil(t, st.Detail)
}

func TestBackClosesDetail(t *testing.T) {
	svc := NewService(&fakeAPI{}, nil, 10, nil)
	st := State{Detail: &backend.ClientDetail{}, DetailFresh: true}
	st.OrderModal.Open(3, "3")

	st = svc.Back(st)
	assert.Nil(t, st.Detail)
	assert.False(t, st.DetailFresh)
	assert.False(t, st.OrderModal.IsOpen)
}

func TestChangePage(t *testing.T) {
	api := &fakeAPI{list: pageOf(sok)}
	svc := NewService(api, nil, 10, nil)
	st := State{Page: shared.PageInfo{CurrentPage: 1, TotalPages: 3}}

	_, _, err := svc.ChangePage(context.Background(), st, 4)
	require.NoError(t, err)
	_, _, err = svc.ChangePage(context.Background(), st, 0)
	require.NoError(t, err)
	assert.Empty(t, api.listCalls)

	st.SearchMode = true
	st.Filters = Filters{Name: "Sok"}
	next, _, err := svc.ChangePage(context.Background(), st, 3)
	require.NoError(t, err)
	require.Len(t, api.listCalls, 1)
	assert.Equal(t, "Sok", api.listCalls[0].Filters.Name)
	assert.Equal(t, 3, api.listCalls[0].Page)
	assert.True(t, next.SearchMode)
}

func TestClearLeavesSearchMode(t *testing.T) {
	api := &fakeAPI{list: pageOf(sok, dara)}
	svc := NewService(api, nil, 10, nil)

	st, _, err := svc.Clear(context.Background(), State{SearchMode: true, Filters: Filters{Name: "x"}})
	require.NoError(t, err)
	assert.True(t, st.Filters.Empty())
	assert.False(t, st.SearchMode)
	require.Len(t, api.listCalls, 1)
	assert.Equal(t, backend.Filters{}, api.listCalls[0].Filters)
}

func TestRefreshInSearchModeRerunsSearch(t *testing.T) {
	api := &fakeAPI{list: pageOf(sok)}
	svc := NewService(api, nil, 10, nil)
	st := State{SearchMode: true, Filters: Filters{Address: "Takeo"}, Page: shared.PageInfo{CurrentPage: 2, TotalPages: 3}}

	_, _, err := svc.Refresh(context.Background(), st)
	require.NoError(t, err)
	require.Len(t, api.listCalls, 1)
	assert.Equal(t, 2, api.listCalls[0].Page)
	assert.Equal(t, "Takeo", api.listCalls[0].Filters.Address)
}

func TestOpenClientDeleteLabel(t *testing.T) {
	svc := NewService(&fakeAPI{}, nil, 10, nil)

	st := svc.OpenClientDelete(State{Clients: []backend.Client{sok, dara}}, 2)
	assert.True(t, st.ClientModal.IsOpen)
	assert.Equal(t, "Dara", st.ClientModal.Label)

	st = svc.OpenClientDelete(State{}, 9)
	assert.Equal(t, "9", st.ClientModal.Label)
}

func TestConfirmClientDeleteFromDetail(t *testing.T) {
	api := &fakeAPI{list: pageOf(dara)}
	audit := &fakeAudit{}
	svc := NewService(api, audit, 10, nil)

	st := State{Clients: []backend.Client{sok, dara}, Detail: &backend.ClientDetail{Info: sok}}
	st = svc.OpenClientDelete(st, sok.ID)

	st, notice, err := svc.ConfirmClientDelete(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, i18n.ClientDeleted, notice.Key)
	assert.Equal(t, shared.FlashSuccess, notice.Kind)
	assert.Equal(t, []backend.ID{1}, api.deleted)
	assert.False(t, st.ClientModal.IsOpen)
	assert.Nil(t, st.Detail)
	assert.Equal(t, []backend.Client{dara}, st.Clients)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "client.delete", audit.logs[0].Action)
	assert.Equal(t, "1", audit.logs[0].EntityID)
}

func TestConfirmClientDeleteFailureKeepsModal(t *testing.T) {
	api := &fakeAPI{deleteErr: &backend.APIError{Status: 409, Message: "has orders"}}
	audit := &fakeAudit{}
	svc := NewService(api, audit, 10, nil)

	st := svc.OpenClientDelete(State{Clients: []backend.Client{sok}}, sok.ID)
	st, notice, err := svc.ConfirmClientDelete(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, i18n.ClientDeleteFailed, notice.Key)
	assert.True(t, st.ClientModal.IsOpen)
	assert.EqualValues(t, 1, st.ClientModal.Target)
	assert.Empty(t, audit.logs)
	assert.Empty(t, api.listCalls)
}

func TestConfirmWithoutOpenModal(t *testing.T) {
	api := &fakeAPI{}
	svc := NewService(api, nil, 10, nil)

	_, notice, err := svc.ConfirmOrderDelete(context.Background(), State{})
	require.NoError(t, err)
	assert.True(t, notice.Empty())
	assert.Empty(t, api.deletedOrds)
}

func TestConfirmOrderDeleteRefreshesDetail(t *testing.T) {
	api := &fakeAPI{}
	svc := NewService(api, nil, 10, nil)

	st := State{Detail: &backend.ClientDetail{Info: sok, Orders: []backend.Order{{ID: 11}}}}
	st = svc.OpenOrderDelete(st, 11)

	st, notice, err := svc.ConfirmOrderDelete(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, i18n.OrderDeleted, notice.Key)
	assert.Equal(t, []backend.ID{11}, api.deletedOrds)
	assert.Equal(t, []backend.ID{1}, api.detailCalls)
	assert.True(t, st.DetailFresh)
	assert.False(t, st.OrderModal.IsOpen)
}

func TestUpdateOrder(t *testing.T) {
	api := &fakeAPI{}
	audit := &fakeAudit{}
	svc := NewService(api, audit, 10, nil)
	st := State{Detail: &backend.ClientDetail{Info: sok}}

	_, notice, err := svc.UpdateOrder(context.Background(), st, 11, backend.OrderUpdate{})
	require.NoError(t, err)
	assert.Equal(t, i18n.InvalidRequest, notice.Key)
	assert.Empty(t, api.updates)

	deposit := decimal.RequireFromString("25.50")
	_, notice, err = svc.UpdateOrder(context.Background(), st, 11, backend.OrderUpdate{Deposit: &deposit})
	require.NoError(t, err)
	assert.Equal(t, i18n.OrderUpdated, notice.Key)
	require.Len(t, api.updates, 1)
	assert.True(t, deposit.Equal(*api.updates[0].Deposit))
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "order.update", audit.logs[0].Action)

	api.updateErr = errors.New("boom")
	_, notice, err = svc.UpdateOrder(context.Background(), st, 11, backend.OrderUpdate{Deposit: &deposit})
	require.NoError(t, err)
	assert.Equal(t, i18n.OrderUpdateError, notice.Key)
}

func TestChangePageWithoutServerPagination(t *testing.T) {
	full := make([]backend.Client, 10)
	for i := range full {
		full[i] = backend.Client{ID: backend.ID(i + 1)}
	}
	api := &fakeAPI{list: func(p backend.ListParams) (*backend.ClientPage, error) {
		if p.Page == 1 {
			return &backend.ClientPage{Clients: full}, nil
		}
		return &backend.ClientPage{Clients: []backend.Client{sok}}, nil
	}}
	svc := NewService(api, nil, 10, nil)

	st, _, err := svc.Load(context.Background(), State{}, 1)
	require.NoError(t, err)
	assert.True(t, st.Page.Degraded)
	assert.True(t, st.Page.ShowControls(len(st.Clients)))

	st, _, err = svc.ChangePage(context.Background(), st, 2)
	require.NoError(t, err)
	require.Len(t, api.listCalls, 2)
	assert.Equal(t, 2, st.CurrentPage())
	assert.Equal(t, []backend.Client{sok}, st.Clients)
	assert.False(t, st.Page.HasNext)
	assert.True(t, st.Page.Valid(1))
}

// blockingDetailAPI holds GetClientDetail until release is closed.
type blockingDetailAPI struct {
	*fakeAPI
	started chan struct{}
	release chan struct{}

	mu     sync.Mutex
	calls  int
	ctxErr error
}

func (b *blockingDetailAPI) GetClientDetail(ctx context.Context, id backend.ID) (*backend.ClientDetail, error) {
	b.mu.Lock()
	b.calls++
	first := b.calls == 1
	b.mu.Unlock()
	if first {
		close(b.started)
	}
	<-b.release
	b.mu.Lock()
	b.ctxErr = ctx.Err()
	b.mu.Unlock()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return &backend.ClientDetail{Info: backend.Client{ID: id, Name: "Sok"}}, nil
}

func TestDetailSharedCallSurvivesCancelledCaller(t *testing.T) {
	api := &blockingDetailAPI{fakeAPI: &fakeAPI{}, started: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(api, nil, 10, nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, _, err := svc.Detail(ctxA, State{}, 1)
		errA <- err
	}()
	<-api.started

	type result struct {
		st     State
		notice i18n.Notice
		err    error
	}
	resB := make(chan result, 1)
	go func() {
		st, notice, err := svc.Detail(context.Background(), State{}, 1)
		resB <- result{st, notice, err}
	}()

	time.Sleep(20 * time.Millisecond)
	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)
	close(api.release)

	got := <-resB
	require.NoError(t, got.err)
	assert.True(t, got.notice.Empty(), "unexpected notice %q", got.notice.Key)
	require.NotNil(t, got.st.Detail)
	assert.Equal(t, "Sok", got.st.Detail.Info.Name)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.NoError(t, api.ctxErr)
}

var _ OrdersAPI = (*backend.API)(nil)
