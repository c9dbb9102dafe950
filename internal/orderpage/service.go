package orderpage

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/buysell-kh/backoffice/internal/backend"
	"github.com/buysell-kh/backoffice/internal/i18n"
	"github.com/buysell-kh/backoffice/internal/phone"
	"github.com/buysell-kh/backoffice/internal/shared"
)

// DefaultPageSize is the listing page size.
const DefaultPageSize = 10

// OrdersAPI is the slice of the upstream API the screen needs.
type OrdersAPI interface {
	ListClients(ctx context.Context, p backend.ListParams) (*backend.ClientPage, error)
	LookupByPhone(ctx context.Context, digits string) (*backend.Client, error)
	GetClientDetail(ctx context.Context, id backend.ID) (*backend.ClientDetail, error)
	DeleteClient(ctx context.Context, id backend.ID) error
	DeleteOrder(ctx context.Context, id backend.ID) error
	UpdateOrder(ctx context.Context, id backend.ID, in backend.OrderUpdate) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service holds the order page operations. Every method returns a non-nil
// error only when ctx ended while an upstream call was pending; callers must
// then drop the returned state.
type Service struct {
	api      OrdersAPI
	audit    AuditPort
	pageSize int
	logger   *slog.Logger
	details  singleflight.Group
}

// NewService constructs a Service.
func NewService(api OrdersAPI, audit AuditPort, pageSize int, logger *slog.Logger) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{api: api, audit: audit, pageSize: pageSize, logger: logger}
}

// PageSize returns the listing page size.
func (s *Service) PageSize() int { return s.pageSize }

// Load fetches an unfiltered listing page and leaves search mode. On failure
// the rows already shown are kept.
func (s *Service) Load(ctx context.Context, st State, page int) (State, i18n.Notice, error) {
	if page < 1 {
		page = 1
	}
	res, err := s.api.ListClients(ctx, backend.ListParams{Page: page, Limit: s.pageSize})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return st, i18n.Notice{}, ctxErr
	}
	st.Loaded = true
	if err != nil {
		s.logger.Warn("orderpage: load clients", slog.Int("page", page), slog.Any("error", err))
		return st, i18n.Failure(failureKey(err, i18n.ListLoadFailed, i18n.ListLoadError)), nil
	}
	st.SearchMode = false
	st.Clients = res.Clients
	st.Page = res.PageInfo(page, s.pageSize)
	return st, i18n.Notice{}, nil
}

// Search runs the listing with filters. Nothing is fetched when no criterion
// is set. A phone-only search is a direct lookup yielding a single page.
func (s *Service) Search(ctx context.Context, st State, filters Filters, page int) (State, i18n.Notice, error) {
	st.Filters = filters
	if filters.Empty() {
		return st, i18n.Notice{}, nil
	}
	if page < 1 {
		page = 1
	}
	st.Loaded = true
	st.SearchMode = true
	if filters.PhoneOnly() {
		return s.searchPhone(ctx, st, filters)
	}

	res, err := s.api.ListClients(ctx, filters.Params(page, s.pageSize))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return st, i18n.Notice{}, ctxErr
	}
	if err != nil {
		s.logger.Warn("orderpage: search clients", slog.Any("error", err))
		st.Clients = nil
		st.Page = shared.PageInfo{}
		return st, i18n.Failure(i18n.SearchError), nil
	}
	st.Clients = res.Clients
	st.Page = res.PageInfo(page, s.pageSize)
	if len(st.Clients) == 0 && page == 1 {
		return st, i18n.Failure(i18n.NoResults), nil
	}
	return st, i18n.Notice{}, nil
}

func (s *Service) searchPhone(ctx context.Context, st State, filters Filters) (State, i18n.Notice, error) {
	client, err := s.api.LookupByPhone(ctx, phone.Clean(filters.Trimmed().Phone))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return st, i18n.Notice{}, ctxErr
	}
	if err != nil || client == nil {
		st.Clients = nil
		st.Page = shared.PageInfo{}
		if err != nil && !errors.Is(err, backend.ErrNotFound) {
			s.logger.Warn("orderpage: phone lookup", slog.Any("error", err))
			return st, i18n.Failure(i18n.SearchError), nil
		}
		return st, i18n.Failure(i18n.NoResults), nil
	}
	st.Clients = []backend.Client{*client}
	st.Page = shared.SinglePage(1, 1)
	return st, i18n.Notice{}, nil
}

// Detail opens the client with id. Concurrent requests for the same client
// share one upstream call, which is not cancelled when one of them goes away.
func (s *Service) Detail(ctx context.Context, st State, id backend.ID) (State, i18n.Notice, error) {
	if !id.Valid() {
		return st, i18n.Failure(i18n.InvalidRequest), nil
	}
	// The shared call outlives any one caller; each caller stops waiting
	// when its own request ends.
	ch := s.details.DoChan(strconv.FormatInt(int64(id), 10), func() (any, error) {
		return s.api.GetClientDetail(context.WithoutCancel(ctx), id)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return st, i18n.Notice{}, ctx.Err()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return st, i18n.Notice{}, ctxErr
	}
	v, err := res.Val, res.Err
	if err != nil {
		s.logger.Warn("orderpage: client detail", slog.Int64("client_id", int64(id)), slog.Any("error", err))
		return st, i18n.Failure(failureKey(err, i18n.DetailLoadFailed, i18n.DetailLoadError)), nil
	}
	detail, _ := v.(*backend.ClientDetail)
	if detail == nil {
		return st, i18n.Failure(i18n.DetailLoadFailed), nil
	}
	st.Detail = detail
	return st, i18n.Notice{}, nil
}

// Back closes the detail view.
func (s *Service) Back(st State) State {
	st.Detail = nil
	st.DetailFresh = false
	st.OrderModal.Cancel()
	return st
}

// ChangePage moves to page. Pages outside 1..total are ignored. In search
// mode the search is re-run, otherwise the listing reloads.
func (s *Service) ChangePage(ctx context.Context, st State, page int) (State, i18n.Notice, error) {
	if !st.Page.Valid(page) {
		return st, i18n.Notice{}, nil
	}
	if st.SearchMode {
		return s.Search(ctx, st, st.Filters, page)
	}
	return s.Load(ctx, st, page)
}

// Clear empties every criterion, leaves search mode and reloads page 1.
func (s *Service) Clear(ctx context.Context, st State) (State, i18n.Notice, error) {
	st.Filters = Filters{}
	st.SearchMode = false
	return s.Load(ctx, st, 1)
}

// Refresh reloads what is on screen: the open client, or the current page of
// the listing or search.
func (s *Service) Refresh(ctx context.Context, st State) (State, i18n.Notice, error) {
	if id := st.DetailID(); id.Valid() {
		next, notice, err := s.Detail(ctx, st, id)
		if err == nil && notice.Empty() {
			next.DetailFresh = true
		}
		return next, notice, err
	}
	if st.SearchMode {
		return s.Search(ctx, st, st.Filters, st.CurrentPage())
	}
	return s.Load(ctx, st, st.CurrentPage())
}

// OpenClientDelete shows the client confirmation for id. The label comes
// from the rows on screen.
func (s *Service) OpenClientDelete(st State, id backend.ID) State {
	label := id.String()
	for _, c := range st.Clients {
		if c.ID == id {
			label = c.Name
			break
		}
	}
	if st.Detail != nil && st.Detail.Info.ID == id {
		label = st.Detail.Info.Name
	}
	st.ClientModal.Open(id, label)
	return st
}

// OpenOrderDelete shows the order confirmation for id.
func (s *Service) OpenOrderDelete(st State, id backend.ID) State {
	st.OrderModal.Open(id, id.String())
	return st
}

// ConfirmClientDelete deletes the client captured by the client modal. On
// success the modal closes and the view refreshes; on failure it stays open.
func (s *Service) ConfirmClientDelete(ctx context.Context, st State) (State, i18n.Notice, error) {
	target := st.ClientModal.Target
	err := st.ClientModal.Confirm(ctx, s.api.DeleteClient)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return st, i18n.Notice{}, ctxErr
	}
	if errors.Is(err, ErrNoTarget) {
		return st, i18n.Notice{}, nil
	}
	if err != nil {
		s.logger.Warn("orderpage: delete client", slog.Int64("client_id", int64(target)), slog.Any("error", err))
		return st, i18n.Failure(failureKey(err, i18n.ClientDeleteFailed, i18n.ClientDeleteError)), nil
	}
	s.record(ctx, "client.delete", "client", target)
	if st.DetailID() == target {
		st = s.Back(st)
	}
	return s.refreshAfter(ctx, st, i18n.Success(i18n.ClientDeleted))
}

// ConfirmOrderDelete deletes the order captured by the order modal.
func (s *Service) ConfirmOrderDelete(ctx context.Context, st State) (State, i18n.Notice, error) {
	target := st.OrderModal.Target
	err := st.OrderModal.Confirm(ctx, s.api.DeleteOrder)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return st, i18n.Notice{}, ctxErr
	}
	if errors.Is(err, ErrNoTarget) {
		return st, i18n.Notice{}, nil
	}
	if err != nil {
		s.logger.Warn("orderpage: delete order", slog.Int64("order_id", int64(target)), slog.Any("error", err))
		return st, i18n.Failure(i18n.OrderDeleteError), nil
	}
	s.record(ctx, "order.delete", "order", target)
	return s.refreshAfter(ctx, st, i18n.Success(i18n.OrderDeleted))
}

// UpdateOrder patches the deposit and/or date of order id.
func (s *Service) UpdateOrder(ctx context.Context, st State, id backend.ID, in backend.OrderUpdate) (State, i18n.Notice, error) {
	if !id.Valid() || (in.Deposit == nil && in.Date == nil) {
		return st, i18n.Failure(i18n.InvalidRequest), nil
	}
	err := s.api.UpdateOrder(ctx, id, in)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return st, i18n.Notice{}, ctxErr
	}
	if err != nil {
		s.logger.Warn("orderpage: update order", slog.Int64("order_id", int64(id)), slog.Any("error", err))
		return st, i18n.Failure(i18n.OrderUpdateError), nil
	}
	s.record(ctx, "order.update", "order", id)
	return s.refreshAfter(ctx, st, i18n.Success(i18n.OrderUpdated))
}

// refreshAfter reloads the view after a successful mutation: the open client,
// else the current search page when in search mode, else the unfiltered
// listing. Re-running the search keeps the rows staff were working through
// instead of dropping back to the full list. The mutation's notice is what
// staff see; a failed refresh is only logged.
func (s *Service) refreshAfter(ctx context.Context, st State, done i18n.Notice) (State, i18n.Notice, error) {
	next, notice, err := s.Refresh(ctx, st)
	if err != nil {
		return st, done, err
	}
	if !notice.Empty() {
		s.logger.Info("orderpage: refresh after mutation", slog.String("notice", string(notice.Key)))
	}
	return next, done, nil
}

func (s *Service) record(ctx context.Context, action, entity string, id backend.ID) {
	if s.audit == nil {
		return
	}
	sessionID := ""
	if sess := shared.SessionFromContext(ctx); sess != nil {
		sessionID = sess.ID
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		SessionID: sessionID,
		Action:    action,
		Entity:    entity,
		EntityID:  id.String(),
	}); err != nil {
		s.logger.Warn("orderpage: audit", slog.String("action", action), slog.Any("error", err))
	}
}

// failureKey separates an API refusal from a transport failure.
func failureKey(err error, refused, failed i18n.Key) i18n.Key {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return refused
	}
	return failed
}
