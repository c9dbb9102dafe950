package clientform

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/buysell-kh/backoffice/internal/backend"
	"github.com/buysell-kh/backoffice/internal/i18n"
	"github.com/buysell-kh/backoffice/internal/phone"
	"github.com/buysell-kh/backoffice/internal/shared"
)

const idempotencyModule = "clientform"

// ClientsAPI is the slice of the upstream API the screen needs.
type ClientsAPI interface {
	LookupByPhone(ctx context.Context, digits string) (*backend.Client, error)
	CreateClient(ctx context.Context, in backend.NewClient) error
	ListClients(ctx context.Context, p backend.ListParams) (*backend.ClientPage, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards against double submission of the create form.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Resetter clears state owned by another screen when this form resets. The
// order search screen registers one so a new client shows up there.
type Resetter func(ctx context.Context)

// Service coordinates client lookup and creation.
type Service struct {
	api       ClientsAPI
	audit     AuditPort
	idem      IdempotencyPort
	resetters []Resetter
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewService constructs a Service.
func NewService(api ClientsAPI, audit AuditPort, idem IdempotencyPort, logger *slog.Logger, resetters ...Resetter) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		api:       api,
		audit:     audit,
		idem:      idem,
		resetters: resetters,
		validate:  newValidator(),
		logger:    logger,
	}
}

type createInput struct {
	Name    string `validate:"required"`
	Phone   string `validate:"required,khphone"`
	Address string
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("khphone", func(fl validator.FieldLevel) bool {
		return phone.Valid(fl.Field().String())
	})
	return v
}

// Search looks the typed phone up and prefills the form. On a miss or a
// failure the typed name and address are kept. The returned error is only
// set when ctx ended while waiting for the API; the state must then be
// discarded.
func (s *Service) Search(ctx context.Context, st State) (State, i18n.Notice, error) {
	typed := strings.TrimSpace(st.Form.Phone)
	if typed == "" {
		st.Focus = FieldPhone
		st.Status = StatusIdle
		return st, i18n.Failure(i18n.PhoneRequiredForSearch), nil
	}
	if err := phone.Validate(typed); err != nil {
		st.PhoneError = phoneErrorKey(err)
		st.Focus = FieldPhone
		st.Status = StatusError
		return st, i18n.Failure(st.PhoneError), nil
	}
	st.PhoneError = ""
	st.Status = StatusSearching

	client, err := s.api.LookupByPhone(ctx, phone.Clean(typed))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return st, i18n.Notice{}, ctxErr
	}
	if err != nil {
		st.Found = nil
		st.Form.Phone = typed
		st.Status = StatusError
		if errors.Is(err, backend.ErrNotFound) {
			st.Status = StatusNotFound
		}
		return st, i18n.Failure(i18n.ForAPIError(err, i18n.ClientSearchError)), nil
	}

	st.Found = client
	st.Form.Name = client.Name
	st.Form.Address = client.Address
	st.Form.Phone = typed
	if client.Phone != "" {
		st.Form.Phone = phone.FormatForDisplay(client.Phone)
	}
	st.Status = StatusFound
	st.Focus = FieldAddress
	return st, i18n.Success(i18n.ClientFound, client.Name), nil
}

// Create registers the client typed into the form. created reports whether
// the API accepted it. A submission whose idempotency key was already used is
// ignored. The returned error follows the same rule as in Search.
func (s *Service) Create(ctx context.Context, st State, key string) (State, i18n.Notice, bool, error) {
	in := createInput{
		Name:    strings.TrimSpace(st.Form.Name),
		Phone:   strings.TrimSpace(st.Form.Phone),
		Address: strings.TrimSpace(st.Form.Address),
	}
	if err := s.validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			st, notice, created := s.rejectField(st, fieldErrs[0], in.Phone)
			return st, notice, created, nil
		}
		return st, i18n.Failure(i18n.ClientSaveError), false, nil
	}
	st.PhoneError = ""

	if key != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrDuplicateSubmission) {
				return st, i18n.Notice{}, false, nil
			}
			s.logger.Warn("clientform: idempotency check", slog.Any("error", err))
		}
	}

	err := s.api.CreateClient(ctx, backend.NewClient{
		Name:    in.Name,
		Address: in.Address,
		Phone:   phone.Clean(in.Phone),
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return st, i18n.Notice{}, false, ctxErr
	}
	if err != nil {
		if key != "" && s.idem != nil {
			_ = s.idem.Delete(context.WithoutCancel(ctx), key)
		}
		return st, i18n.Failure(i18n.ClientSaveError), false, nil
	}

	if s.audit != nil {
		sessionID := ""
		if sess := shared.SessionFromContext(ctx); sess != nil {
			sessionID = sess.ID
		}
		if err := s.audit.Record(ctx, shared.AuditLog{
			SessionID: sessionID,
			Action:    "client.create",
			Entity:    "client",
			EntityID:  phone.Clean(in.Phone),
			Meta:      map[string]any{"name": in.Name},
		}); err != nil {
			s.logger.Warn("clientform: audit", slog.Any("error", err))
		}
	}

	return s.Reset(ctx), i18n.Success(i18n.ClientCreated), true, nil
}

// rejectField turns the first validation failure into focus and a notice.
func (s *Service) rejectField(st State, fe validator.FieldError, typedPhone string) (State, i18n.Notice, bool) {
	switch fe.Field() {
	case "Name":
		st.Focus = FieldName
		return st, i18n.Failure(i18n.CustomerNameRequired), false
	default:
		st.Focus = FieldPhone
		if fe.Tag() == "required" {
			return st, i18n.Failure(i18n.PhoneNumberRequired), false
		}
		st.PhoneError = phoneErrorKey(phone.Validate(typedPhone))
		return st, i18n.Failure(st.PhoneError), false
	}
}

// Reset clears the form and the found client, runs the registered resetters and
// puts focus back on the name field.
func (s *Service) Reset(ctx context.Context) State {
	for _, reset := range s.resetters {
		reset(ctx)
	}
	return NewState()
}

// PreviewNextID estimates the next client id from the first listing page.
// Failures yield 0 so the badge is simply hidden.
func (s *Service) PreviewNextID(ctx context.Context, pageSize int) int64 {
	page, err := s.api.ListClients(ctx, backend.ListParams{Page: 1, Limit: pageSize})
	if err != nil || page == nil {
		return 0
	}
	return NextID(page.Clients)
}
