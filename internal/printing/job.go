package printing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/buysell-kh/backoffice/internal/backend"
	"github.com/buysell-kh/backoffice/internal/i18n"
	jobmetrics "github.com/buysell-kh/backoffice/internal/jobs"
	"github.com/buysell-kh/backoffice/internal/shared"
	"github.com/buysell-kh/backoffice/jobs"
)

// DownloadPath is the route receipts are served from.
const DownloadPath = "/orders/prints/"

// DetailSource loads a client with its orders.
type DetailSource interface {
	GetClientDetail(ctx context.Context, id backend.ID) (*backend.ClientDetail, error)
}

// Executor renders a named template.
type Executor interface {
	Execute(w io.Writer, name string, data any) error
}

// Renderer converts HTML to PDF.
type Renderer interface {
	RenderHTML(ctx context.Context, html []byte) ([]byte, error)
}

// Blobs keeps rendered receipts.
type Blobs interface {
	Save(ctx context.Context, pdf []byte) (string, error)
}

// Notifier delivers a notice to a browser session.
type Notifier interface {
	Push(ctx context.Context, sessionID string, msg shared.FlashMessage) error
}

// Job handles jobs.TaskTypePrintOrder tasks.
type Job struct {
	API       DetailSource
	Templates Executor
	Renderer  Renderer
	Store     Blobs
	Notifier  Notifier
	Metrics   *jobmetrics.Metrics
	Logger    *slog.Logger
	clock     func() time.Time
}

// NewJob wires a print job handler.
func NewJob(api DetailSource, templates Executor, renderer Renderer, store Blobs, notifier Notifier, metrics *jobmetrics.Metrics, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		API:       api,
		Templates: templates,
		Renderer:  renderer,
		Store:     store,
		Notifier:  notifier,
		Metrics:   metrics,
		Logger:    logger,
		clock:     time.Now,
	}
}

// Handle renders the receipt and notifies the session. The failure notice is
// only pushed once asynq gives up on the task.
func (j *Job) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil {
		return errors.New("print order: handler not configured")
	}
	payload, err := jobs.DecodePrintOrder(t)
	if err != nil {
		return err
	}

	tracker := j.Metrics.Track(jobs.TaskTypePrintOrder)
	defer func() {
		err = tracker.End(err)
	}()

	token, err := j.print(ctx, payload)
	if err != nil {
		j.Logger.Warn("print order failed",
			slog.Int64("order_id", payload.OrderID),
			slog.Int64("client_id", payload.ClientID),
			slog.Any("error", err))
		if finalAttempt(ctx, err) {
			j.notify(ctx, payload.SessionID, i18n.Failure(i18n.PrintError).Flash())
		}
		return err
	}

	msg := i18n.Success(i18n.PrintReady).Flash()
	msg.Link = DownloadPath + token
	j.notify(ctx, payload.SessionID, msg)
	j.Logger.Info("receipt ready", slog.Int64("order_id", payload.OrderID))
	return nil
}

func (j *Job) print(ctx context.Context, payload jobs.PrintOrderPayload) (string, error) {
	detail, err := j.API.GetClientDetail(ctx, backend.ID(payload.ClientID))
	if err != nil {
		return "", fmt.Errorf("load client %d: %w", payload.ClientID, err)
	}
	receipt, err := NewReceipt(detail, backend.ID(payload.OrderID), j.now())
	if err != nil {
		return "", fmt.Errorf("order %d: %v: %w", payload.OrderID, err, asynq.SkipRetry)
	}

	var html bytes.Buffer
	if err := j.Templates.Execute(&html, ReceiptTemplate, receipt); err != nil {
		return "", fmt.Errorf("render receipt template: %v: %w", err, asynq.SkipRetry)
	}
	pdf, err := j.Renderer.RenderHTML(ctx, html.Bytes())
	if err != nil {
		return "", fmt.Errorf("convert receipt: %w", err)
	}
	j.Metrics.ObservePDF(len(pdf))

	token, err := j.Store.Save(ctx, pdf)
	if err != nil {
		return "", err
	}
	return token, nil
}

func (j *Job) notify(ctx context.Context, sessionID string, msg shared.FlashMessage) {
	if j.Notifier == nil {
		return
	}
	if err := j.Notifier.Push(context.WithoutCancel(ctx), sessionID, msg); err != nil {
		j.Logger.Error("print order: push notice", slog.Any("error", err))
	}
}

func (j *Job) now() time.Time {
	if j.clock == nil {
		return time.Now()
	}
	return j.clock()
}

// finalAttempt reports whether asynq will not run the task again.
func finalAttempt(ctx context.Context, err error) bool {
	if errors.Is(err, asynq.SkipRetry) {
		return true
	}
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}
