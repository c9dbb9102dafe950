package jobs

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypePrintOrder renders an order receipt to PDF.
	TaskTypePrintOrder = "order:print"
)

// PrintOrderPayload identifies the order to print and the session to notify.
type PrintOrderPayload struct {
	SessionID string `json:"session_id"`
	ClientID  int64  `json:"client_id"`
	OrderID   int64  `json:"order_id"`
}

// Validate checks the payload carries every identifier.
func (p PrintOrderPayload) Validate() error {
	if p.SessionID == "" {
		return errors.New("print order: missing session")
	}
	if p.ClientID <= 0 || p.OrderID <= 0 {
		return fmt.Errorf("print order: invalid ids client=%d order=%d", p.ClientID, p.OrderID)
	}
	return nil
}

// NewPrintOrderTask constructs an Asynq task.
func NewPrintOrderTask(payload PrintOrderPayload) (*asynq.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePrintOrder, data, asynq.MaxRetry(2)), nil
}

// DecodePrintOrder reads the payload of a TaskTypePrintOrder task. Malformed
// payloads are wrapped with asynq.SkipRetry.
func DecodePrintOrder(t *asynq.Task) (PrintOrderPayload, error) {
	var payload PrintOrderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("print order: decode: %v: %w", err, asynq.SkipRetry)
	}
	if err := payload.Validate(); err != nil {
		return payload, fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return payload, nil
}

// TaskTypeIdempotencyCleanup prunes expired form submission keys.
const TaskTypeIdempotencyCleanup = "maintenance:idempotency_cleanup"

// NewIdempotencyCleanupTask constructs the periodic cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeIdempotencyCleanup, nil, asynq.MaxRetry(0))
}
