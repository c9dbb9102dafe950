package orderpage

import (
	"context"
	"errors"

	"github.com/buysell-kh/backoffice/internal/backend"
)

// ErrNoTarget is returned when confirming a modal that has nothing selected.
var ErrNoTarget = errors.New("orderpage: modal has no target")

// Modal is a delete confirmation dialog. The target is captured when it opens
// and survives a failed confirm so the user can retry.
type Modal struct {
	IsOpen bool       `json:"open"`
	Target backend.ID `json:"target,omitempty"`
	Label  string     `json:"label,omitempty"`
}

// Open shows the dialog for target.
func (m *Modal) Open(target backend.ID, label string) {
	m.IsOpen = true
	m.Target = target
	m.Label = label
}

// Cancel closes the dialog and forgets the target.
func (m *Modal) Cancel() {
	*m = Modal{}
}

// Confirm runs fn against the captured target. The dialog closes only when fn
// succeeds.
func (m *Modal) Confirm(ctx context.Context, fn func(context.Context, backend.ID) error) error {
	if !m.IsOpen || !m.Target.Valid() {
		return ErrNoTarget
	}
	if err := fn(ctx, m.Target); err != nil {
		return err
	}
	m.Cancel()
	return nil
}
