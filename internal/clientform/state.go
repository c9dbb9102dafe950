// Package clientform implements the client registration screen: lookup by
// phone to prefill the form, and creation of new clients.
package clientform

import (
	"errors"

	"github.com/buysell-kh/backoffice/internal/backend"
	"github.com/buysell-kh/backoffice/internal/i18n"
	"github.com/buysell-kh/backoffice/internal/phone"
	"github.com/buysell-kh/backoffice/internal/shared"
)

// SessionKey stores the screen state in the browser session.
const SessionKey = "buysell:client"

// Status tracks the lookup flow.
type Status string

// Lookup flow states.
const (
	StatusIdle      Status = "idle"
	StatusSearching Status = "searching"
	StatusFound     Status = "found"
	StatusNotFound  Status = "not-found"
	StatusError     Status = "error"
)

// Form is what staff typed.
type Form struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// State is the persisted screen state.
type State struct {
	Form       Form            `json:"form"`
	Found      *backend.Client `json:"found,omitempty"`
	PhoneError i18n.Key        `json:"phone_error,omitempty"`
	Focus      Field           `json:"focus,omitempty"`
	Status     Status          `json:"status"`
}

// NewState returns the initial screen state.
func NewState() State {
	return State{Status: StatusIdle, Focus: FieldName}
}

// LoadState reads the state from sess, or returns the initial state.
func LoadState(sess *shared.Session) State {
	st := NewState()
	if sess != nil {
		sess.State(SessionKey, &st)
	}
	return st
}

// SaveState writes st into sess.
func SaveState(sess *shared.Session, st State) error {
	if sess == nil {
		return shared.ErrSessionMissing
	}
	return sess.SetState(SessionKey, st)
}

// Settle returns the state as it should be stored once rendered: transient
// status and focus are consumed by a single render.
func (s State) Settle() State {
	s.Status = StatusIdle
	s.Focus = ""
	return s
}

// PhoneValid reports whether the typed phone passes validation.
func (s State) PhoneValid() bool {
	return phone.Valid(s.Form.Phone)
}

// NextID previews the id the next client will receive: the largest known id
// plus one, or 1 when none is known.
func NextID(clients []backend.Client) int64 {
	var max int64
	for _, c := range clients {
		if c.ID.Valid() && int64(c.ID) > max {
			max = int64(c.ID)
		}
	}
	return max + 1
}

func phoneErrorKey(err error) i18n.Key {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, phone.ErrEmptyPhone):
		return i18n.PhoneEmpty
	default:
		return i18n.PhoneLength
	}
}
