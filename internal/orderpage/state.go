// Package orderpage implements the order search screen: a filtered,
// paginated client listing, client detail with order history, deletion with
// confirmation, order edits and receipt printing.
package orderpage

import (
	"context"

	"github.com/buysell-kh/backoffice/internal/backend"
	"github.com/buysell-kh/backoffice/internal/shared"
)

// SessionKey stores the screen state in the browser session.
const SessionKey = "buysell:order"

// State is the persisted screen state.
type State struct {
	Filters    Filters               `json:"filters"`
	SearchMode bool                  `json:"search_mode"`
	Loaded     bool                  `json:"loaded"`
	Clients    []backend.Client      `json:"clients"`
	Page       shared.PageInfo       `json:"page"`
	Detail     *backend.ClientDetail `json:"detail,omitempty"`
	// DetailFresh marks a detail fetched by the action that redirected here;
	// the next render uses it instead of fetching again.
	DetailFresh bool  `json:"detail_fresh,omitempty"`
	ClientModal Modal `json:"client_modal"`
	OrderModal  Modal `json:"order_modal"`
}

// CurrentPage is the page shown, at least 1.
func (s State) CurrentPage() int {
	if s.Page.CurrentPage < 1 {
		return 1
	}
	return s.Page.CurrentPage
}

// DetailID is the id of the open client, or 0 in list view.
func (s State) DetailID() backend.ID {
	if s.Detail == nil {
		return 0
	}
	return s.Detail.Info.ID
}

// LoadState reads the state from sess, or returns the initial state.
func LoadState(sess *shared.Session) State {
	var st State
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

// ResetSearchScreen drops the /orders screen state (filters, rows, open
// client, modals) of the session carried by ctx, so the next visit reloads the
// unfiltered listing. Other session values are kept. The client form runs it
// whenever it resets, including after creating a client.
func ResetSearchScreen(ctx context.Context) {
	if sess := shared.SessionFromContext(ctx); sess != nil {
		sess.Delete(SessionKey)
	}
}
