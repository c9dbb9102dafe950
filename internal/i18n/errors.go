package i18n

import (
	"errors"
	"net/http"

	"github.com/buysell-kh/backoffice/internal/backend"
)

// ForAPIError picks the message for a failed upstream call. Anything not
// recognised falls back to fallback.
func ForAPIError(err error, fallback Key) Key {
	if err == nil {
		return fallback
	}
	if errors.Is(err, backend.ErrNotFound) {
		return ClientNotFound
	}
	switch backend.StatusOf(err) {
	case http.StatusNotFound:
		return ClientNotFound
	case http.StatusBadRequest:
		return InvalidPhone
	case http.StatusInternalServerError:
		return ServerError
	}
	return fallback
}
