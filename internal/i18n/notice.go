package i18n

import "github.com/buysell-kh/backoffice/internal/shared"

// Notice is a message a screen wants to show after an operation.
type Notice struct {
	Kind string
	Key  Key
	Args []any
}

// Success builds a success notice.
func Success(key Key, args ...any) Notice {
	return Notice{Kind: shared.FlashSuccess, Key: key, Args: args}
}

// Failure builds an error notice.
func Failure(key Key, args ...any) Notice {
	return Notice{Kind: shared.FlashError, Key: key, Args: args}
}

// Info builds an informational notice.
func Info(key Key, args ...any) Notice {
	return Notice{Kind: shared.FlashInfo, Key: key, Args: args}
}

// Empty reports whether there is nothing to show.
func (n Notice) Empty() bool { return n.Key == "" }

// Text renders the notice in Khmer.
func (n Notice) Text() string {
	if n.Empty() {
		return ""
	}
	return T(n.Key, n.Args...)
}

// Flash converts the notice for the session flash queue.
func (n Notice) Flash() shared.FlashMessage {
	return shared.FlashMessage{Kind: n.Kind, Message: n.Text()}
}
