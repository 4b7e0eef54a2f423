package refresh

import "fmt"

type ErrorKind string

const (
	KindInvalidURL    ErrorKind = "invalid_url"
	KindDuplicateFeed ErrorKind = "duplicate_feed"
)

var (
	ErrInvalidURL    = &Error{Kind: KindInvalidURL}
	ErrDuplicateFeed = &Error{Kind: KindDuplicateFeed}
)

// Error is returned by feed validation and subscription.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func newError(kind ErrorKind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindInvalidURL:
		msg = "invalid URL"
	case KindDuplicateFeed:
		msg = "feed already exists"
	default:
		msg = string(e.Kind)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func (e *Error) Suggestion() string {
	switch e.Kind {
	case KindInvalidURL:
		return "Check the URL and try again."
	case KindDuplicateFeed:
		return "You are already subscribed to this feed."
	default:
		return ""
	}
}
