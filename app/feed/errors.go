package feed

import "fmt"

type ErrorKind string

const (
	KindNetwork          ErrorKind = "network_error"
	KindParsing          ErrorKind = "parsing_error"
	KindUnknownFeedType  ErrorKind = "unknown_feed_type"
	KindNoContentFound   ErrorKind = "no_content_found"
	KindInvalidHTML      ErrorKind = "invalid_html"
	KindExtractionFailed ErrorKind = "extraction_failed"
)

// Sentinels for errors.Is; matching is by Kind only.
var (
	ErrNetwork          = &Error{Kind: KindNetwork}
	ErrParsing          = &Error{Kind: KindParsing}
	ErrUnknownFeedType  = &Error{Kind: KindUnknownFeedType}
	ErrNoContentFound   = &Error{Kind: KindNoContentFound}
	ErrInvalidHTML      = &Error{Kind: KindInvalidHTML}
	ErrExtractionFailed = &Error{Kind: KindExtractionFailed}
)

// Error is returned by the parser, fetcher and content extractor.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func newError(kind ErrorKind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func (e *Error) Error() string {
	msg := e.message()
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

func (e *Error) message() string {
	switch e.Kind {
	case KindNetwork:
		return "network error"
	case KindParsing:
		return "failed to parse feed"
	case KindUnknownFeedType:
		return "unknown feed type"
	case KindNoContentFound:
		return "no content found"
	case KindInvalidHTML:
		return "invalid HTML"
	case KindExtractionFailed:
		return "content extraction failed"
	default:
		return string(e.Kind)
	}
}

// Suggestion returns a short recovery hint suitable for end users.
func (e *Error) Suggestion() string {
	switch e.Kind {
	case KindNetwork:
		return "Check your connection and that the site is reachable."
	case KindParsing:
		return "The document looks like a feed but is malformed. Try again later or contact the site owner."
	case KindUnknownFeedType:
		return "Check the URL. It should point to an RSS, Atom or JSON feed, not a web page."
	default:
		return ""
	}
}
