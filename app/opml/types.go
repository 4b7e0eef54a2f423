// Package opml reads and writes OPML subscription lists.
package opml

import (
	"fmt"
	"time"
)

// Document is a parsed OPML file. Folder outlines keep their children.
type Document struct {
	Title       string
	DateCreated *time.Time
	Outlines    []Outline
}

// Outline is either a feed leaf (XMLURL set) or a folder (Children set).
type Outline struct {
	Title    string
	XMLURL   string
	HTMLURL  string
	Children []Outline
}

func (o Outline) IsFeed() bool {
	return o.XMLURL != ""
}

// FeedEntry represents a flattened feed with its folder path.
type FeedEntry struct {
	FolderPath []string // e.g., ["Tech", "Google"]
	Title      string
	XMLURL     string
	HTMLURL    string
}

// Group is a named folder of feeds for grouped export.
type Group struct {
	Name  string
	Feeds []FeedEntry
}

// Feeds walks the outline tree depth-first and returns every feed leaf.
func (d *Document) Feeds() []FeedEntry {
	var entries []FeedEntry
	var walk func(outlines []Outline, path []string)
	walk = func(outlines []Outline, path []string) {
		for _, o := range outlines {
			if o.IsFeed() {
				entries = append(entries, FeedEntry{
					FolderPath: append([]string{}, path...),
					Title:      o.Title,
					XMLURL:     o.XMLURL,
					HTMLURL:    o.HTMLURL,
				})
				continue
			}
			walk(o.Children, append(path, o.Title))
		}
	}
	walk(d.Outlines, nil)
	return entries
}

type ErrorKind string

const (
	KindInvalidData   ErrorKind = "opml_invalid_data"
	KindParsingFailed ErrorKind = "opml_parsing_failed"
	KindNoFeeds       ErrorKind = "opml_no_feeds"
	KindExportFailed  ErrorKind = "opml_export_failed"
)

var (
	ErrInvalidData   = &Error{Kind: KindInvalidData}
	ErrParsingFailed = &Error{Kind: KindParsingFailed}
	ErrNoFeeds       = &Error{Kind: KindNoFeeds}
	ErrExportFailed  = &Error{Kind: KindExportFailed}
)

type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func NewError(kind ErrorKind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindInvalidData:
		msg = "invalid OPML data"
	case KindParsingFailed:
		msg = "failed to parse OPML"
	case KindNoFeeds:
		msg = "no feeds found in OPML"
	case KindExportFailed:
		msg = "failed to export OPML"
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
	case KindInvalidData, KindParsingFailed:
		return "Make sure the file is a valid OPML export from your feed reader."
	case KindNoFeeds:
		return "The file contains no feed subscriptions."
	default:
		return ""
	}
}
