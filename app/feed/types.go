package feed

import (
	"time"
)

// Feed processing types

type ParsedFeed struct {
	Title       string
	Description string
	HomePageURL string
	ImageURL    string
	Format      string // rss, atom or json
	Articles    []ParsedArticle
}

type ParsedArticle struct {
	ID          string // format-native id (GUID, entry id, item id) or a generated one
	Title       string
	Summary     string // plain text
	ContentHTML string
	URL         string
	Author      string
	PublishedAt *time.Time
}

// DedupKey is the canonical URL when present, else the native id.
func (a ParsedArticle) DedupKey() string {
	if a.URL != "" {
		return a.URL
	}
	return a.ID
}

// Content extraction types

type ExtractedContent struct {
	URL         string
	Title       string
	Author      string
	Content     string // HTML of the main region with absolute URLs
	TextContent string
	Excerpt     string
}
