package database

import (
	"time"
)

type Feed struct {
	ID               string // Database UUID
	FolderID         *string
	Title            string
	URL              string // Normalized feed URL, unique
	HomePageURL      string
	Description      string
	Icon             []byte
	LastUpdatedAt    *time.Time // nil until the first successful refresh
	SortOrder        int
	FetchFullContent bool
	CreatedAt        time.Time
}

type Article struct {
	ID             string
	FeedID         string
	ExternalID     string // GUID, entry id or item id
	Title          string
	Summary        string
	Content        string
	Author         string
	URL            string
	PublishedAt    *time.Time
	IsRead         bool
	IsStarred      bool
	FullContent    string
	HasFullContent bool
	CreatedAt      time.Time
}

// DedupKey is the canonical URL when present, else the external id.
func (a Article) DedupKey() string {
	if a.URL != "" {
		return a.URL
	}
	return a.ExternalID
}

type Folder struct {
	ID         string
	Name       string
	SortOrder  int
	IsExpanded bool
	CreatedAt  time.Time
}

// FolderWithFeeds represents a folder containing its feeds for export.
type FolderWithFeeds struct {
	Folder
	Feeds []Feed
}
