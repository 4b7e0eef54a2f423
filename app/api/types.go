package api

import (
	"context"
	"io"
	"time"

	"github.com/lysyi3m/rss-hoard/app/config"
	"github.com/lysyi3m/rss-hoard/app/database"
	"github.com/lysyi3m/rss-hoard/app/feed"
	"github.com/lysyi3m/rss-hoard/app/refresh"
	"github.com/lysyi3m/rss-hoard/app/tasks"
)

// FeedService is the subset of the refresh engine used by handlers.
type FeedService interface {
	tasks.Refresher
	ValidateFeed(ctx context.Context, raw string) (*feed.ParsedFeed, error)
	AddFeed(ctx context.Context, raw string, opts refresh.AddOptions) (*database.Feed, error)
	DeleteFeed(ctx context.Context, id string) error
	ImportOPML(ctx context.Context, r io.Reader) (*refresh.ImportResult, error)
	ExportOPML(ctx context.Context, w io.Writer, title string, grouped bool) error
}

var _ FeedService = (*refresh.Engine)(nil)

type FeedRepository interface {
	GetFeeds(ctx context.Context) ([]database.Feed, error)
	GetFeed(ctx context.Context, id string) (*database.Feed, error)
	GetFeedCount(ctx context.Context) (int, error)
	UpdateFeedSettings(ctx context.Context, feed *database.Feed) error
}

type ArticleRepository interface {
	GetArticles(ctx context.Context, feedID string, onlyUnread bool) ([]database.Article, error)
	GetStarredArticles(ctx context.Context) ([]database.Article, error)
	GetArticle(ctx context.Context, id string) (*database.Article, error)
	SetRead(ctx context.Context, id string, read bool) error
	SetStarred(ctx context.Context, id string, starred bool) error
	MarkFeedRead(ctx context.Context, feedID string) (int64, error)
	GetUnreadCounts(ctx context.Context) (map[string]int, error)
	GetArticleStats(ctx context.Context) (total, unread, starred int, err error)
}

type FolderRepository interface {
	GetFolders(ctx context.Context) ([]database.Folder, error)
	CreateFolder(ctx context.Context, name string) (*database.Folder, error)
	SetExpanded(ctx context.Context, id string, expanded bool) error
	DeleteFolder(ctx context.Context, id string) error
}

type PreferencesStore interface {
	Get() config.Preferences
	Update(prefs config.Preferences) error
}

type Handler struct {
	service   FeedService
	feedRepo  FeedRepository
	articles  ArticleRepository
	folders   FolderRepository
	prefs     PreferencesStore
	scheduler tasks.TaskSchedulerInterface
	generator *feed.Generator
	version   string
}

type feedResponse struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	URL              string     `json:"url"`
	HomePageURL      string     `json:"home_page_url,omitempty"`
	Description      string     `json:"description,omitempty"`
	FolderID         *string    `json:"folder_id"`
	SortOrder        int        `json:"sort_order"`
	FetchFullContent bool       `json:"fetch_full_content"`
	HasIcon          bool       `json:"has_icon"`
	LastUpdatedAt    *time.Time `json:"last_updated_at"`
	UnreadCount      int        `json:"unread_count"`
}

func newFeedResponse(f database.Feed, unread int) feedResponse {
	return feedResponse{
		ID:               f.ID,
		Title:            f.Title,
		URL:              f.URL,
		HomePageURL:      f.HomePageURL,
		Description:      f.Description,
		FolderID:         f.FolderID,
		SortOrder:        f.SortOrder,
		FetchFullContent: f.FetchFullContent,
		HasIcon:          len(f.Icon) > 0,
		LastUpdatedAt:    f.LastUpdatedAt,
		UnreadCount:      unread,
	}
}

type articleResponse struct {
	ID             string     `json:"id"`
	FeedID         string     `json:"feed_id"`
	Title          string     `json:"title"`
	Summary        string     `json:"summary,omitempty"`
	Content        string     `json:"content,omitempty"`
	Author         string     `json:"author,omitempty"`
	URL            string     `json:"url,omitempty"`
	PublishedAt    *time.Time `json:"published_at"`
	IsRead         bool       `json:"is_read"`
	IsStarred      bool       `json:"is_starred"`
	HasFullContent bool       `json:"has_full_content"`
	FullContent    string     `json:"full_content,omitempty"`
}

// newArticleResponse leaves out the bodies unless full is set.
func newArticleResponse(a database.Article, full bool) articleResponse {
	r := articleResponse{
		ID:             a.ID,
		FeedID:         a.FeedID,
		Title:          a.Title,
		Summary:        a.Summary,
		Author:         a.Author,
		URL:            a.URL,
		PublishedAt:    a.PublishedAt,
		IsRead:         a.IsRead,
		IsStarred:      a.IsStarred,
		HasFullContent: a.HasFullContent,
	}
	if full {
		r.Content = a.Content
		r.FullContent = a.FullContent
	}
	return r
}

type addFeedRequest struct {
	URL              string  `json:"url" binding:"required"`
	FolderID         *string `json:"folder_id"`
	FetchFullContent bool    `json:"fetch_full_content"`
}

type validateFeedRequest struct {
	URL string `json:"url" binding:"required"`
}

// updateFeedRequest fields are optional; an empty folder_id unfiles the feed.
type updateFeedRequest struct {
	Title            *string `json:"title"`
	FolderID         *string `json:"folder_id"`
	SortOrder        *int    `json:"sort_order"`
	FetchFullContent *bool   `json:"fetch_full_content"`
}

type flagRequest struct {
	Value *bool `json:"value"`
}

type folderRequest struct {
	Name string `json:"name" binding:"required"`
}
