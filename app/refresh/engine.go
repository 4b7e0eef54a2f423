// Package refresh keeps the local article store in sync with remote feeds.
package refresh

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lysyi3m/rss-hoard/app/database"
	"github.com/lysyi3m/rss-hoard/app/feed"
	"github.com/lysyi3m/rss-hoard/app/notify"
)

const (
	// MinRefreshInterval keeps recently refreshed feeds out of the candidate set.
	MinRefreshInterval = 15 * time.Minute

	// ExtractionDelay separates full-content fetches within one feed.
	ExtractionDelay = 100 * time.Millisecond

	iconAccept = "image/*"
)

type FeedStore interface {
	GetFeeds(ctx context.Context) ([]database.Feed, error)
	GetFeed(ctx context.Context, id string) (*database.Feed, error)
	GetFeedByURL(ctx context.Context, url string) (*database.Feed, error)
	CreateFeed(ctx context.Context, feed *database.Feed, articles []database.Article) error
	SaveRefresh(ctx context.Context, feed *database.Feed, articles []database.Article) ([]database.Article, error)
	UpdateFeedIcon(ctx context.Context, id string, icon []byte) error
	DeleteFeed(ctx context.Context, id string) error
}

type ArticleStore interface {
	GetArticleKeys(ctx context.Context, feedID string) (map[string]struct{}, error)
	GetArticlesNeedingContent(ctx context.Context, feedID string) ([]database.Article, error)
	SetFullContent(ctx context.Context, id, content string) error
}

type FolderStore interface {
	GetOrCreateFolder(ctx context.Context, name string) (*database.Folder, error)
	GetFoldersWithFeeds(ctx context.Context, feeds []database.Feed) ([]database.FolderWithFeeds, []database.Feed, error)
}

type FeedParser interface {
	FetchAndParse(ctx context.Context, feedURL string) (*feed.ParsedFeed, error)
}

type ContentExtractor interface {
	Extract(ctx context.Context, pageURL string) (*feed.ExtractedContent, error)
}

type Fetcher interface {
	Get(ctx context.Context, url string, accept string) (*feed.Response, error)
}

type Notifier interface {
	Dispatch(ctx context.Context, articles []notify.NewArticle) ([]notify.Notification, error)
}

// Deps are the collaborators of an Engine. Fetcher and Notifier are optional.
type Deps struct {
	Feeds     FeedStore
	Articles  ArticleStore
	Folders   FolderStore
	Parser    FeedParser
	Extractor ContentExtractor
	Fetcher   Fetcher
	Notifier  Notifier
}

// Engine adds, refreshes and removes feeds. Store writes go through one
// mutex so there is a single writer even when API calls overlap a refresh.
type Engine struct {
	feeds     FeedStore
	articles  ArticleStore
	folders   FolderStore
	parser    FeedParser
	extractor ContentExtractor
	fetcher   Fetcher
	notifier  Notifier

	writeMu sync.Mutex
	now     func() time.Time
}

func NewEngine(deps Deps) *Engine {
	return &Engine{
		feeds:     deps.Feeds,
		articles:  deps.Articles,
		folders:   deps.Folders,
		parser:    deps.Parser,
		extractor: deps.Extractor,
		fetcher:   deps.Fetcher,
		notifier:  deps.Notifier,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AddOptions tune a new subscription.
type AddOptions struct {
	Title            string // used when the feed has no title beyond its host name
	FolderID         *string
	FetchFullContent bool
}

// NormalizeURL trims the input and defaults the scheme to https. The result
// must parse and carry a host.
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", newError(KindInvalidURL, "empty URL", nil)
	}

	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", newError(KindInvalidURL, s, err)
	}
	if u.Host == "" || strings.ContainsAny(u.Host, " \t") {
		return "", newError(KindInvalidURL, "missing host", nil)
	}

	return s, nil
}

// ValidateFeed fetches and parses a feed without storing anything.
func (e *Engine) ValidateFeed(ctx context.Context, raw string) (*feed.ParsedFeed, error) {
	normalized, err := NormalizeURL(raw)
	if err != nil {
		return nil, err
	}
	return e.parser.FetchAndParse(ctx, normalized)
}

// AddFeed subscribes to a feed and stores its current articles.
func (e *Engine) AddFeed(ctx context.Context, raw string, opts AddOptions) (*database.Feed, error) {
	normalized, err := NormalizeURL(raw)
	if err != nil {
		return nil, err
	}

	existing, err := e.feeds.GetFeedByURL(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicate feed: %w", err)
	}
	if existing != nil {
		return nil, newError(KindDuplicateFeed, normalized, nil)
	}

	parsed, err := e.parser.FetchAndParse(ctx, normalized)
	if err != nil {
		return nil, err
	}

	now := e.now()
	f := &database.Feed{
		FolderID:         opts.FolderID,
		Title:            feedTitle(parsed, opts.Title, normalized),
		URL:              normalized,
		HomePageURL:      parsed.HomePageURL,
		Description:      parsed.Description,
		LastUpdatedAt:    &now,
		FetchFullContent: opts.FetchFullContent,
	}
	articles := newArticles(parsed.Articles, map[string]struct{}{})

	e.writeMu.Lock()
	err = e.feeds.CreateFeed(ctx, f, articles)
	e.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to store feed: %w", err)
	}

	slog.Info("Feed added", "feed", f.URL, "title", f.Title, "articles", len(articles))

	if parsed.ImageURL != "" {
		e.storeIcon(ctx, f, parsed.ImageURL)
	}

	return f, nil
}

func (e *Engine) storeIcon(ctx context.Context, f *database.Feed, iconURL string) {
	if e.fetcher == nil {
		return
	}

	resp, err := e.fetcher.Get(ctx, iconURL, iconAccept)
	if err != nil {
		slog.Debug("Failed to fetch feed icon", "feed", f.URL, "icon", iconURL, "error", err)
		return
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if err := e.feeds.UpdateFeedIcon(ctx, f.ID, resp.Body); err != nil {
		slog.Warn("Failed to store feed icon", "feed", f.URL, "error", err)
		return
	}
	f.Icon = resp.Body
}

// RefreshOne refreshes a single feed regardless of when it was last updated.
// Full-content backfill runs afterwards for opted-in feeds; its failures are
// only logged.
func (e *Engine) RefreshOne(ctx context.Context, f *database.Feed) (int, error) {
	added, err := e.refreshFeed(ctx, f)
	if err != nil {
		return 0, err
	}
	return len(added), nil
}

func (e *Engine) refreshFeed(ctx context.Context, f *database.Feed) ([]database.Article, error) {
	parsed, err := e.parser.FetchAndParse(ctx, f.URL)
	if err != nil {
		return nil, err
	}

	now := e.now()
	updated := *f
	updated.Title = cmp.Or(parsed.Title, f.Title)
	updated.Description = parsed.Description
	updated.HomePageURL = parsed.HomePageURL
	updated.LastUpdatedAt = &now

	e.writeMu.Lock()
	added, err := e.saveRefresh(ctx, &updated, parsed.Articles)
	e.writeMu.Unlock()
	if err != nil {
		return nil, err
	}
	*f = updated

	slog.Debug("Feed refreshed", "feed", f.URL, "new_articles", len(added))

	if f.FetchFullContent {
		if _, err := e.BackfillFullContent(ctx, f); err != nil {
			slog.Debug("Full content backfill interrupted", "feed", f.URL, "error", err)
		}
	}

	return added, nil
}

// saveRefresh diffs the parsed articles against the stored keys and writes
// the result. Callers hold writeMu.
func (e *Engine) saveRefresh(ctx context.Context, f *database.Feed, parsed []feed.ParsedArticle) ([]database.Article, error) {
	keys, err := e.articles.GetArticleKeys(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	return e.feeds.SaveRefresh(ctx, f, newArticles(parsed, keys))
}

// RefreshAll refreshes every candidate feed one after another. Per-feed
// failures do not stop the batch; the last one is returned only when no new
// articles were found at all.
func (e *Engine) RefreshAll(ctx context.Context) (int, error) {
	all, err := e.feeds.GetFeeds(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load feeds: %w", err)
	}

	candidates := RefreshCandidates(all, e.now())
	slog.Debug("Refreshing feeds", "candidates", len(candidates), "total", len(all))

	var (
		total   int
		lastErr error
		events  []notify.NewArticle
	)

	for i := range candidates {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		f := &candidates[i]
		added, err := e.refreshFeed(ctx, f)
		if err != nil {
			slog.Warn("Failed to refresh feed", "feed", f.URL, "error", err)
			lastErr = fmt.Errorf("failed to refresh %s: %w", f.URL, err)
			continue
		}

		total += len(added)
		for _, a := range added {
			events = append(events, notify.NewArticle{
				FeedID:       f.ID,
				FeedTitle:    f.Title,
				ArticleID:    a.ID,
				ArticleTitle: a.Title,
			})
		}
	}

	if len(events) > 0 && e.notifier != nil {
		if _, err := e.notifier.Dispatch(context.WithoutCancel(ctx), events); err != nil {
			slog.Warn("Failed to dispatch notifications", "error", err)
		}
	}

	slog.Info("Refresh completed", "feeds", len(candidates), "new_articles", total)

	if total == 0 && lastErr != nil {
		return 0, lastErr
	}
	return total, nil
}

// RefreshCandidates orders feeds by last update, never-updated first, and
// drops those updated within MinRefreshInterval of now.
func RefreshCandidates(feeds []database.Feed, now time.Time) []database.Feed {
	candidates := make([]database.Feed, 0, len(feeds))
	for _, f := range feeds {
		if f.LastUpdatedAt != nil && now.Sub(*f.LastUpdatedAt) < MinRefreshInterval {
			continue
		}
		candidates = append(candidates, f)
	}

	slices.SortStableFunc(candidates, func(a, b database.Feed) int {
		switch {
		case a.LastUpdatedAt == nil && b.LastUpdatedAt == nil:
			return 0
		case a.LastUpdatedAt == nil:
			return -1
		case b.LastUpdatedAt == nil:
			return 1
		default:
			return a.LastUpdatedAt.Compare(*b.LastUpdatedAt)
		}
	})

	return candidates
}

// DeleteFeed removes a feed and its articles.
func (e *Engine) DeleteFeed(ctx context.Context, id string) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if err := e.feeds.DeleteFeed(ctx, id); err != nil {
		return err
	}
	slog.Info("Feed deleted", "id", id)
	return nil
}

// newArticles maps parsed articles whose dedup key is not in keys, adding
// each accepted key so repeats within one document are dropped too.
func newArticles(parsed []feed.ParsedArticle, keys map[string]struct{}) []database.Article {
	var added []database.Article
	for _, p := range parsed {
		key := p.DedupKey()
		if _, ok := keys[key]; ok {
			continue
		}
		keys[key] = struct{}{}

		added = append(added, database.Article{
			ExternalID:  p.ID,
			Title:       p.Title,
			Summary:     p.Summary,
			Content:     p.ContentHTML,
			Author:      p.Author,
			URL:         p.URL,
			PublishedAt: p.PublishedAt,
		})
	}
	return added
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}

// feedTitle picks the parsed title unless it is only the host name the
// parser falls back to, in which case a caller-supplied title wins.
func feedTitle(parsed *feed.ParsedFeed, fallback, feedURL string) string {
	host := hostOf(feedURL)
	if parsed.Title != "" && parsed.Title != host {
		return parsed.Title
	}
	return cmp.Or(strings.TrimSpace(fallback), parsed.Title, host)
}
