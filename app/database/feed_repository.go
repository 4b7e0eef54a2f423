package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const feedColumns = `id, folder_id, title, url, home_page_url, description, icon,
	last_updated_at, sort_order, fetch_full_content, created_at`

// FeedRepository handles database operations for feeds
type FeedRepository struct {
	db *DB
}

// NewFeedRepository creates a new feed repository
func NewFeedRepository(db *DB) *FeedRepository {
	return &FeedRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (*Feed, error) {
	var (
		f           Feed
		folderID    sql.NullString
		lastUpdated sql.NullTime
	)
	err := row.Scan(&f.ID, &folderID, &f.Title, &f.URL, &f.HomePageURL, &f.Description, &f.Icon,
		&lastUpdated, &f.SortOrder, &f.FetchFullContent, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	if folderID.Valid {
		f.FolderID = &folderID.String
	}
	if lastUpdated.Valid {
		t := lastUpdated.Time
		f.LastUpdatedAt = &t
	}
	return &f, nil
}

// GetFeeds returns all feeds in display order.
func (r *FeedRepository) GetFeeds(ctx context.Context) ([]Feed, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+feedColumns+` FROM feeds ORDER BY sort_order, title`)
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, *f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

// GetFeed returns nil without error when the feed does not exist.
func (r *FeedRepository) GetFeed(ctx context.Context, id string) (*Feed, error) {
	f, err := scanFeed(r.db.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}
	return f, nil
}

// GetFeedByURL matches the normalized URL exactly.
func (r *FeedRepository) GetFeedByURL(ctx context.Context, url string) (*Feed, error) {
	f, err := scanFeed(r.db.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE url = ?`, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed by url: %w", err)
	}
	return f, nil
}

func (r *FeedRepository) GetFeedCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feeds").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

// CreateFeed inserts the feed and its initial articles in one transaction.
// IDs, timestamps and the sort order are filled in on the passed values.
func (r *FeedRepository) CreateFeed(ctx context.Context, feed *Feed, articles []Article) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if feed.ID == "" {
		feed.ID = uuid.NewString()
	}
	feed.CreatedAt = time.Now().UTC()

	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(sort_order), -1) + 1 FROM feeds").Scan(&feed.SortOrder); err != nil {
		return fmt.Errorf("failed to compute sort order: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO feeds (`+feedColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, feed.ID, feed.FolderID, feed.Title, feed.URL, feed.HomePageURL, feed.Description, feed.Icon,
		feed.LastUpdatedAt, feed.SortOrder, boolToInt(feed.FetchFullContent), feed.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert feed: %w", err)
	}

	if _, err := insertArticles(ctx, tx, feed.ID, articles); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit feed: %w", err)
	}
	return nil
}

// SaveRefresh stores refreshed feed metadata and the new articles atomically,
// so a cancelled batch never leaves a half-applied feed. It returns the
// articles that were actually inserted; ones whose dedup key already exists
// are skipped.
func (r *FeedRepository) SaveRefresh(ctx context.Context, feed *Feed, articles []Article) ([]Article, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE feeds
		SET title = ?, description = ?, home_page_url = ?, last_updated_at = ?
		WHERE id = ?
	`, feed.Title, feed.Description, feed.HomePageURL, feed.LastUpdatedAt, feed.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update feed metadata: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("feed %s no longer exists", feed.ID)
	}

	inserted, err := insertArticles(ctx, tx, feed.ID, articles)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit refresh: %w", err)
	}
	return inserted, nil
}

// UpdateFeedSettings persists user-editable fields.
func (r *FeedRepository) UpdateFeedSettings(ctx context.Context, feed *Feed) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET title = ?, folder_id = ?, sort_order = ?, fetch_full_content = ?
		WHERE id = ?
	`, feed.Title, feed.FolderID, feed.SortOrder, boolToInt(feed.FetchFullContent), feed.ID)
	if err != nil {
		return fmt.Errorf("failed to update feed settings: %w", err)
	}
	return nil
}

func (r *FeedRepository) UpdateFeedIcon(ctx context.Context, id string, icon []byte) error {
	_, err := r.db.ExecContext(ctx, "UPDATE feeds SET icon = ? WHERE id = ?", icon, id)
	if err != nil {
		return fmt.Errorf("failed to update feed icon: %w", err)
	}
	return nil
}

// DeleteFeed removes the feed's articles and then the feed in one transaction.
func (r *FeedRepository) DeleteFeed(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM articles WHERE feed_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete feed articles: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM feeds WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit feed deletion: %w", err)
	}
	return nil
}

var ErrNotFound = errors.New("record not found")

func insertArticles(ctx context.Context, tx *sql.Tx, feedID string, articles []Article) ([]Article, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO articles (
			id, feed_id, external_id, dedup_key, title, summary, content, author, url,
			published_at, is_read, is_starred, full_content, has_full_content, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, '', 0, ?)
		ON CONFLICT (feed_id, dedup_key) DO NOTHING
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare article insert: %w", err)
	}
	defer stmt.Close()

	var inserted []Article
	now := time.Now().UTC()
	for i := range articles {
		a := &articles[i]
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a.FeedID = feedID
		a.CreatedAt = now

		res, err := stmt.ExecContext(ctx, a.ID, a.FeedID, a.ExternalID, a.DedupKey(), a.Title, a.Summary,
			a.Content, a.Author, a.URL, a.PublishedAt, a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert article %q: %w", a.DedupKey(), err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted = append(inserted, *a)
		}
	}
	return inserted, nil
}
