package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const articleColumns = `id, feed_id, external_id, title, summary, content, author, url,
	published_at, is_read, is_starred, full_content, has_full_content, created_at`

// ArticleRepository handles database operations for articles
type ArticleRepository struct {
	db *DB
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(db *DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

func scanArticle(row rowScanner) (*Article, error) {
	var (
		a         Article
		published sql.NullTime
	)
	err := row.Scan(&a.ID, &a.FeedID, &a.ExternalID, &a.Title, &a.Summary, &a.Content, &a.Author, &a.URL,
		&published, &a.IsRead, &a.IsStarred, &a.FullContent, &a.HasFullContent, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if published.Valid {
		t := published.Time
		a.PublishedAt = &t
	}
	return &a, nil
}

func (r *ArticleRepository) queryArticles(ctx context.Context, query string, args ...any) ([]Article, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, nil
}

// GetArticles returns a feed's articles, newest first.
func (r *ArticleRepository) GetArticles(ctx context.Context, feedID string, onlyUnread bool) ([]Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE feed_id = ?`
	if onlyUnread {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY COALESCE(published_at, created_at) DESC`
	return r.queryArticles(ctx, query, feedID)
}

// GetStarredArticles returns starred articles across all feeds.
func (r *ArticleRepository) GetStarredArticles(ctx context.Context) ([]Article, error) {
	return r.queryArticles(ctx, `SELECT `+articleColumns+` FROM articles
		WHERE is_starred = 1 ORDER BY COALESCE(published_at, created_at) DESC`)
}

// GetArticlesNeedingContent lists articles with a URL and no extracted content.
func (r *ArticleRepository) GetArticlesNeedingContent(ctx context.Context, feedID string) ([]Article, error) {
	return r.queryArticles(ctx, `SELECT `+articleColumns+` FROM articles
		WHERE feed_id = ? AND has_full_content = 0 AND url <> ''
		ORDER BY created_at`, feedID)
}

// GetArticle returns nil without error when the article does not exist.
func (r *ArticleRepository) GetArticle(ctx context.Context, id string) (*Article, error) {
	a, err := scanArticle(r.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return a, nil
}

// GetArticleKeys returns the dedup keys already stored for a feed.
func (r *ArticleRepository) GetArticleKeys(ctx context.Context, feedID string) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT dedup_key FROM articles WHERE feed_id = ?", feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to get article keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan article key: %w", err)
		}
		keys[key] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article keys: %w", err)
	}

	return keys, nil
}

// SetFullContent stores extracted content and raises the flag together.
func (r *ArticleRepository) SetFullContent(ctx context.Context, id, content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("refusing to store empty full content for article %s", id)
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE articles SET full_content = ?, has_full_content = 1 WHERE id = ?
	`, content, id)
	if err != nil {
		return fmt.Errorf("failed to store full content: %w", err)
	}
	return nil
}

func (r *ArticleRepository) SetRead(ctx context.Context, id string, read bool) error {
	return r.setFlag(ctx, "is_read", id, read)
}

func (r *ArticleRepository) SetStarred(ctx context.Context, id string, starred bool) error {
	return r.setFlag(ctx, "is_starred", id, starred)
}

// MarkFeedRead marks every article of the feed as read.
func (r *ArticleRepository) MarkFeedRead(ctx context.Context, feedID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, "UPDATE articles SET is_read = 1 WHERE feed_id = ? AND is_read = 0", feedID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark feed read: %w", err)
	}
	return res.RowsAffected()
}

func (r *ArticleRepository) setFlag(ctx context.Context, column, id string, value bool) error {
	res, err := r.db.ExecContext(ctx, "UPDATE articles SET "+column+" = ? WHERE id = ?", boolToInt(value), id)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetUnreadCounts returns unread article counts keyed by feed id.
func (r *ArticleRepository) GetUnreadCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT feed_id, COUNT(*) FROM articles WHERE is_read = 0 GROUP BY feed_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get unread counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			feedID string
			count  int
		)
		if err := rows.Scan(&feedID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan unread count: %w", err)
		}
		counts[feedID] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unread counts: %w", err)
	}

	return counts, nil
}

// GetArticleStats returns totals across the whole store.
func (r *ArticleRepository) GetArticleStats(ctx context.Context) (total, unread, starred int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_read = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_starred = 1 THEN 1 ELSE 0 END), 0)
		FROM articles
	`).Scan(&total, &unread, &starred)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get article stats: %w", err)
	}
	return total, unread, starred, nil
}
