package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FolderRepository handles database operations for folders
type FolderRepository struct {
	db *DB
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(db *DB) *FolderRepository {
	return &FolderRepository{db: db}
}

func scanFolder(row rowScanner) (*Folder, error) {
	var f Folder
	if err := row.Scan(&f.ID, &f.Name, &f.SortOrder, &f.IsExpanded, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FolderRepository) GetFolders(ctx context.Context) ([]Folder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, sort_order, is_expanded, created_at
		FROM folders ORDER BY sort_order, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get folders: %w", err)
	}
	defer rows.Close()

	var folders []Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan folder row: %w", err)
		}
		folders = append(folders, *f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating folder rows: %w", err)
	}

	return folders, nil
}

// GetFolderByName matches names case-insensitively.
func (r *FolderRepository) GetFolderByName(ctx context.Context, name string) (*Folder, error) {
	f, err := scanFolder(r.db.QueryRowContext(ctx, `
		SELECT id, name, sort_order, is_expanded, created_at
		FROM folders WHERE name = ? COLLATE NOCASE LIMIT 1
	`, strings.TrimSpace(name)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get folder by name: %w", err)
	}
	return f, nil
}

func (r *FolderRepository) CreateFolder(ctx context.Context, name string) (*Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("folder name is required")
	}

	f := &Folder{
		ID:         uuid.NewString(),
		Name:       name,
		IsExpanded: true,
		CreatedAt:  time.Now().UTC(),
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO folders (id, name, sort_order, is_expanded, created_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(sort_order), -1) + 1 FROM folders), 1, ?)
		RETURNING sort_order
	`, f.ID, f.Name, f.CreatedAt).Scan(&f.SortOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	return f, nil
}

// GetOrCreateFolder returns the existing folder with this name or creates it.
func (r *FolderRepository) GetOrCreateFolder(ctx context.Context, name string) (*Folder, error) {
	existing, err := r.GetFolderByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return r.CreateFolder(ctx, name)
}

func (r *FolderRepository) SetExpanded(ctx context.Context, id string, expanded bool) error {
	res, err := r.db.ExecContext(ctx, "UPDATE folders SET is_expanded = ? WHERE id = ?", boolToInt(expanded), id)
	if err != nil {
		return fmt.Errorf("failed to update folder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteFolder removes the folder; its feeds become unfiled.
func (r *FolderRepository) DeleteFolder(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM folders WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetFoldersWithFeeds returns every folder with its feeds, plus the feeds
// that belong to no folder.
func (r *FolderRepository) GetFoldersWithFeeds(ctx context.Context, feeds []Feed) ([]FolderWithFeeds, []Feed, error) {
	folders, err := r.GetFolders(ctx)
	if err != nil {
		return nil, nil, err
	}

	index := make(map[string]int, len(folders))
	grouped := make([]FolderWithFeeds, len(folders))
	for i, f := range folders {
		grouped[i] = FolderWithFeeds{Folder: f}
		index[f.ID] = i
	}

	var unfiled []Feed
	for _, feed := range feeds {
		if feed.FolderID != nil {
			if i, ok := index[*feed.FolderID]; ok {
				grouped[i].Feeds = append(grouped[i].Feeds, feed)
				continue
			}
		}
		unfiled = append(unfiled, feed)
	}

	return grouped, unfiled, nil
}
