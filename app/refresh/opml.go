package refresh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/lysyi3m/rss-hoard/app/database"
	"github.com/lysyi3m/rss-hoard/app/opml"
)

// ImportResult summarizes an OPML import.
type ImportResult struct {
	Added   int      `json:"added"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// ImportOPML subscribes to every feed in the document. Local folders are one
// level deep, so a feed lands in its outermost folder outline and deeper
// levels flatten into it. Existing subscriptions are skipped; other failures
// are counted and the import carries on.
func (e *Engine) ImportOPML(ctx context.Context, r io.Reader) (*ImportResult, error) {
	doc, err := opml.Parse(r)
	if err != nil {
		return nil, err
	}

	entries := doc.Feeds()
	if len(entries) == 0 {
		return nil, opml.NewError(opml.KindNoFeeds, "", nil)
	}

	result := &ImportResult{}
	folderIDs := make(map[string]string)

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var opts AddOptions
		if entry.Title != opml.Untitled {
			opts.Title = entry.Title
		}
		if len(entry.FolderPath) > 0 {
			id, err := e.folderFor(ctx, entry.FolderPath[0], folderIDs)
			if err != nil {
				slog.Warn("Failed to create folder for imported feed", "folder", entry.FolderPath[0], "error", err)
			} else {
				opts.FolderID = &id
			}
		}

		_, err := e.AddFeed(ctx, entry.XMLURL, opts)
		switch {
		case err == nil:
			result.Added++
		case errors.Is(err, ErrDuplicateFeed):
			result.Skipped++
		default:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entry.XMLURL, err))
			slog.Warn("Failed to import feed", "feed", entry.XMLURL, "error", err)
		}
	}

	slog.Info("OPML import finished", "added", result.Added, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

func (e *Engine) folderFor(ctx context.Context, name string, cache map[string]string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if id, ok := cache[key]; ok {
		return id, nil
	}

	e.writeMu.Lock()
	folder, err := e.folders.GetOrCreateFolder(ctx, name)
	e.writeMu.Unlock()
	if err != nil {
		return "", err
	}

	cache[key] = folder.ID
	return folder.ID, nil
}

// ExportOPML writes all subscriptions in display order, wrapped in their
// folders when grouped is set.
func (e *Engine) ExportOPML(ctx context.Context, w io.Writer, title string, grouped bool) error {
	feeds, err := e.feeds.GetFeeds(ctx)
	if err != nil {
		return opml.NewError(opml.KindExportFailed, "loading feeds", err)
	}

	now := e.now()
	var data []byte
	if grouped {
		folders, unfiled, err := e.folders.GetFoldersWithFeeds(ctx, feeds)
		if err != nil {
			return opml.NewError(opml.KindExportFailed, "loading folders", err)
		}
		groups := make([]opml.Group, 0, len(folders))
		for _, f := range folders {
			groups = append(groups, opml.Group{Name: f.Name, Feeds: entriesFor(f.Feeds)})
		}
		data = opml.GenerateGrouped(title, groups, entriesFor(unfiled), now)
	} else {
		data = opml.Generate(title, entriesFor(feeds), now)
	}

	if _, err := w.Write(data); err != nil {
		return opml.NewError(opml.KindExportFailed, "", err)
	}
	return nil
}

func entriesFor(feeds []database.Feed) []opml.FeedEntry {
	entries := make([]opml.FeedEntry, 0, len(feeds))
	for _, f := range feeds {
		entries = append(entries, opml.FeedEntry{
			Title:   f.Title,
			XMLURL:  f.URL,
			HTMLURL: f.HomePageURL,
		})
	}
	return entries
}
