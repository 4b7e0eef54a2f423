package refresh

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lysyi3m/rss-hoard/app/database"
	"golang.org/x/time/rate"
)

// BackfillFullContent extracts full content for the feed's articles that
// have a URL but no content yet. Extraction failures skip the article. The
// only error returned is context cancellation.
func (e *Engine) BackfillFullContent(ctx context.Context, f *database.Feed) (int, error) {
	if !f.FetchFullContent || e.extractor == nil {
		return 0, nil
	}

	pending, err := e.articles.GetArticlesNeedingContent(ctx, f.ID)
	if err != nil {
		slog.Warn("Failed to load articles for extraction", "feed", f.URL, "error", err)
		return 0, nil
	}
	if len(pending) == 0 {
		return 0, nil
	}

	limiter := rate.NewLimiter(rate.Every(ExtractionDelay), 1)
	stored := 0

	for i, a := range pending {
		if i > 0 {
			if err := limiter.Wait(ctx); err != nil {
				return stored, err
			}
		}

		content, err := e.extractor.Extract(ctx, a.URL)
		// The delay runs from the end of each extraction.
		limiter.Reserve()
		if err != nil {
			if ctx.Err() != nil {
				return stored, ctx.Err()
			}
			slog.Debug("Content extraction failed", "article", a.URL, "error", err)
			continue
		}
		if strings.TrimSpace(content.Content) == "" {
			continue
		}

		e.writeMu.Lock()
		err = e.articles.SetFullContent(ctx, a.ID, content.Content)
		e.writeMu.Unlock()
		if err != nil {
			slog.Warn("Failed to store extracted content", "article", a.URL, "error", err)
			continue
		}
		stored++
	}

	slog.Debug("Full content backfill finished", "feed", f.URL, "pending", len(pending), "stored", stored)
	return stored, nil
}
