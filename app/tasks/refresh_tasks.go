package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RefreshAllOptions configure a batch refresh task.
type RefreshAllOptions struct {
	Source Source
	// Gate is consulted before refreshing. Ignored for user requests.
	Gate *Gate
	// TimeLimit bounds the run, on top of the scheduler's own timeout.
	TimeLimit time.Duration
	// OnDone is called once the task has run, whatever the outcome.
	OnDone func(newArticles int, err error)
}

type RefreshAllTask struct {
	Task
	engine Refresher
	opts   RefreshAllOptions
}

func NewRefreshAllTask(engine Refresher, opts RefreshAllOptions) *RefreshAllTask {
	task := &RefreshAllTask{
		Task:   NewTask(TaskTypeRefreshAll, "", opts.Source),
		engine: engine,
		opts:   opts,
	}
	// Triggered runs come back on their own schedule.
	if opts.Source != SourceUser {
		task.MaxRetries = 0
	}
	return task
}

func (t *RefreshAllTask) Execute(ctx context.Context) (err error) {
	n := 0
	defer func() {
		if t.opts.OnDone != nil {
			t.opts.OnDone(n, err)
		}
	}()

	if t.Source != SourceUser && t.opts.Gate != nil {
		if ok, reason := t.opts.Gate.Allow(); !ok {
			slog.Info("Refresh skipped", "source", string(t.Source), "reason", reason)
			return nil
		}
	}

	if t.opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.TimeLimit)
		defer cancel()
	}

	n, err = t.engine.RefreshAll(ctx)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	slog.Info("Feeds refreshed", "source", string(t.Source), "new_articles", n, "duration", t.GetDuration().String())
	return nil
}

type RefreshFeedTask struct {
	Task
	engine Refresher
	feeds  FeedGetter
}

func NewRefreshFeedTask(feedID string, engine Refresher, feeds FeedGetter) *RefreshFeedTask {
	return &RefreshFeedTask{
		Task:   NewTask(TaskTypeRefreshFeed, feedID, SourceUser),
		engine: engine,
		feeds:  feeds,
	}
}

func (t *RefreshFeedTask) Execute(ctx context.Context) error {
	f, err := t.feeds.GetFeed(ctx, t.FeedID)
	if err != nil {
		return fmt.Errorf("failed to load feed: %w", err)
	}
	if f == nil {
		slog.Debug("Feed no longer exists, skipping refresh", "feed_id", t.FeedID)
		return nil
	}

	n, err := t.engine.RefreshOne(ctx, f)
	if err != nil {
		return fmt.Errorf("failed to refresh %s: %w", f.URL, err)
	}

	slog.Info("Feed refreshed", "feed", f.URL, "new_articles", n)
	return nil
}

type BackfillContentTask struct {
	Task
	engine Refresher
	feeds  FeedGetter
}

func NewBackfillContentTask(feedID string, engine Refresher, feeds FeedGetter) *BackfillContentTask {
	task := &BackfillContentTask{
		Task:   NewTask(TaskTypeBackfillContent, feedID, SourceUser),
		engine: engine,
		feeds:  feeds,
	}
	task.MaxRetries = 0
	return task
}

func (t *BackfillContentTask) Execute(ctx context.Context) error {
	f, err := t.feeds.GetFeed(ctx, t.FeedID)
	if err != nil {
		return fmt.Errorf("failed to load feed: %w", err)
	}
	if f == nil || !f.FetchFullContent {
		slog.Debug("Content extraction not enabled for feed", "feed_id", t.FeedID)
		return nil
	}

	stored, err := t.engine.BackfillFullContent(ctx, f)
	if err != nil {
		return err
	}

	slog.Debug("Full content stored", "feed", f.URL, "articles", stored)
	return nil
}
