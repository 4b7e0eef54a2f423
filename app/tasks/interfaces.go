package tasks

import (
	"context"

	"github.com/lysyi3m/rss-hoard/app/database"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by triggers and the API to hand work to the single refresh worker.
// Example usage:
//
//	scheduler := NewScheduler(DefaultQueueSize, DefaultTaskTimeout)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewRefreshAllTask(engine, RefreshAllOptions{Source: SourceUser}))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	GetStats() Stats
}

// Refresher is the refresh engine as seen by tasks.
type Refresher interface {
	RefreshAll(ctx context.Context) (int, error)
	RefreshOne(ctx context.Context, feed *database.Feed) (int, error)
	BackfillFullContent(ctx context.Context, feed *database.Feed) (int, error)
}

type FeedGetter interface {
	GetFeed(ctx context.Context, id string) (*database.Feed, error)
}

// Trigger starts refresh work on its own schedule.
type Trigger interface {
	Start(ctx context.Context)
	Stop()
}
