package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeRefreshAll      TaskType = "refresh_all"
	TaskTypeRefreshFeed     TaskType = "refresh_feed"
	TaskTypeBackfillContent TaskType = "backfill_content"
)

// Source tells who asked for the work. Only user requests bypass the
// connectivity and preference gate.
type Source string

const (
	SourceUser       Source = "user"
	SourceTimer      Source = "timer"
	SourceBackground Source = "background"
)

const (
	DefaultMaxRetries = 3
)

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetFeedID() string
	GetSource() Source
	GetRetryCount() int
	GetMaxRetries() int
	IncrementRetryCount()
	CanRetry() bool
	Start()
	GetDuration() time.Duration
}

type Task struct {
	ID         string
	Type       TaskType
	FeedID     string // empty for batch tasks
	Source     Source
	RetryCount int
	MaxRetries int
	StartedAt  *time.Time
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

func (t *Task) GetFeedID() string {
	return t.FeedID
}

func (t *Task) GetSource() Source {
	return t.Source
}

func (t *Task) GetRetryCount() int {
	return t.RetryCount
}

func (t *Task) GetMaxRetries() int {
	return t.MaxRetries
}

func (t *Task) IncrementRetryCount() {
	t.RetryCount++
}

func (t *Task) CanRetry() bool {
	return t.RetryCount < t.MaxRetries
}

func (t *Task) Start() {
	now := time.Now()
	t.StartedAt = &now
}

func (t *Task) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}

// dedupKey identifies tasks that would do the same work.
func dedupKey(t TaskInterface) string {
	return string(t.GetType()) + ":" + t.GetFeedID()
}

func NewTask(taskType TaskType, feedID string, source Source) Task {
	return Task{
		ID:         uuid.NewString(),
		Type:       taskType,
		FeedID:     feedID,
		Source:     source,
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
	}
}
