package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultQueueSize   = 100
	DefaultTaskTimeout = 10 * time.Minute

	maxRetryDelay = 30 * time.Second
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// ErrAlreadyQueued is returned when an equivalent task is still waiting.
var ErrAlreadyQueued = errors.New("equivalent task already queued")

// Stats describes the work the scheduler has done so far.
type Stats struct {
	QueueSize       int        `json:"queue_size"`
	TotalProcessed  int64      `json:"total_processed"`
	TotalErrors     int64      `json:"total_errors"`
	LastProcessedAt *time.Time `json:"last_processed_at,omitempty"`
	Running         string     `json:"running,omitempty"`
}

// Scheduler drains a task queue with a single worker, so all refresh work
// runs one task at a time and the store has one writer.
type Scheduler struct {
	taskTimeout time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface

	mu      sync.Mutex
	queued  map[string]bool
	stats   Stats
	stopped bool
}

func NewScheduler(queueSize int, taskTimeout time.Duration) *Scheduler {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if taskTimeout <= 0 {
		taskTimeout = DefaultTaskTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		taskTimeout: taskTimeout,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, queueSize),
		queued:      make(map[string]bool),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.worker()
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// EnqueueTask queues a task unless an equivalent one is already waiting.
func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	key := dedupKey(task)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("scheduler is stopped")
	}
	if s.queued[key] {
		slog.Debug("Equivalent task already queued, skipping", "type", string(task.GetType()), "feed_id", task.GetFeedID())
		return ErrAlreadyQueued
	}

	select {
	case s.taskQueue <- task:
		s.queued[key] = true
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.QueueSize = len(s.taskQueue)
	return stats
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.mu.Lock()
			delete(s.queued, dedupKey(task))
			s.stats.Running = string(task.GetType())
			s.mu.Unlock()

			s.executeTask(task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)

	now := time.Now()
	s.mu.Lock()
	s.stats.TotalProcessed++
	s.stats.LastProcessedAt = &now
	s.stats.Running = ""
	if err != nil {
		s.stats.TotalErrors++
	}
	s.mu.Unlock()

	if err == nil {
		slog.Debug("Task completed", "type", string(task.GetType()), "id", task.GetID(), "source", string(task.GetSource()), "duration", task.GetDuration().String())
		return
	}

	slog.Error("Task execution failed", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if s.ctx.Err() != nil {
		return
	}

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
	if retryDelay > maxRetryDelay {
		retryDelay = maxRetryDelay
	}

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "feed_id", task.GetFeedID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}
