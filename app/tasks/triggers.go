package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultIdlePoll is how often a trigger re-reads preferences while
	// automatic refresh is switched off.
	DefaultIdlePoll = time.Minute

	// DefaultBackgroundTimeLimit bounds one background run.
	DefaultBackgroundTimeLimit = 30 * time.Second
)

var (
	_ Trigger = (*TimerTrigger)(nil)
	_ Trigger = (*BackgroundTrigger)(nil)
)

type triggerBase struct {
	scheduler TaskSchedulerInterface
	engine    Refresher
	gate      *Gate
	interval  func() time.Duration
	idlePoll  time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (b *triggerBase) start(ctx context.Context, loop func(ctx context.Context)) {
	ctx, b.cancel = context.WithCancel(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		loop(ctx)
	}()
}

func (b *triggerBase) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
}

func preferredInterval(prefs PreferencesSource) func() time.Duration {
	return func() time.Duration {
		return prefs.Get().Refresh.Interval()
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// TimerTrigger enqueues a refresh at the preferred interval, plus one at start.
type TimerTrigger struct {
	triggerBase
}

func NewTimerTrigger(scheduler TaskSchedulerInterface, engine Refresher, gate *Gate, prefs PreferencesSource) *TimerTrigger {
	return &TimerTrigger{triggerBase{
		scheduler: scheduler,
		engine:    engine,
		gate:      gate,
		interval:  preferredInterval(prefs),
		idlePoll:  DefaultIdlePoll,
	}}
}

func (t *TimerTrigger) Start(ctx context.Context) {
	t.start(ctx, t.loop)
}

func (t *TimerTrigger) loop(ctx context.Context) {
	t.enqueue()

	for {
		interval := t.interval()
		if interval == 0 {
			if !sleep(ctx, t.idlePoll) {
				return
			}
			continue
		}

		if !sleep(ctx, interval) {
			return
		}
		t.enqueue()
	}
}

func (t *TimerTrigger) enqueue() {
	task := NewRefreshAllTask(t.engine, RefreshAllOptions{Source: SourceTimer, Gate: t.gate})
	if err := t.scheduler.EnqueueTask(task); err != nil && !errors.Is(err, ErrAlreadyQueued) {
		slog.Warn("Failed to enqueue timed refresh", "error", err)
	}
}

// BackgroundTrigger behaves like an OS background refresh task: a one-shot
// request with an earliest begin date, a short time limit, and re-arming
// only after the previous run has finished.
type BackgroundTrigger struct {
	triggerBase
	timeLimit time.Duration
}

func NewBackgroundTrigger(scheduler TaskSchedulerInterface, engine Refresher, gate *Gate, prefs PreferencesSource, timeLimit time.Duration) *BackgroundTrigger {
	if timeLimit <= 0 {
		timeLimit = DefaultBackgroundTimeLimit
	}
	return &BackgroundTrigger{
		triggerBase: triggerBase{
			scheduler: scheduler,
			engine:    engine,
			gate:      gate,
			interval:  preferredInterval(prefs),
			idlePoll:  DefaultIdlePoll,
		},
		timeLimit: timeLimit,
	}
}

func (t *BackgroundTrigger) Start(ctx context.Context) {
	t.start(ctx, t.loop)
}

func (t *BackgroundTrigger) loop(ctx context.Context) {
	for {
		interval := t.interval()
		if interval == 0 {
			if !sleep(ctx, t.idlePoll) {
				return
			}
			continue
		}

		earliest := time.Now().Add(interval)
		slog.Debug("Background refresh armed", "earliest_begin", earliest.Format(time.RFC3339))
		if !sleep(ctx, time.Until(earliest)) {
			return
		}

		done := make(chan struct{})
		var once sync.Once
		task := NewRefreshAllTask(t.engine, RefreshAllOptions{
			Source:    SourceBackground,
			Gate:      t.gate,
			TimeLimit: t.timeLimit,
			OnDone: func(int, error) {
				once.Do(func() { close(done) })
			},
		})

		if err := t.scheduler.EnqueueTask(task); err != nil {
			if !errors.Is(err, ErrAlreadyQueued) {
				slog.Warn("Failed to enqueue background refresh", "error", err)
			}
			continue
		}

		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}
}
