// Package notify turns newly discovered articles into grouped notifications.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// NewArticle is one article found during a refresh cycle.
type NewArticle struct {
	FeedID       string
	FeedTitle    string
	ArticleID    string
	ArticleTitle string
}

type Notification struct {
	ID        string
	ThreadID  string // feed id, lets presenters group per feed
	FeedID    string
	ArticleID string // the article to open; the first new one for summaries
	Title     string
	Body      string
	Count     int
}

type AuthorizationStatus int

const (
	StatusNotDetermined AuthorizationStatus = iota
	StatusDenied
	StatusAuthorized
)

func (s AuthorizationStatus) String() string {
	switch s {
	case StatusDenied:
		return "denied"
	case StatusAuthorized:
		return "authorized"
	default:
		return "not_determined"
	}
}

// Presenter shows notifications to the user.
type Presenter interface {
	AuthorizationStatus(ctx context.Context) (AuthorizationStatus, error)
	RequestAuthorization(ctx context.Context) (bool, error)
	Present(ctx context.Context, n Notification) error
}

type Dispatcher struct {
	presenter Presenter
	enabled   func() bool
}

// NewDispatcher creates a dispatcher. enabled may be nil, meaning always on.
func NewDispatcher(presenter Presenter, enabled func() bool) *Dispatcher {
	return &Dispatcher{presenter: presenter, enabled: enabled}
}

// Group builds one notification per feed: a single-article notification for
// one new article, otherwise a summary that points at the first article.
func Group(articles []NewArticle, cycleID string) []Notification {
	var order []string
	byFeed := make(map[string][]NewArticle)
	for _, a := range articles {
		if _, seen := byFeed[a.FeedID]; !seen {
			order = append(order, a.FeedID)
		}
		byFeed[a.FeedID] = append(byFeed[a.FeedID], a)
	}

	notifications := make([]Notification, 0, len(order))
	for _, feedID := range order {
		group := byFeed[feedID]
		first := group[0]

		n := Notification{
			ThreadID:  feedID,
			FeedID:    feedID,
			ArticleID: first.ArticleID,
			Title:     first.FeedTitle,
			Count:     len(group),
		}
		if len(group) == 1 {
			n.ID = first.ArticleID
			n.Body = first.ArticleTitle
		} else {
			n.ID = feedID + "-" + cycleID
			n.Body = fmt.Sprintf("%d new articles", len(group))
		}
		notifications = append(notifications, n)
	}
	return notifications
}

// Dispatch groups the articles of one refresh cycle and hands them to the
// presenter. Presentation failures are logged and do not stop the rest.
func (d *Dispatcher) Dispatch(ctx context.Context, articles []NewArticle) ([]Notification, error) {
	if len(articles) == 0 {
		return nil, nil
	}
	if d.enabled != nil && !d.enabled() {
		slog.Debug("Notifications disabled, skipping", "articles", len(articles))
		return nil, nil
	}

	authorized, err := d.authorize(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check notification authorization: %w", err)
	}
	if !authorized {
		slog.Debug("Notifications not authorized, skipping", "articles", len(articles))
		return nil, nil
	}

	notifications := Group(articles, uuid.NewString())
	presented := make([]Notification, 0, len(notifications))
	for _, n := range notifications {
		if err := d.presenter.Present(ctx, n); err != nil {
			slog.Warn("Failed to present notification", "feed_id", n.FeedID, "error", err)
			continue
		}
		presented = append(presented, n)
	}
	return presented, nil
}

func (d *Dispatcher) authorize(ctx context.Context) (bool, error) {
	status, err := d.presenter.AuthorizationStatus(ctx)
	if err != nil {
		return false, err
	}
	switch status {
	case StatusAuthorized:
		return true, nil
	case StatusDenied:
		return false, nil
	default:
		return d.presenter.RequestAuthorization(ctx)
	}
}

// LogPresenter writes notifications to the structured log. It is always
// authorized.
type LogPresenter struct{}

func (LogPresenter) AuthorizationStatus(context.Context) (AuthorizationStatus, error) {
	return StatusAuthorized, nil
}

func (LogPresenter) RequestAuthorization(context.Context) (bool, error) {
	return true, nil
}

func (LogPresenter) Present(_ context.Context, n Notification) error {
	slog.Info("New articles",
		"id", n.ID,
		"thread", n.ThreadID,
		"title", n.Title,
		"body", n.Body,
		"article_id", n.ArticleID)
	return nil
}
