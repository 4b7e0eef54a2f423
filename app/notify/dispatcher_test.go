package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type recordingPresenter struct {
	status    AuthorizationStatus
	grant     bool
	requested bool
	failFor   string
	presented []Notification
}

func (p *recordingPresenter) AuthorizationStatus(context.Context) (AuthorizationStatus, error) {
	return p.status, nil
}

func (p *recordingPresenter) RequestAuthorization(context.Context) (bool, error) {
	p.requested = true
	return p.grant, nil
}

func (p *recordingPresenter) Present(_ context.Context, n Notification) error {
	if n.FeedID == p.failFor {
		return errors.New("presentation failed")
	}
	p.presented = append(p.presented, n)
	return nil
}

func TestGroupSingleArticle(t *testing.T) {
	got := Group([]NewArticle{
		{FeedID: "f1", FeedTitle: "Feed One", ArticleID: "a1", ArticleTitle: "Hello"},
	}, "cycle")

	if len(got) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(got))
	}
	n := got[0]
	if n.ID != "a1" || n.ArticleID != "a1" {
		t.Errorf("Expected single notification keyed by article, got %+v", n)
	}
	if n.Title != "Feed One" || n.Body != "Hello" {
		t.Errorf("Unexpected title/body: %q / %q", n.Title, n.Body)
	}
	if n.ThreadID != "f1" {
		t.Errorf("Expected thread 'f1', got '%s'", n.ThreadID)
	}
}

func TestGroupSummary(t *testing.T) {
	got := Group([]NewArticle{
		{FeedID: "f1", FeedTitle: "Feed One", ArticleID: "a1", ArticleTitle: "One"},
		{FeedID: "f2", FeedTitle: "Feed Two", ArticleID: "b1", ArticleTitle: "Other"},
		{FeedID: "f1", FeedTitle: "Feed One", ArticleID: "a2", ArticleTitle: "Two"},
		{FeedID: "f1", FeedTitle: "Feed One", ArticleID: "a3", ArticleTitle: "Three"},
	}, "cycle")

	if len(got) != 2 {
		t.Fatalf("Expected 2 notifications, got %d", len(got))
	}

	summary := got[0]
	if summary.FeedID != "f1" {
		t.Fatalf("Expected first-seen feed order, got %s first", summary.FeedID)
	}
	if summary.Body != "3 new articles" {
		t.Errorf("Expected '3 new articles', got '%s'", summary.Body)
	}
	if summary.ArticleID != "a1" {
		t.Errorf("Expected summary to reference first article, got '%s'", summary.ArticleID)
	}
	if summary.ID != "f1-cycle" {
		t.Errorf("Expected per-cycle summary id, got '%s'", summary.ID)
	}
	if got[1].Body != "Other" {
		t.Errorf("Expected single notification for second feed, got '%s'", got[1].Body)
	}
}

func TestDispatchRequestsAuthorizationOnce(t *testing.T) {
	p := &recordingPresenter{status: StatusNotDetermined, grant: true}
	d := NewDispatcher(p, nil)

	got, err := d.Dispatch(context.Background(), []NewArticle{{FeedID: "f", FeedTitle: "F", ArticleID: "a", ArticleTitle: "A"}})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !p.requested {
		t.Error("Expected authorization to be requested")
	}
	if len(got) != 1 || len(p.presented) != 1 {
		t.Errorf("Expected one notification presented, got %d", len(p.presented))
	}
}

func TestDispatchDenied(t *testing.T) {
	p := &recordingPresenter{status: StatusDenied}
	d := NewDispatcher(p, nil)

	got, err := d.Dispatch(context.Background(), []NewArticle{{FeedID: "f", ArticleID: "a"}})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(got) != 0 || len(p.presented) != 0 || p.requested {
		t.Error("Expected nothing presented and no prompt when denied")
	}
}

func TestDispatchDisabled(t *testing.T) {
	p := &recordingPresenter{status: StatusAuthorized}
	d := NewDispatcher(p, func() bool { return false })

	got, _ := d.Dispatch(context.Background(), []NewArticle{{FeedID: "f", ArticleID: "a"}})
	if len(got) != 0 {
		t.Errorf("Expected no notifications when disabled, got %d", len(got))
	}
}

func TestDispatchContinuesPastPresentationFailure(t *testing.T) {
	p := &recordingPresenter{status: StatusAuthorized, failFor: "bad"}
	d := NewDispatcher(p, nil)

	got, err := d.Dispatch(context.Background(), []NewArticle{
		{FeedID: "bad", ArticleID: "x"},
		{FeedID: "good", ArticleID: "y"},
	})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(got) != 1 || got[0].FeedID != "good" {
		t.Errorf("Expected only the good feed presented, got %+v", got)
	}
	if !strings.HasPrefix(p.presented[0].ID, "y") {
		t.Errorf("Unexpected id %s", p.presented[0].ID)
	}
}
