package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/rss-hoard/app/config"
	"github.com/lysyi3m/rss-hoard/app/database"
	"github.com/lysyi3m/rss-hoard/app/feed"
	"github.com/lysyi3m/rss-hoard/app/refresh"
	"github.com/lysyi3m/rss-hoard/app/tasks"
)

const maxOPMLSize = 5 << 20

func NewHandler(service FeedService, feedRepo FeedRepository, articles ArticleRepository,
	folders FolderRepository, prefs PreferencesStore, scheduler tasks.TaskSchedulerInterface, version string) *Handler {
	return &Handler{
		service:   service,
		feedRepo:  feedRepo,
		articles:  articles,
		folders:   folders,
		prefs:     prefs,
		scheduler: scheduler,
		generator: feed.NewGenerator(),
		version:   version,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	health := gin.H{
		"status":    "ok",
		"version":   h.version,
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(c.Request.Context()); err == nil {
		health["feeds"] = feedCount
	} else {
		health["status"] = "degraded"
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	feedCount, err := h.feedRepo.GetFeedCount(ctx)
	if err != nil {
		writeError(c, "get_feed_count", err)
		return
	}

	total, unread, starred, err := h.articles.GetArticleStats(ctx)
	if err != nil {
		writeError(c, "get_article_stats", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": feedCount,
		"articles": gin.H{
			"total":   total,
			"unread":  unread,
			"starred": starred,
		},
		"scheduler": h.scheduler.GetStats(),
	})
}

func (h *Handler) ListFeeds(c *gin.Context) {
	ctx := c.Request.Context()

	feeds, err := h.feedRepo.GetFeeds(ctx)
	if err != nil {
		writeError(c, "list_feeds", err)
		return
	}

	counts, err := h.articles.GetUnreadCounts(ctx)
	if err != nil {
		writeError(c, "unread_counts", err)
		return
	}

	response := make([]feedResponse, 0, len(feeds))
	for _, f := range feeds {
		response = append(response, newFeedResponse(f, counts[f.ID]))
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": response,
		"total": len(response),
	})
}

func (h *Handler) AddFeed(c *gin.Context) {
	var req addFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	f, err := h.service.AddFeed(c.Request.Context(), req.URL, refresh.AddOptions{
		FolderID:         emptyToNil(req.FolderID),
		FetchFullContent: req.FetchFullContent,
	})
	if err != nil {
		writeError(c, "add_feed", err)
		return
	}

	if f.FetchFullContent {
		h.enqueue(tasks.NewBackfillContentTask(f.ID, h.service, h.feedRepo))
	}

	c.JSON(http.StatusCreated, newFeedResponse(*f, 0))
}

func (h *Handler) ValidateFeed(c *gin.Context) {
	var req validateFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	parsed, err := h.service.ValidateFeed(c.Request.Context(), req.URL)
	if err != nil {
		writeError(c, "validate_feed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"title":         parsed.Title,
		"description":   parsed.Description,
		"home_page_url": parsed.HomePageURL,
		"image_url":     parsed.ImageURL,
		"format":        parsed.Format,
		"article_count": len(parsed.Articles),
	})
}

func (h *Handler) UpdateFeed(c *gin.Context) {
	ctx := c.Request.Context()
	f, ok := h.loadFeed(c)
	if !ok {
		return
	}

	var req updateFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	enabledFullContent := false
	if req.Title != nil && strings.TrimSpace(*req.Title) != "" {
		f.Title = strings.TrimSpace(*req.Title)
	}
	if req.FolderID != nil {
		f.FolderID = emptyToNil(req.FolderID)
	}
	if req.SortOrder != nil {
		f.SortOrder = *req.SortOrder
	}
	if req.FetchFullContent != nil {
		enabledFullContent = *req.FetchFullContent && !f.FetchFullContent
		f.FetchFullContent = *req.FetchFullContent
	}

	if err := h.feedRepo.UpdateFeedSettings(ctx, f); err != nil {
		writeError(c, "update_feed", err)
		return
	}

	if enabledFullContent {
		h.enqueue(tasks.NewBackfillContentTask(f.ID, h.service, h.feedRepo))
	}

	c.JSON(http.StatusOK, newFeedResponse(*f, 0))
}

func (h *Handler) DeleteFeed(c *gin.Context) {
	if err := h.service.DeleteFeed(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, "delete_feed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) RefreshFeed(c *gin.Context) {
	f, ok := h.loadFeed(c)
	if !ok {
		return
	}

	if !h.enqueue(tasks.NewRefreshFeedTask(f.ID, h.service, h.feedRepo)) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "queue_unavailable",
			"message": "Failed to schedule refresh",
		})
		return
	}

	slog.Info("Feed refresh requested", "feed", f.URL)
	c.JSON(http.StatusAccepted, gin.H{
		"status":  "queued",
		"feed_id": f.ID,
	})
}

func (h *Handler) RefreshAll(c *gin.Context) {
	task := tasks.NewRefreshAllTask(h.service, tasks.RefreshAllOptions{Source: tasks.SourceUser})
	if !h.enqueue(task) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "queue_unavailable",
			"message": "Failed to schedule refresh",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *Handler) MarkFeedRead(c *gin.Context) {
	f, ok := h.loadFeed(c)
	if !ok {
		return
	}

	n, err := h.articles.MarkFeedRead(c.Request.Context(), f.ID)
	if err != nil {
		writeError(c, "mark_feed_read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (h *Handler) ListArticles(c *gin.Context) {
	f, ok := h.loadFeed(c)
	if !ok {
		return
	}

	onlyUnread, _ := strconv.ParseBool(c.Query("unread"))
	articles, err := h.articles.GetArticles(c.Request.Context(), f.ID, onlyUnread)
	if err != nil {
		writeError(c, "list_articles", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feed_id":  f.ID,
		"articles": articleList(articles),
		"total":    len(articles),
	})
}

func (h *Handler) ListStarred(c *gin.Context) {
	articles, err := h.articles.GetStarredArticles(c.Request.Context())
	if err != nil {
		writeError(c, "list_starred", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": articleList(articles),
		"total":    len(articles),
	})
}

// StarredRSS publishes starred articles as an RSS feed so they can be read
// in other clients.
func (h *Handler) StarredRSS(c *gin.Context) {
	articles, err := h.articles.GetStarredArticles(c.Request.Context())
	if err != nil {
		writeError(c, "starred_rss", err)
		return
	}

	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	base := scheme + "://" + c.Request.Host

	rss := h.generator.Run(feed.Channel{
		Title:       "Starred articles",
		Link:        base + "/",
		Description: "Articles starred in RSS Hoard",
		SelfURL:     base + c.Request.URL.Path,
		Generator:   "RSS-Hoard/" + h.version,
	}, articles)

	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(rss))
}

func (h *Handler) GetArticle(c *gin.Context) {
	a, err := h.articles.GetArticle(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, "get_article", err)
		return
	}
	if a == nil {
		notFound(c, "article")
		return
	}
	c.JSON(http.StatusOK, newArticleResponse(*a, true))
}

func (h *Handler) SetRead(c *gin.Context) {
	h.setFlag(c, "set_read", h.articles.SetRead)
}

func (h *Handler) SetStarred(c *gin.Context) {
	h.setFlag(c, "set_starred", h.articles.SetStarred)
}

func (h *Handler) setFlag(c *gin.Context, operation string, set func(ctx context.Context, id string, value bool) error) {
	var req flagRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	value := true
	if req.Value != nil {
		value = *req.Value
	}

	id := c.Param("id")
	if err := set(c.Request.Context(), id, value); err != nil {
		writeError(c, operation, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "value": value})
}

func (h *Handler) ListFolders(c *gin.Context) {
	folders, err := h.folders.GetFolders(c.Request.Context())
	if err != nil {
		writeError(c, "list_folders", err)
		return
	}

	response := make([]gin.H, 0, len(folders))
	for _, f := range folders {
		response = append(response, gin.H{
			"id":          f.ID,
			"name":        f.Name,
			"sort_order":  f.SortOrder,
			"is_expanded": f.IsExpanded,
		})
	}
	c.JSON(http.StatusOK, gin.H{"folders": response})
}

func (h *Handler) CreateFolder(c *gin.Context) {
	var req folderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	folder, err := h.folders.CreateFolder(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, "create_folder", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":          folder.ID,
		"name":        folder.Name,
		"sort_order":  folder.SortOrder,
		"is_expanded": folder.IsExpanded,
	})
}

func (h *Handler) SetFolderExpanded(c *gin.Context) {
	h.setFlag(c, "set_folder_expanded", h.folders.SetExpanded)
}

func (h *Handler) DeleteFolder(c *gin.Context) {
	if err := h.folders.DeleteFolder(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, "delete_folder", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ExportOPML(c *gin.Context) {
	prefs := h.prefs.Get().Export
	grouped := prefs.Grouped
	if v, err := strconv.ParseBool(c.Query("grouped")); err == nil {
		grouped = v
	}

	var buf bytes.Buffer
	if err := h.service.ExportOPML(c.Request.Context(), &buf, prefs.Title, grouped); err != nil {
		writeError(c, "export_opml", err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="subscriptions.opml"`)
	c.Data(http.StatusOK, "text/x-opml; charset=utf-8", buf.Bytes())
}

// ImportOPML accepts either a multipart upload in the "file" field or the
// raw document as the request body.
func (h *Handler) ImportOPML(c *gin.Context) {
	var body io.Reader
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			badRequest(c, err)
			return
		}
		file, err := fh.Open()
		if err != nil {
			badRequest(c, err)
			return
		}
		defer file.Close()
		body = file
	} else {
		body = c.Request.Body
	}

	result, err := h.service.ImportOPML(c.Request.Context(), io.LimitReader(body, maxOPMLSize))
	if err != nil {
		writeError(c, "import_opml", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetPreferences(c *gin.Context) {
	c.JSON(http.StatusOK, h.prefs.Get())
}

func (h *Handler) UpdatePreferences(c *gin.Context) {
	var prefs config.Preferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.prefs.Update(prefs); err != nil {
		badRequest(c, err)
		return
	}

	c.JSON(http.StatusOK, h.prefs.Get())
}

func (h *Handler) loadFeed(c *gin.Context) (*database.Feed, bool) {
	f, err := h.feedRepo.GetFeed(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, "get_feed", err)
		return nil, false
	}
	if f == nil {
		notFound(c, "feed")
		return nil, false
	}
	return f, true
}

// enqueue reports whether the task is queued, counting an equivalent task
// that is already waiting as success.
func (h *Handler) enqueue(task tasks.TaskInterface) bool {
	err := h.scheduler.EnqueueTask(task)
	if err == nil || errors.Is(err, tasks.ErrAlreadyQueued) {
		return true
	}
	slog.Warn("Failed to enqueue task", "type", string(task.GetType()), "feed_id", task.GetFeedID(), "error", err)
	return false
}

func articleList(articles []database.Article) []articleResponse {
	list := make([]articleResponse, 0, len(articles))
	for _, a := range articles {
		list = append(list, newArticleResponse(a, false))
	}
	return list
}

func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
