package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	r.GET("/health", handler.HealthCheck)
	r.GET("/stats", handler.GetStats)

	api := r.Group("/api")
	if apiAccessKey != "" {
		api.Use(authMiddleware(apiAccessKey))
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled (API_ACCESS_KEY not set)")
	}
	{
		api.GET("/feeds", handler.ListFeeds)
		api.POST("/feeds", handler.AddFeed)
		api.POST("/feeds/validate", handler.ValidateFeed)
		api.PATCH("/feeds/:id", handler.UpdateFeed)
		api.DELETE("/feeds/:id", handler.DeleteFeed)
		api.POST("/feeds/:id/refresh", handler.RefreshFeed)
		api.POST("/feeds/:id/read", handler.MarkFeedRead)
		api.GET("/feeds/:id/articles", handler.ListArticles)

		api.POST("/refresh", handler.RefreshAll)

		api.GET("/articles/starred", handler.ListStarred)
		api.GET("/starred.rss", handler.StarredRSS)
		api.GET("/articles/:id", handler.GetArticle)
		api.POST("/articles/:id/read", handler.SetRead)
		api.POST("/articles/:id/star", handler.SetStarred)

		api.GET("/folders", handler.ListFolders)
		api.POST("/folders", handler.CreateFolder)
		api.POST("/folders/:id/expanded", handler.SetFolderExpanded)
		api.DELETE("/folders/:id", handler.DeleteFolder)

		api.GET("/opml", handler.ExportOPML)
		api.POST("/opml", handler.ImportOPML)

		api.GET("/preferences", handler.GetPreferences)
		api.PUT("/preferences", handler.UpdatePreferences)
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":     "RSS Hoard",
			"version":     handler.version,
			"description": "Feed reader backend with offline article storage",
			"endpoints": map[string]string{
				"health":  "/health",
				"stats":   "/stats",
				"feeds":   "/api/feeds",
				"opml":    "/api/opml",
				"starred": "/api/starred.rss",
			},
			"api_status": map[string]any{
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// authMiddleware accepts the key in X-API-Key or as a bearer token.
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")
		if providedKey == "" {
			providedKey, _ = strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		}

		if providedKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			return
		}

		if providedKey != apiAccessKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			return
		}

		c.Next()
	}
}
