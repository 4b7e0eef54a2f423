package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/rss-hoard/app/database"
	"github.com/lysyi3m/rss-hoard/app/feed"
	"github.com/lysyi3m/rss-hoard/app/opml"
	"github.com/lysyi3m/rss-hoard/app/refresh"
)

type suggester interface {
	Suggestion() string
}

// statusFor maps domain errors to HTTP status codes and a short error name.
func statusFor(err error) (int, string) {
	var (
		feedErr    *feed.Error
		refreshErr *refresh.Error
		opmlErr    *opml.Error
	)

	switch {
	case errors.As(err, &refreshErr):
		if refreshErr.Kind == refresh.KindDuplicateFeed {
			return http.StatusConflict, string(refreshErr.Kind)
		}
		return http.StatusBadRequest, string(refreshErr.Kind)
	case errors.As(err, &feedErr):
		if feedErr.Kind == feed.KindNetwork {
			return http.StatusBadGateway, string(feedErr.Kind)
		}
		return http.StatusUnprocessableEntity, string(feedErr.Kind)
	case errors.As(err, &opmlErr):
		if opmlErr.Kind == opml.KindExportFailed {
			return http.StatusInternalServerError, string(opmlErr.Kind)
		}
		return http.StatusUnprocessableEntity, string(opmlErr.Kind)
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(c *gin.Context, operation string, err error) {
	status, name := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "operation", operation, "error", err)
	} else {
		slog.Debug("Request rejected", "operation", operation, "status", status, "error", err)
	}

	body := gin.H{
		"error":   name,
		"message": err.Error(),
	}
	var s suggester
	if errors.As(err, &s) {
		if suggestion := s.Suggestion(); suggestion != "" {
			body["suggestion"] = suggestion
		}
	}
	c.JSON(status, body)
}

func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":   "not_found",
		"message": what + " not found",
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_request",
		"message": err.Error(),
	})
}
