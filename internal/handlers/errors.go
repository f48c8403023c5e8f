package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"todola/backend/internal/auth"
	"todola/backend/internal/feed"
	"todola/backend/internal/gateway"
	"todola/backend/internal/store"
)

// respondError maps a failed operation onto a status and the message the
// user would have been shown. failed is the message for a store failure.
func respondError(c *gin.Context, err error, failed string) {
	var authErr *auth.AuthError
	switch {
	case errors.Is(err, gateway.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "message": gateway.MsgLoginRequired})
	case errors.Is(err, gateway.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": gateway.MsgRequiredFields})
	case errors.Is(err, gateway.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": gateway.MsgForbidden})
	case errors.Is(err, gateway.ErrRemoteWrite):
		c.JSON(http.StatusBadGateway, gin.H{"error": "remote_write_failed", "message": failed})
	case errors.Is(err, feed.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Task not found"})
	case errors.Is(err, store.ErrCircuitOpen):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store_unavailable", "message": err.Error()})
	case errors.As(err, &authErr):
		c.JSON(http.StatusUnauthorized, gin.H{"error": authErr.Code, "message": authErr.Message})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": failed})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_request",
		"message": "Invalid request format",
		"details": err.Error(),
	})
}
