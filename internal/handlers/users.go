package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"todola/backend/internal/registry"
)

// UserHandler is the administrative account list. Like the registry view
// it serves, it performs no authorization.
type UserHandler struct {
	store registry.Store
	view  *registry.View
	log   *slog.Logger
}

func NewUserHandler(s registry.Store, log *slog.Logger) *UserHandler {
	log = log.With("handler", "users")
	return &UserHandler{
		store: s,
		view:  registry.NewView(s, nil, log),
		log:   log,
	}
}

// Close waits for accepted deletes.
func (h *UserHandler) Close() {
	h.view.Stop()
}

func (h *UserHandler) GetUsers(c *gin.Context) {
	accounts, err := registry.List(c.Request.Context(), h.store)
	if err != nil {
		h.log.Error("failed to list accounts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed", "message": "Failed to get users"})
		return
	}

	response := gin.H{"users": accounts}
	if len(accounts) == 0 {
		response["message"] = registry.MsgNoUsers
	}
	c.JSON(http.StatusOK, response)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	uid := c.Param("uid")
	if uid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "uid is required"})
		return
	}

	h.view.Delete(uid)
	c.JSON(http.StatusAccepted, gin.H{"message": "User delete accepted"})
}
