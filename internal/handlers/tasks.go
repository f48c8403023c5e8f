package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"todola/backend/internal/clock"
	"todola/backend/internal/feed"
	"todola/backend/internal/gateway"
	"todola/backend/internal/middleware"
	"todola/backend/internal/progress"
	"todola/backend/internal/store"
	"todola/backend/internal/view"
)

const MsgToggleAccepted = "Task update accepted"

// TaskHandler exposes the mutation gateway to stateless clients. Notices
// the gateway raises are logged and the response carries the message.
type TaskHandler struct {
	store   store.Store
	gateway *gateway.Gateway
	log     *slog.Logger
}

// requestView stands in for a client view on the REST surface, where
// nothing is shown and nobody navigates.
type requestView struct {
	log *slog.Logger
}

func (v requestView) Notify(n view.Notice) <-chan struct{} {
	v.log.Debug("notice", "kind", n.Kind, "message", n.Message)
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (v requestView) Navigate(to view.Route) {}

func NewTaskHandler(s store.Store, log *slog.Logger) *TaskHandler {
	log = log.With("handler", "tasks")
	rv := requestView{log: log}
	return &TaskHandler{
		store:   s,
		gateway: gateway.New(s, rv, view.NewRedirector(clock.Real{}, rv, 0), log),
		log:     log,
	}
}

// Close waits for accepted deletes and toggles to reach the store.
func (h *TaskHandler) Close() {
	h.gateway.Close()
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	identity := middleware.IdentityFrom(c)

	tasks, err := feed.Snapshot(c.Request.Context(), h.store, identity.UID)
	if err != nil {
		respondError(c, err, "Failed to load tasks.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *TaskHandler) GetProgress(c *gin.Context) {
	identity := middleware.IdentityFrom(c)

	tasks, err := feed.Snapshot(c.Request.Context(), h.store, identity.UID)
	if err != nil {
		respondError(c, err, "Failed to load tasks.")
		return
	}
	c.JSON(http.StatusOK, progress.NewReport(tasks))
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var draft gateway.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, err)
		return
	}

	task, err := h.gateway.Create(c.Request.Context(), middleware.IdentityFrom(c), draft)
	if err != nil {
		respondError(c, err, gateway.MsgCreateFailed)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": gateway.MsgCreated, "task": task})
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	var draft gateway.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, err)
		return
	}

	existing, err := feed.Lookup(c.Request.Context(), h.store, c.Param("id"))
	if err != nil {
		respondError(c, err, gateway.MsgUpdateFailed)
		return
	}

	task, err := h.gateway.Update(c.Request.Context(), middleware.IdentityFrom(c), existing, draft)
	if err != nil {
		if errors.Is(err, gateway.ErrUnauthorized) {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": gateway.MsgEditForbidden})
			return
		}
		respondError(c, err, gateway.MsgUpdateFailed)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": gateway.MsgUpdated, "task": task})
}

// DeleteTask accepts the delete and returns before the store confirms it.
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	task, err := feed.Lookup(c.Request.Context(), h.store, c.Param("id"))
	if err != nil {
		respondError(c, err, "")
		return
	}

	if err := h.gateway.Delete(middleware.IdentityFrom(c), task); err != nil {
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": gateway.MsgDeleted})
}

func (h *TaskHandler) ToggleDone(c *gin.Context) {
	task, err := feed.Lookup(c.Request.Context(), h.store, c.Param("id"))
	if err != nil {
		respondError(c, err, "")
		return
	}

	if err := h.gateway.ToggleDone(middleware.IdentityFrom(c), task); err != nil {
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": MsgToggleAccepted, "done": !task.Done})
}
