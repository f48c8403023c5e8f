// Package ws serves live app instances and the account registry over
// WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"todola/backend/internal/app"
	"todola/backend/internal/models"
	"todola/backend/internal/registry"
)

// Registry stream messages.
const (
	EventUsers = "users"
	CmdDelete  = "delete"
)

type UsersData struct {
	Users   []models.Account `json:"users"`
	Message string           `json:"message,omitempty"`
}

type UsersCommand struct {
	Type string `json:"type"`
	UID  string `json:"uid"`
}

type Handler struct {
	hub      *Hub
	deps     app.Deps
	opts     app.Options
	registry registry.Store
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewHandler accepts upgrades from allowedOrigins; an empty list or "*"
// accepts any origin.
func NewHandler(hub *Hub, deps app.Deps, opts app.Options, allowedOrigins []string, log *slog.Logger) *Handler {
	h := &Handler{
		hub:      hub,
		deps:     deps,
		opts:     opts,
		registry: deps.Store,
		log:      log.With("handler", "ws"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

func (h *Handler) accept(c *gin.Context) *Client {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("upgrade failed", "error", err)
		return nil
	}
	client := newClient(conn, h.log)
	if !h.hub.register(client) {
		client.Close()
		return nil
	}
	return client
}

// ServeApp runs one app instance for the lifetime of the connection. The
// optional token query parameter resumes an earlier session.
func (h *Handler) ServeApp(c *gin.Context) {
	client := h.accept(c)
	if client == nil {
		return
	}
	defer h.hub.unregister(client)
	go client.writePump()

	instance := app.New(h.deps, h.opts, client)
	defer instance.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	instance.Start(c.Query("token"))
	client.readPump(func(msg []byte) {
		var cmd app.Command
		if err := json.Unmarshal(msg, &cmd); err != nil {
			instance.SendError("bad_request", "malformed command")
			return
		}
		if err := instance.Handle(ctx, cmd); err != nil {
			h.log.Debug("command failed", "type", cmd.Type, "error", err)
		}
	})
}

// ServeUsers streams the account registry and accepts delete commands.
func (h *Handler) ServeUsers(c *gin.Context) {
	client := h.accept(c)
	if client == nil {
		return
	}
	defer h.hub.unregister(client)
	go client.writePump()

	view := registry.NewView(h.registry, func(accounts []models.Account) {
		data := UsersData{Users: accounts}
		if len(accounts) == 0 {
			data.Message = registry.MsgNoUsers
		}
		client.Send(app.Event{Type: EventUsers, Data: data})
	}, h.log)
	defer view.Stop()

	if err := view.Start(c.Request.Context()); err != nil {
		client.Send(app.Event{Type: app.EventError, Data: app.ErrorData{Code: "error", Message: err.Error()}})
		client.Close()
		return
	}

	client.readPump(func(msg []byte) {
		var cmd UsersCommand
		if err := json.Unmarshal(msg, &cmd); err != nil || cmd.Type != CmdDelete || cmd.UID == "" {
			client.Send(app.Event{Type: app.EventError, Data: app.ErrorData{Code: "bad_request", Message: "malformed command"}})
			return
		}
		view.Delete(cmd.UID)
	})
}
