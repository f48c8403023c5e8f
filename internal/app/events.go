package app

import (
	"todola/backend/internal/gateway"
	"todola/backend/internal/models"
	"todola/backend/internal/view"
)

// Outbound event types.
const (
	EventSession     = "session"
	EventFeed        = "feed"
	EventProgress    = "progress"
	EventFrame       = "frame"
	EventCelebration = "celebration"
	EventNotice      = "notice"
	EventNavigate    = "navigate"
	EventError       = "error"
)

// Inbound command types.
const (
	CmdSignIn  = "signin"
	CmdSignUp  = "signup"
	CmdSignOut = "signout"
	CmdAdd     = "add"
	CmdCreate  = "create"
	CmdUpdate  = "update"
	CmdDelete  = "delete"
	CmdToggle  = "toggle"
	CmdEdit    = "edit"
	CmdAck     = "ack"
)

type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type SessionData struct {
	User  *models.Identity `json:"user"`
	Token string           `json:"token,omitempty"`
}

type NoticeData struct {
	ID uint64 `json:"id"`
	view.Notice
}

type FrameData struct {
	Displayed int `json:"displayed"`
}

type CelebrationData struct {
	Active bool `json:"active"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Command struct {
	Type     string        `json:"type"`
	Email    string        `json:"email,omitempty"`
	Password string        `json:"password,omitempty"`
	TaskID   string        `json:"task_id,omitempty"`
	Task     gateway.Draft `json:"task"`
	NoticeID uint64        `json:"notice_id,omitempty"`
}
