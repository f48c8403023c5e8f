package gateway

import "errors"

var (
	ErrUnauthenticated = errors.New("not signed in")
	ErrValidation      = errors.New("required fields missing")
	ErrUnauthorized    = errors.New("not the owner of this task")
	ErrRemoteWrite     = errors.New("remote write failed")
)

const (
	MsgLoginRequired  = "You must be logged in to add a task!"
	MsgLoginFirst     = "Please login first to create a task !"
	MsgRequiredFields = "Please fill in all required fields!"
	MsgCreated        = "Task created successfully!"
	MsgCreateFailed   = "Failed to create task."
	MsgEditForbidden  = "Unauthorized: You can only edit your own tasks!"
	MsgUpdated        = "Task updated successfully!"
	MsgUpdateFailed   = "Failed to update task."
	MsgForbidden      = "Unauthorized action!"
	MsgDeleted        = "Task deleted!"
)

// Outcome names an error for metrics labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrRemoteWrite):
		return "remote_write"
	default:
		return "error"
	}
}
