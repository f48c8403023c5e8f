package auth

import "errors"

const (
	CodeEmailInUse     = "auth/email-already-in-use"
	CodeInvalidLogin   = "auth/invalid-credential"
	CodeWeakPassword   = "auth/weak-password"
	CodeInvalidEmail   = "auth/invalid-email"
	CodeNoCurrentUser  = "auth/no-current-user"
	CodeInvalidToken   = "auth/invalid-token"
	CodeSessionRevoked = "auth/session-revoked"
)

// AuthError is a provider failure whose Message is meant to be shown to
// the user as is.
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *AuthError) Error() string { return e.Message }

var (
	ErrEmailInUse     = &AuthError{Code: CodeEmailInUse, Message: "email already in use"}
	ErrInvalidLogin   = &AuthError{Code: CodeInvalidLogin, Message: "invalid email or password"}
	ErrWeakPassword   = &AuthError{Code: CodeWeakPassword, Message: "password must be at least 6 characters"}
	ErrInvalidEmail   = &AuthError{Code: CodeInvalidEmail, Message: "invalid email address"}
	ErrNoCurrentUser  = &AuthError{Code: CodeNoCurrentUser, Message: "no user signed in"}
	ErrInvalidToken   = &AuthError{Code: CodeInvalidToken, Message: "invalid or expired token"}
	ErrSessionRevoked = &AuthError{Code: CodeSessionRevoked, Message: "session has been signed out"}
)

// Is matches on Code so wrapped copies compare equal to the sentinels.
func (e *AuthError) Is(target error) bool {
	var other *AuthError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}
