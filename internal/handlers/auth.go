package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"todola/backend/internal/auth"
	"todola/backend/internal/middleware"
	"todola/backend/internal/models"
	"todola/backend/internal/session"
)

type AuthHandler struct {
	auth     *auth.Service
	accounts session.AccountWriter
	log      *slog.Logger
}

type CredentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Message     string           `json:"message"`
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	ExpiresIn   int64            `json:"expires_in"`
	User        *models.Identity `json:"user"`
}

func NewAuthHandler(svc *auth.Service, accounts session.AccountWriter, log *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, accounts: accounts, log: log.With("handler", "auth")}
}

func tokenResponse(message string, s *auth.Session) TokenResponse {
	identity := s.Identity
	return TokenResponse{
		Message:     message,
		AccessToken: s.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(s.ExpiresAt).Seconds()),
		User:        &identity,
	}
}

// SignUp creates the credential and the account record under users/.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	s, err := h.auth.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var authErr *auth.AuthError
		if errors.As(err, &authErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": authErr.Code, "message": authErr.Message})
			return
		}
		h.log.Error("signup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup_failed", "message": err.Error()})
		return
	}

	account := models.Account{UID: s.Identity.UID, Email: s.Identity.Email}
	if err := h.accounts.Write(c.Request.Context(), session.AccountPath(account.UID), account); err != nil {
		h.log.Error("failed to record account", "uid", account.UID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "remote_write_failed", "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, tokenResponse(session.MsgSignupOK, s))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	s, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var authErr *auth.AuthError
		if errors.As(err, &authErr) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": authErr.Code, "message": authErr.Message})
			return
		}
		h.log.Error("login failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, tokenResponse(session.MsgLoginOK, s))
}

// Logout signs out the session the bearer token belongs to.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.CodeNoCurrentUser, "message": session.MsgLogoutFailed})
		return
	}

	if err := h.auth.SignOut(c.Request.Context(), claims.SessionID); err != nil {
		h.log.Warn("logout failed", "uid", claims.UID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout_failed", "message": session.MsgLogoutFailed})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": session.MsgLogoutOK})
}
