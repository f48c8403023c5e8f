// Package session tracks who is signed in to an app instance and drives
// the sign-in and sign-up forms.
package session

import (
	"context"
	"log/slog"
	"sync"

	"todola/backend/internal/models"
	"todola/backend/internal/view"
)

const (
	MsgLogoutOK     = "Logged out successfully!"
	MsgLogoutFailed = "Logout failed!"
)

type Provider interface {
	SignIn(ctx context.Context, email, password string) (*models.Identity, error)
	SignUp(ctx context.Context, email, password string) (*models.Identity, error)
	SignOut(ctx context.Context) error
	OnAuthStateChange(fn func(*models.Identity)) (unsubscribe func())
}

// Tracker republishes the provider's sign-in state to the components that
// depend on it. Dependents receive every change in order and must drop
// any per-user state when they receive nil.
type Tracker struct {
	provider Provider
	notifier view.Notifier
	log      *slog.Logger

	mu          sync.RWMutex
	current     *models.Identity
	dependents  []func(*models.Identity)
	unsubscribe func()
}

func NewTracker(provider Provider, notifier view.Notifier, log *slog.Logger) *Tracker {
	return &Tracker{provider: provider, notifier: notifier, log: log.With("component", "session")}
}

// OnChange registers a dependent. Register dependents before Start.
func (t *Tracker) OnChange(fn func(*models.Identity)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dependents = append(t.dependents, fn)
}

func (t *Tracker) Start() {
	unsubscribe := t.provider.OnAuthStateChange(t.changed)

	t.mu.Lock()
	t.unsubscribe = unsubscribe
	t.mu.Unlock()
}

func (t *Tracker) changed(identity *models.Identity) {
	t.mu.Lock()
	t.current = identity
	dependents := append([]func(*models.Identity){}, t.dependents...)
	t.mu.Unlock()

	if identity != nil {
		t.log.Debug("signed in", "uid", identity.UID)
	} else {
		t.log.Debug("signed out")
	}

	for _, fn := range dependents {
		fn(identity)
	}
}

func (t *Tracker) Current() *models.Identity {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.current == nil {
		return nil
	}
	identity := *t.current
	return &identity
}

func (t *Tracker) SignOut(ctx context.Context) error {
	if err := t.provider.SignOut(ctx); err != nil {
		t.log.Warn("sign out failed", "error", err)
		t.notifier.Notify(view.Notice{Kind: view.Failure, Message: MsgLogoutFailed})
		return err
	}
	t.notifier.Notify(view.Notice{Kind: view.Success, Message: MsgLogoutOK})
	return nil
}

func (t *Tracker) Stop() {
	t.mu.Lock()
	unsubscribe := t.unsubscribe
	t.unsubscribe = nil
	t.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
