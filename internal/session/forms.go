package session

import (
	"context"
	"errors"
	"log/slog"

	"todola/backend/internal/auth"
	"todola/backend/internal/models"
	"todola/backend/internal/registry"
	"todola/backend/internal/view"
)

const (
	MsgSignupOK = "Signup successful! Redirecting to login..."
	MsgLoginOK  = "Login successful!"
)

type AccountWriter interface {
	Write(ctx context.Context, path string, value interface{}) error
}

func AccountPath(uid string) string { return registry.AccountPath(uid) }

// Forms backs the sign-up and sign-in views. Failures are shown with the
// provider's message and leave the user on the form.
type Forms struct {
	provider Provider
	accounts AccountWriter
	notifier view.Notifier
	redirect *view.Redirector
	log      *slog.Logger
}

func NewForms(provider Provider, accounts AccountWriter, notifier view.Notifier, redirect *view.Redirector, log *slog.Logger) *Forms {
	return &Forms{
		provider: provider,
		accounts: accounts,
		notifier: notifier,
		redirect: redirect,
		log:      log.With("component", "forms"),
	}
}

func (f *Forms) SignUp(ctx context.Context, email, password string) (*models.Identity, error) {
	identity, err := f.provider.SignUp(ctx, email, password)
	if err != nil {
		f.fail(err)
		return nil, err
	}

	account := models.Account{UID: identity.UID, Email: identity.Email}
	if err := f.accounts.Write(ctx, AccountPath(identity.UID), account); err != nil {
		f.log.Error("failed to record account", "uid", identity.UID, "error", err)
		f.fail(err)
		return nil, err
	}

	f.notifier.Notify(view.Notice{Kind: view.Success, Message: MsgSignupOK})
	f.redirect.After(view.Route{Path: view.RouteLogin})
	return identity, nil
}

func (f *Forms) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	identity, err := f.provider.SignIn(ctx, email, password)
	if err != nil {
		f.fail(err)
		return nil, err
	}

	f.notifier.Notify(view.Notice{Kind: view.Success, Message: MsgLoginOK})
	f.redirect.After(view.Route{Path: view.RouteHome})
	return identity, nil
}

func (f *Forms) fail(err error) {
	message := err.Error()
	var authErr *auth.AuthError
	if errors.As(err, &authErr) {
		message = authErr.Message
	}
	f.notifier.Notify(view.Notice{Kind: view.Failure, Message: message})
}
