// Package gateway performs task mutations on behalf of the signed-in
// user. Ownership checks here are advisory: the store accepts any write.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"todola/backend/internal/feed"
	"todola/backend/internal/models"
	"todola/backend/internal/monitoring"
	"todola/backend/internal/store"
	"todola/backend/internal/view"
)

type Writer interface {
	Write(ctx context.Context, path string, value interface{}) error
	Update(ctx context.Context, path string, fields map[string]interface{}) error
	Append(ctx context.Context, path string) (string, error)
	Delete(ctx context.Context, path string) error
}

// Draft is the content of the task form.
type Draft struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Deadline    string          `json:"deadline"`
	Category    models.Category `json:"category" validate:"required,category"`
}

func (d Draft) normalized() Draft {
	d.Name = strings.TrimSpace(d.Name)
	d.Category = models.Category(strings.TrimSpace(string(d.Category)))
	return d
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.Category(fl.Field().String()).Valid()
	})
	return v
}

type Gateway struct {
	store    Writer
	notifier view.Notifier
	redirect *view.Redirector
	validate *validator.Validate
	log      *slog.Logger

	// background carries fire-and-forget writes; it is cancelled by
	// Close only after they have drained.
	background context.Context
	cancel     context.CancelFunc
	inflight   sync.WaitGroup
}

func New(s Writer, notifier view.Notifier, redirect *view.Redirector, log *slog.Logger) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		store:      s,
		notifier:   notifier,
		redirect:   redirect,
		validate:   newValidator(),
		log:        log.With("component", "gateway"),
		background: ctx,
		cancel:     cancel,
	}
}

func (g *Gateway) notify(kind view.NoticeKind, message string) {
	g.notifier.Notify(view.Notice{Kind: kind, Message: message})
}

func (g *Gateway) block(message string) <-chan struct{} {
	return g.notifier.Notify(view.Notice{Kind: view.Failure, Message: message, Blocking: true})
}

// requireIdentity shows the sign-in prompt and sends the user to the
// login view once they dismiss it.
func (g *Gateway) requireIdentity(identity *models.Identity) error {
	if identity.Present() {
		return nil
	}
	ack := g.block(MsgLoginRequired)
	go func() {
		select {
		case <-ack:
			g.redirect.Navigate(view.Route{Path: view.RouteLogin})
		case <-g.background.Done():
		}
	}()
	return ErrUnauthenticated
}

func (g *Gateway) check(draft Draft) (Draft, error) {
	draft = draft.normalized()
	if err := g.validate.Struct(draft); err != nil {
		g.block(MsgRequiredFields)
		return draft, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return draft, nil
}

func (g *Gateway) Create(ctx context.Context, identity *models.Identity, draft Draft) (models.Task, error) {
	task, err := g.create(ctx, identity, draft)
	monitoring.RecordMutation("create", Outcome(err))
	return task, err
}

func (g *Gateway) create(ctx context.Context, identity *models.Identity, draft Draft) (models.Task, error) {
	if err := g.requireIdentity(identity); err != nil {
		return models.Task{}, err
	}
	draft, err := g.check(draft)
	if err != nil {
		return models.Task{}, err
	}

	path, err := g.store.Append(ctx, feed.TasksPath)
	if err != nil {
		g.notify(view.Failure, MsgCreateFailed)
		return models.Task{}, fmt.Errorf("%w: %v", ErrRemoteWrite, err)
	}
	p, err := store.ParsePath(path)
	if err != nil {
		g.notify(view.Failure, MsgCreateFailed)
		return models.Task{}, fmt.Errorf("%w: %v", ErrRemoteWrite, err)
	}

	task := models.Task{
		ID:          p.Key,
		Name:        draft.Name,
		Description: draft.Description,
		Deadline:    draft.Deadline,
		Category:    draft.Category,
		CreatedBy:   identity.UID,
		Done:        false,
	}
	if err := g.store.Write(ctx, path, task.Record()); err != nil {
		g.log.Error("failed to create task", "uid", identity.UID, "error", err)
		g.notify(view.Failure, MsgCreateFailed)
		return models.Task{}, fmt.Errorf("%w: %v", ErrRemoteWrite, err)
	}

	g.log.Info("task created", "id", task.ID, "uid", identity.UID)
	g.notify(view.Success, MsgCreated)
	g.redirect.After(view.Route{Path: view.RouteHome})
	return task, nil
}

// Update replaces the editable fields of existing, keeping its owner and
// completion state.
func (g *Gateway) Update(ctx context.Context, identity *models.Identity, existing models.Task, draft Draft) (models.Task, error) {
	task, err := g.update(ctx, identity, existing, draft)
	monitoring.RecordMutation("update", Outcome(err))
	return task, err
}

func (g *Gateway) update(ctx context.Context, identity *models.Identity, existing models.Task, draft Draft) (models.Task, error) {
	if err := g.requireIdentity(identity); err != nil {
		return models.Task{}, err
	}
	draft, err := g.check(draft)
	if err != nil {
		return models.Task{}, err
	}
	if !existing.OwnedBy(identity.UID) {
		g.notify(view.Failure, MsgEditForbidden)
		return models.Task{}, ErrUnauthorized
	}

	task := existing
	task.Name = draft.Name
	task.Description = draft.Description
	task.Deadline = draft.Deadline
	task.Category = draft.Category

	if err := g.store.Write(ctx, feed.TaskPath(existing.ID), task.Record()); err != nil {
		g.log.Error("failed to update task", "id", existing.ID, "error", err)
		g.notify(view.Failure, MsgUpdateFailed)
		return models.Task{}, fmt.Errorf("%w: %v", ErrRemoteWrite, err)
	}

	g.notify(view.Success, MsgUpdated)
	g.redirect.After(view.Route{Path: view.RouteHome})
	return task, nil
}

// Delete removes task without waiting for the store. The feed reflects
// the result on its next notification.
func (g *Gateway) Delete(identity *models.Identity, task models.Task) error {
	if !task.OwnedBy(models.UIDOf(identity)) {
		g.notify(view.Failure, MsgForbidden)
		monitoring.RecordMutation("delete", Outcome(ErrUnauthorized))
		return ErrUnauthorized
	}

	g.detach("delete", func(ctx context.Context) error {
		return g.store.Delete(ctx, feed.TaskPath(task.ID))
	})
	g.notify(view.Success, MsgDeleted)
	return nil
}

// ToggleDone flips the completion flag without waiting for the store.
func (g *Gateway) ToggleDone(identity *models.Identity, task models.Task) error {
	if !task.OwnedBy(models.UIDOf(identity)) {
		g.notify(view.Failure, MsgForbidden)
		monitoring.RecordMutation("toggle", Outcome(ErrUnauthorized))
		return ErrUnauthorized
	}

	done := !task.Done
	g.detach("toggle", func(ctx context.Context) error {
		return g.store.Update(ctx, feed.TaskPath(task.ID), map[string]interface{}{"done": done})
	})
	return nil
}

// OpenEditor sends the owner to the task form pre-filled with task.
func (g *Gateway) OpenEditor(identity *models.Identity, task models.Task) error {
	if !task.OwnedBy(models.UIDOf(identity)) {
		g.notify(view.Failure, MsgForbidden)
		return ErrUnauthorized
	}
	g.redirect.Navigate(view.Route{Path: view.RouteAdd, TaskID: task.ID})
	return nil
}

// OpenComposer sends a signed-in user to the empty task form. Anyone else
// is told to sign in and sent to the login view after the usual delay.
func (g *Gateway) OpenComposer(identity *models.Identity) error {
	if !identity.Present() {
		g.notify(view.Info, MsgLoginFirst)
		g.redirect.After(view.Route{Path: view.RouteLogin})
		return ErrUnauthenticated
	}
	g.redirect.Navigate(view.Route{Path: view.RouteAdd})
	return nil
}

func (g *Gateway) detach(op string, write func(ctx context.Context) error) {
	g.inflight.Add(1)
	go func() {
		defer g.inflight.Done()
		err := write(g.background)
		if err != nil {
			g.log.Warn("background write failed", "op", op, "error", err)
			monitoring.RecordMutation(op, Outcome(fmt.Errorf("%w: %v", ErrRemoteWrite, err)))
			return
		}
		monitoring.RecordMutation(op, "ok")
	}()
}

// Wait blocks until every fire-and-forget write has finished.
func (g *Gateway) Wait() {
	g.inflight.Wait()
}

// Close cancels pending navigations and waits for in-flight writes.
func (g *Gateway) Close() {
	g.redirect.Cancel()
	g.inflight.Wait()
	g.cancel()
}
