// Package app assembles one live app instance: the session, the task
// feed, the mutation gateway and the progress display of a single
// connected client. Everything the instance wants to show is sent to its
// Sink as an Event.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"todola/backend/internal/auth"
	"todola/backend/internal/clock"
	"todola/backend/internal/feed"
	"todola/backend/internal/gateway"
	"todola/backend/internal/models"
	"todola/backend/internal/progress"
	"todola/backend/internal/session"
	"todola/backend/internal/store"
	"todola/backend/internal/view"
)

var ErrUnknownCommand = errors.New("unknown command")

type Sink interface {
	Send(Event)
}

type Deps struct {
	Store  store.Store
	Auth   *auth.Service
	Clock  clock.Clock
	Logger *slog.Logger
}

type Options struct {
	NavigationDelay time.Duration
	Progress        progress.Timing
}

type App struct {
	sink  Sink
	log   *slog.Logger
	store store.Store

	client   *auth.Client
	tracker  *session.Tracker
	forms    *session.Forms
	feed     *feed.Subscriber
	gateway  *gateway.Gateway
	progress *progress.Aggregator
	redirect *view.Redirector

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	nextID  uint64
	waiting map[uint64]chan struct{}
}

func New(deps Deps, opts Options, sink Sink) *App {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		sink:    sink,
		log:     log.With("component", "app"),
		store:   deps.Store,
		client:  auth.NewClient(deps.Auth),
		ctx:     ctx,
		cancel:  cancel,
		waiting: make(map[uint64]chan struct{}),
	}

	a.redirect = view.NewRedirector(deps.Clock, a, opts.NavigationDelay)
	a.tracker = session.NewTracker(a.client, a, log)
	a.forms = session.NewForms(a.client, deps.Store, a, a.redirect, log)
	a.gateway = gateway.New(deps.Store, a, a.redirect, log)
	a.progress = progress.NewAggregator(deps.Clock, opts.Progress, progress.Outputs{
		Report: func(r progress.Report) { a.send(EventProgress, r) },
		Frame:  func(v int) { a.send(EventFrame, FrameData{Displayed: v}) },
		Celebration: func(on bool) {
			a.send(EventCelebration, CelebrationData{Active: on})
		},
	})
	a.feed = feed.NewSubscriber(deps.Store, a.publishTasks, log)
	a.tracker.OnChange(a.identityChanged)
	return a
}

// Start resumes the session carried by token, if any, and begins
// tracking the sign-in state. An unusable token leaves the instance
// signed out.
func (a *App) Start(token string) {
	if token != "" {
		if _, err := a.client.Restore(a.ctx, token); err != nil {
			a.log.Info("could not resume session", "error", err)
			a.sendError(err)
		}
	}
	a.tracker.Start()
}

func (a *App) identityChanged(identity *models.Identity) {
	a.send(EventSession, SessionData{User: identity, Token: a.client.Token()})

	if err := a.feed.Start(a.ctx, identity); err != nil {
		a.sendError(err)
	}
}

func (a *App) publishTasks(tasks []models.Task) {
	a.send(EventFeed, tasks)
	a.progress.Publish(tasks)
}

func (a *App) Identity() *models.Identity { return a.tracker.Current() }

// Handle runs one inbound command. Outcomes the user should see are
// reported through notices; the returned error is for logging.
func (a *App) Handle(ctx context.Context, cmd Command) error {
	identity := a.tracker.Current()

	switch cmd.Type {
	case CmdSignIn:
		_, err := a.forms.SignIn(ctx, cmd.Email, cmd.Password)
		return err
	case CmdSignUp:
		_, err := a.forms.SignUp(ctx, cmd.Email, cmd.Password)
		return err
	case CmdSignOut:
		return a.tracker.SignOut(ctx)
	case CmdAdd:
		return a.gateway.OpenComposer(identity)
	case CmdCreate:
		_, err := a.gateway.Create(ctx, identity, cmd.Task)
		return err
	case CmdUpdate:
		task, err := a.findTask(ctx, cmd.TaskID)
		if err != nil {
			return err
		}
		_, err = a.gateway.Update(ctx, identity, task, cmd.Task)
		return err
	case CmdDelete:
		task, err := a.findTask(ctx, cmd.TaskID)
		if err != nil {
			return err
		}
		return a.gateway.Delete(identity, task)
	case CmdToggle:
		task, err := a.findTask(ctx, cmd.TaskID)
		if err != nil {
			return err
		}
		return a.gateway.ToggleDone(identity, task)
	case CmdEdit:
		task, err := a.findTask(ctx, cmd.TaskID)
		if err != nil {
			return err
		}
		return a.gateway.OpenEditor(identity, task)
	case CmdAck:
		a.ack(cmd.NoticeID)
		return nil
	default:
		err := fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
		a.sendError(err)
		return err
	}
}

// findTask prefers the task as last published to this instance and falls
// back to the store, so ownership is still checked for tasks the feed
// does not show.
func (a *App) findTask(ctx context.Context, id string) (models.Task, error) {
	if task, ok := a.feed.Find(id); ok {
		return task, nil
	}
	task, err := feed.Lookup(ctx, a.store, id)
	if err != nil {
		a.sendError(err)
		return models.Task{}, err
	}
	return task, nil
}

// Notify implements view.Notifier.
func (a *App) Notify(n view.Notice) <-chan struct{} {
	ch := make(chan struct{})

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		close(ch)
		return ch
	}
	a.nextID++
	id := a.nextID
	if n.Blocking {
		a.waiting[id] = ch
	} else {
		close(ch)
	}
	a.mu.Unlock()

	a.send(EventNotice, NoticeData{ID: id, Notice: n})
	return ch
}

// Navigate implements view.Navigator.
func (a *App) Navigate(to view.Route) {
	a.send(EventNavigate, to)
}

func (a *App) ack(id uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ch, ok := a.waiting[id]; ok {
		close(ch)
		delete(a.waiting, id)
	}
}

func (a *App) send(kind string, data interface{}) {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return
	}
	a.sink.Send(Event{Type: kind, Data: data})
}

func (a *App) sendError(err error) {
	data := ErrorData{Code: "error", Message: err.Error()}
	var authErr *auth.AuthError
	switch {
	case errors.As(err, &authErr):
		data.Code = authErr.Code
	case errors.Is(err, feed.ErrTaskNotFound):
		data.Code = "not_found"
	case errors.Is(err, ErrUnknownCommand):
		data.Code = "unknown_command"
	}
	a.send(EventError, data)
}

// SendError reports a protocol problem found outside Handle, such as an
// undecodable frame.
func (a *App) SendError(code, message string) {
	a.send(EventError, ErrorData{Code: code, Message: message})
}

// Close tears down every subscription, timer and animation of the
// instance. The session itself stays valid so the client can resume it.
func (a *App) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	a.tracker.Stop()
	a.feed.Stop()
	a.progress.Stop()
	a.redirect.Close()
	a.gateway.Close()
	a.cancel()
}
