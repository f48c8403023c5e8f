package feed

import (
	"context"
	"log/slog"
	"sync"

	"todola/backend/internal/models"
	"todola/backend/internal/store"
)

type Source interface {
	Subscribe(ctx context.Context, path string, fn func(store.Snapshot)) (store.Subscription, error)
}

// Subscriber holds at most one live subscription to the tasks collection,
// for the identity it was last started with. Every notification replaces
// the published list wholesale.
type Subscriber struct {
	source  Source
	publish func([]models.Task)
	log     *slog.Logger

	mu    sync.Mutex
	gen   uint64
	sub   store.Subscription
	tasks []models.Task

	// publishMu keeps a stale delivery from landing after Stop's empty list.
	publishMu sync.Mutex
}

func NewSubscriber(source Source, publish func([]models.Task), log *slog.Logger) *Subscriber {
	return &Subscriber{source: source, publish: publish, log: log.With("component", "feed")}
}

// Start subscribes on behalf of identity, replacing any earlier
// subscription. A nil identity is the same as Stop.
func (s *Subscriber) Start(ctx context.Context, identity *models.Identity) error {
	if !identity.Present() {
		s.Stop()
		return nil
	}
	uid := identity.UID

	gen, old := s.supersede()
	if old != nil {
		old.Stop()
	}

	sub, err := s.source.Subscribe(ctx, TasksPath, func(snap store.Snapshot) {
		s.deliver(gen, Build(snap, uid))
	})
	if err != nil {
		s.log.Error("failed to subscribe to tasks", "uid", uid, "error", err)
		return err
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		sub.Stop()
		return nil
	}
	s.sub = sub
	s.mu.Unlock()
	return nil
}

func (s *Subscriber) supersede() (uint64, store.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	old := s.sub
	s.sub = nil
	return s.gen, old
}

func (s *Subscriber) deliver(gen uint64, tasks []models.Task) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.tasks = tasks
	s.mu.Unlock()

	s.publish(tasks)
}

// Stop drops the subscription and publishes an empty list.
func (s *Subscriber) Stop() {
	_, old := s.supersede()
	if old != nil {
		old.Stop()
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	s.tasks = nil
	s.mu.Unlock()

	s.publish([]models.Task{})
}

// Tasks returns the list most recently published.
func (s *Subscriber) Tasks() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Task(nil), s.tasks...)
}

func (s *Subscriber) Find(id string) (models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range s.tasks {
		if task.ID == id {
			return task, true
		}
	}
	return models.Task{}, false
}
