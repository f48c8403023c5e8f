package store

import (
	"context"
	"log/slog"
	"sync"

	"todola/backend/internal/monitoring"
)

type readFunc func(ctx context.Context) (Snapshot, error)

// subscription re-reads its path whenever it is woken and hands the
// result to fn on its own goroutine. Wake-ups that arrive while a read is
// in flight are coalesced into one follow-up read, so the last callback
// always reflects the latest state.
type subscription struct {
	path   Path
	read   readFunc
	fn     func(Snapshot)
	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	onStop func(*subscription)
	log    *slog.Logger
}

func startSubscription(ctx context.Context, path Path, read readFunc, fn func(Snapshot), onStop func(*subscription), log *slog.Logger) *subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &subscription{
		path:   path,
		read:   read,
		fn:     fn,
		wake:   make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
		onStop: onStop,
		log:    log,
	}
	s.wake <- struct{}{}
	monitoring.ActiveSubscriptions.WithLabelValues(path.Collection).Inc()
	go s.run(ctx)
	return s
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}

		snap, err := s.read(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.log.Warn("subscription read failed", "path", s.path.String(), "error", err)
			continue
		}
		s.fn(snap)
	}
}

func (s *subscription) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) Stop() {
	s.once.Do(func() {
		s.cancel()
		if s.onStop != nil {
			s.onStop(s)
		}
		monitoring.ActiveSubscriptions.WithLabelValues(s.path.Collection).Dec()
	})
	<-s.done
}

// hub fans change notifications for a collection out to its subscribers.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscription]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[*subscription]struct{})}
}

func (h *hub) add(s *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[s.path.Collection]
	if !ok {
		set = make(map[*subscription]struct{})
		h.subs[s.path.Collection] = set
	}
	set[s] = struct{}{}
}

func (h *hub) remove(s *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[s.path.Collection]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.path.Collection)
		}
	}
}

func (h *hub) publish(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[collection] {
		s.notify()
	}
}

func (h *hub) count(collection string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[collection])
}

func (h *hub) stopAll() {
	h.mu.Lock()
	var all []*subscription
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.mu.Unlock()
	for _, s := range all {
		s.Stop()
	}
}
