// Package view defines what the app core tells the person using it:
// notices to display and routes to move to.
package view

import (
	"sync"
	"time"

	"todola/backend/internal/clock"
)

const (
	RouteLogin = "/login"
	RouteHome  = "/home"
	RouteAdd   = "/add"
)

type NoticeKind string

const (
	Success NoticeKind = "success"
	Failure NoticeKind = "error"
	Info    NoticeKind = "info"
)

// Notice is a message for the user. A blocking notice stays up until the
// user acknowledges it; others disappear on their own.
type Notice struct {
	Kind     NoticeKind `json:"kind"`
	Message  string     `json:"message"`
	Blocking bool       `json:"blocking"`
}

type Notifier interface {
	// Notify displays n. The returned channel is closed once the user
	// has acknowledged a blocking notice, and immediately otherwise.
	Notify(n Notice) <-chan struct{}
}

type Route struct {
	Path   string `json:"path"`
	TaskID string `json:"task_id,omitempty"`
}

type Navigator interface {
	Navigate(to Route)
}

// Redirector performs navigations after a delay. Pending navigations can
// be cancelled together, for example when the connection closes.
type Redirector struct {
	clock clock.Clock
	nav   Navigator
	delay time.Duration

	mu      sync.Mutex
	pending map[clock.Timer]struct{}
	closed  bool
}

func NewRedirector(c clock.Clock, nav Navigator, delay time.Duration) *Redirector {
	return &Redirector{clock: c, nav: nav, delay: delay, pending: make(map[clock.Timer]struct{})}
}

func (r *Redirector) After(to Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	var timer clock.Timer
	timer = r.clock.AfterFunc(r.delay, func() {
		r.mu.Lock()
		_, live := r.pending[timer]
		delete(r.pending, timer)
		r.mu.Unlock()
		if live {
			r.nav.Navigate(to)
		}
	})
	r.pending[timer] = struct{}{}
}

// Navigate moves immediately unless the redirector has been closed.
func (r *Redirector) Navigate(to Route) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if !closed {
		r.nav.Navigate(to)
	}
}

// Pending reports how many navigations are scheduled.
func (r *Redirector) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Redirector) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for timer := range r.pending {
		timer.Stop()
		delete(r.pending, timer)
	}
}

func (r *Redirector) Close() {
	r.Cancel()
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

// Recorder keeps every notice and navigation it receives. Blocking
// notices are acknowledged only when Ack is called.
type Recorder struct {
	mu      sync.Mutex
	Notices []Notice
	Routes  []Route
	waiting []chan struct{}
}

func (r *Recorder) Notify(n Notice) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notices = append(r.Notices, n)
	ch := make(chan struct{})
	if n.Blocking {
		r.waiting = append(r.waiting, ch)
	} else {
		close(ch)
	}
	return ch
}

func (r *Recorder) Navigate(to Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Routes = append(r.Routes, to)
}

// Ack acknowledges every blocking notice shown so far.
func (r *Recorder) Ack() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.waiting {
		close(ch)
	}
	r.waiting = nil
}

func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Notices))
	for i, n := range r.Notices {
		out[i] = n.Message
	}
	return out
}

func (r *Recorder) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Routes))
	for i, route := range r.Routes {
		out[i] = route.Path
	}
	return out
}
