package progress

import (
	"math"
	"sync"
	"time"

	"todola/backend/internal/clock"
)

// Ease maps t in [0,1] onto [start,end] along a half cosine.
func Ease(start, end float64, t float64) float64 {
	if t >= 1 {
		return end
	}
	if t <= 0 {
		return start
	}
	return start + (end-start)*(0.5-0.5*math.Cos(math.Pi*t))
}

// Animator moves the displayed percentage towards a target one frame at
// a time. A new target restarts the motion from the value on display.
type Animator struct {
	clock    clock.Clock
	duration time.Duration
	frame    time.Duration
	render   func(int)

	mu        sync.Mutex
	displayed int
	stop      chan struct{}
	done      chan struct{}
}

func NewAnimator(c clock.Clock, duration, frame time.Duration, render func(int)) *Animator {
	return &Animator{clock: c, duration: duration, frame: frame, render: render}
}

func (a *Animator) Displayed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.displayed
}

func (a *Animator) SetTarget(target int) {
	a.Stop()

	a.mu.Lock()
	defer a.mu.Unlock()

	start := a.displayed
	if start == target {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	a.stop, a.done = stop, done

	ticker := a.clock.NewTicker(a.frame)
	began := a.clock.Now()
	go a.run(ticker, began, float64(start), float64(target), stop, done)
}

func (a *Animator) run(ticker clock.Ticker, began time.Time, start, end float64, stop, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
		}

		t := float64(a.clock.Now().Sub(began)) / float64(a.duration)
		value := int(math.Round(Ease(start, end, t)))

		a.mu.Lock()
		select {
		case <-stop:
			a.mu.Unlock()
			return
		default:
		}
		a.displayed = value
		a.mu.Unlock()

		a.render(value)
		if t >= 1 {
			return
		}
	}
}

// Stop halts any motion in progress and waits for it to end. The
// displayed value stays where it was.
func (a *Animator) Stop() {
	a.mu.Lock()
	stop, done := a.stop, a.done
	a.stop, a.done = nil, nil
	a.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}
