package progress

import (
	"time"

	"todola/backend/internal/clock"
	"todola/backend/internal/models"
)

type Outputs struct {
	Report      func(Report)
	Frame       func(int)
	Celebration func(bool)
}

type Timing struct {
	AnimationDuration   time.Duration
	FrameInterval       time.Duration
	CelebrationDuration time.Duration
}

// Aggregator turns each published task list into a report, an animation
// towards the new percentage and the celebration state.
type Aggregator struct {
	out         Outputs
	animator    *Animator
	celebration *Celebration
}

func NewAggregator(c clock.Clock, timing Timing, out Outputs) *Aggregator {
	return &Aggregator{
		out:         out,
		animator:    NewAnimator(c, timing.AnimationDuration, timing.FrameInterval, out.Frame),
		celebration: NewCelebration(c, timing.CelebrationDuration, out.Celebration),
	}
}

func (a *Aggregator) Publish(tasks []models.Task) {
	report := NewReport(tasks)
	a.out.Report(report)
	a.animator.SetTarget(report.Percentage)
	a.celebration.Update(report.Stats)
}

func (a *Aggregator) Displayed() int    { return a.animator.Displayed() }
func (a *Aggregator) Celebrating() bool { return a.celebration.Active() }

func (a *Aggregator) Stop() {
	a.animator.Stop()
	a.celebration.Stop()
}
