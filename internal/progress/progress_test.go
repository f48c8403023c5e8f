package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todola/backend/internal/clock"
	"todola/backend/internal/models"
)

func tasksWithDone(done ...bool) []models.Task {
	tasks := make([]models.Task, len(done))
	for i, d := range done {
		tasks[i] = models.Task{ID: string(rune('a' + i)), Done: d}
	}
	return tasks
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name string
		done []bool
		want Stats
	}{
		{"empty", nil, Stats{}},
		{"half", []bool{false, true}, Stats{Completed: 1, Total: 2, Percentage: 50}},
		{"all", []bool{true, true, true}, Stats{Completed: 3, Total: 3, Percentage: 100}},
		{"none", []bool{false, false, false}, Stats{Completed: 0, Total: 3, Percentage: 0}},
		{"one third rounds down", []bool{true, false, false}, Stats{Completed: 1, Total: 3, Percentage: 33}},
		{"two thirds rounds up", []bool{true, true, false}, Stats{Completed: 2, Total: 3, Percentage: 67}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tasksWithDone(tt.done...))
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, got.Completed, got.Total)
			assert.GreaterOrEqual(t, got.Percentage, 0)
			assert.LessOrEqual(t, got.Percentage, 100)
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, MsgAllDone, Message(100))
	assert.Equal(t, MsgKeepUp, Message(50))
	assert.Equal(t, MsgKeepUp, Message(0))

	report := NewReport(tasksWithDone(true, true))
	assert.Equal(t, MsgAllDone, report.Message)
	assert.True(t, report.Complete())
	assert.False(t, Compute(nil).Complete())
}

func TestEase(t *testing.T) {
	assert.Equal(t, 0.0, Ease(0, 100, 0))
	assert.InDelta(t, 50.0, Ease(0, 100, 0.5), 1e-9)
	assert.Equal(t, 100.0, Ease(0, 100, 1))
	assert.Equal(t, 100.0, Ease(0, 100, 1.5))
	assert.InDelta(t, 75.0, Ease(100, 50, 0.5), 1e-9)

	prev := Ease(0, 100, 0)
	for i := 1; i <= 10; i++ {
		v := Ease(0, 100, float64(i)/10)
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}
}

type frames struct {
	ch chan int
}

func newFrames() *frames { return &frames{ch: make(chan int, 256)} }

func (f *frames) render(v int) { f.ch <- v }

func (f *frames) next(t *testing.T) int {
	t.Helper()
	select {
	case v := <-f.ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("no frame rendered")
		return 0
	}
}

func TestAnimator_ReachesTargetAfterDuration(t *testing.T) {
	clk := clock.NewMock()
	f := newFrames()
	a := NewAnimator(clk, time.Second, 100*time.Millisecond, f.render)

	a.SetTarget(50)

	var seen []int
	for i := 0; i < 10; i++ {
		clk.Add(100 * time.Millisecond)
		seen = append(seen, f.next(t))
	}

	assert.Equal(t, 50, seen[len(seen)-1])
	assert.Equal(t, 25, seen[4])
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
	}
	assert.Equal(t, 50, a.Displayed())

	a.Stop()
}

func TestAnimator_RetargetStartsFromDisplayed(t *testing.T) {
	clk := clock.NewMock()
	f := newFrames()
	a := NewAnimator(clk, time.Second, 100*time.Millisecond, f.render)

	a.SetTarget(100)
	for i := 0; i < 5; i++ {
		clk.Add(100 * time.Millisecond)
		f.next(t)
	}
	mid := a.Displayed()
	require.Equal(t, 50, mid)

	a.SetTarget(0)
	clk.Add(100 * time.Millisecond)
	first := f.next(t)
	assert.LessOrEqual(t, first, mid)
	assert.Greater(t, first, 0)

	for i := 0; i < 9; i++ {
		clk.Add(100 * time.Millisecond)
		f.next(t)
	}
	assert.Equal(t, 0, a.Displayed())
}

func TestAnimator_StopCancels(t *testing.T) {
	clk := clock.NewMock()
	f := newFrames()
	a := NewAnimator(clk, time.Second, 100*time.Millisecond, f.render)

	a.SetTarget(80)
	clk.Add(100 * time.Millisecond)
	f.next(t)
	a.Stop()
	held := a.Displayed()

	clk.Add(time.Second)
	select {
	case v := <-f.ch:
		t.Fatalf("frame %d rendered after Stop", v)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, held, a.Displayed())
}

func TestAnimator_SameTargetDoesNothing(t *testing.T) {
	clk := clock.NewMock()
	f := newFrames()
	a := NewAnimator(clk, time.Second, 100*time.Millisecond, f.render)

	a.SetTarget(0)
	clk.Add(time.Second)
	select {
	case v := <-f.ch:
		t.Fatalf("unexpected frame %d", v)
	case <-time.After(50 * time.Millisecond):
	}
}

type switches struct {
	mu  sync.Mutex
	got []bool
}

func (s *switches) publish(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, on)
}

func (s *switches) values() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.got...)
}

func TestCelebration_OnAtCompletionOffAfterDuration(t *testing.T) {
	clk := clock.NewMock()
	sw := &switches{}
	c := NewCelebration(clk, 5*time.Second, sw.publish)

	c.Update(Compute(tasksWithDone(true, true, true)))
	assert.True(t, c.Active())
	assert.Equal(t, []bool{true}, sw.values())

	clk.Add(4999 * time.Millisecond)
	assert.True(t, c.Active())

	clk.Add(time.Millisecond)
	assert.False(t, c.Active())
	assert.Equal(t, []bool{true, false}, sw.values())
}

func TestCelebration_EmptyListNeverCelebrates(t *testing.T) {
	clk := clock.NewMock()
	sw := &switches{}
	c := NewCelebration(clk, 5*time.Second, sw.publish)

	c.Update(Compute(nil))
	assert.False(t, c.Active())
	assert.Empty(t, sw.values())
	assert.Equal(t, 0, clk.Pending())
}

func TestCelebration_LeavingCompletionCancels(t *testing.T) {
	clk := clock.NewMock()
	sw := &switches{}
	c := NewCelebration(clk, 5*time.Second, sw.publish)

	c.Update(Compute(tasksWithDone(true, true)))
	clk.Add(time.Second)
	c.Update(Compute(tasksWithDone(true, false)))

	assert.False(t, c.Active())
	assert.Equal(t, 0, clk.Pending())
	assert.Equal(t, []bool{true, false}, sw.values())

	clk.Add(10 * time.Second)
	assert.Equal(t, []bool{true, false}, sw.values())
}

func TestCelebration_RetriggersOnReturn(t *testing.T) {
	clk := clock.NewMock()
	sw := &switches{}
	c := NewCelebration(clk, 5*time.Second, sw.publish)

	c.Update(Compute(tasksWithDone(true)))
	clk.Add(5 * time.Second)
	c.Update(Compute(tasksWithDone(false)))
	c.Update(Compute(tasksWithDone(true)))

	assert.True(t, c.Active())
	assert.Equal(t, []bool{true, false, true}, sw.values())
}

func TestCelebration_RepeatedStatsAreIgnored(t *testing.T) {
	clk := clock.NewMock()
	sw := &switches{}
	c := NewCelebration(clk, 5*time.Second, sw.publish)

	c.Update(Compute(tasksWithDone(true, true)))
	clk.Add(3 * time.Second)
	c.Update(Compute(tasksWithDone(true, true)))
	clk.Add(2 * time.Second)

	assert.False(t, c.Active())
	assert.Equal(t, []bool{true, false}, sw.values())
}

func TestAggregator_Scenario(t *testing.T) {
	clk := clock.NewMock()
	var reports []Report
	sw := &switches{}
	f := newFrames()
	agg := NewAggregator(clk, Timing{
		AnimationDuration:   time.Second,
		FrameInterval:       100 * time.Millisecond,
		CelebrationDuration: 5 * time.Second,
	}, Outputs{
		Report:      func(r Report) { reports = append(reports, r) },
		Frame:       f.render,
		Celebration: sw.publish,
	})
	defer agg.Stop()

	agg.Publish([]models.Task{
		{ID: "b", Name: "B", Deadline: "2024-03-01", Done: false},
		{ID: "a", Name: "A", Deadline: "2024-05-01", Done: true},
	})
	require.Len(t, reports, 1)
	assert.Equal(t, Stats{Completed: 1, Total: 2, Percentage: 50}, reports[0].Stats)
	assert.Equal(t, MsgKeepUp, reports[0].Message)
	assert.False(t, agg.Celebrating())

	for i := 0; i < 10; i++ {
		clk.Add(100 * time.Millisecond)
		f.next(t)
	}
	assert.Equal(t, 50, agg.Displayed())

	agg.Publish(tasksWithDone(true, true, true))
	assert.Equal(t, 100, reports[1].Percentage)
	assert.Equal(t, MsgAllDone, reports[1].Message)
	assert.True(t, agg.Celebrating())

	for i := 0; i < 50; i++ {
		clk.Add(100 * time.Millisecond)
		if i < 10 {
			f.next(t)
		}
	}
	assert.False(t, agg.Celebrating())
	assert.Equal(t, 100, agg.Displayed())
	assert.Equal(t, []bool{true, false}, sw.values())
}
