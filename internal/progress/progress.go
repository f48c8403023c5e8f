// Package progress derives completion statistics from the task list and
// drives the animated percentage and the all-done celebration.
package progress

import (
	"math"

	"todola/backend/internal/models"
)

const (
	MsgAllDone = "Congratulations! All tasks completed"
	MsgKeepUp  = "You're halfway there! Keep it up!"
)

type Stats struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

func Compute(tasks []models.Task) Stats {
	stats := Stats{Total: len(tasks)}
	for _, task := range tasks {
		if task.Done {
			stats.Completed++
		}
	}
	if stats.Total > 0 {
		stats.Percentage = int(math.Round(100 * float64(stats.Completed) / float64(stats.Total)))
	}
	return stats
}

// Complete reports whether every one of at least one task is done.
func (s Stats) Complete() bool {
	return s.Total > 0 && s.Percentage == 100
}

func Message(percentage int) string {
	if percentage == 100 {
		return MsgAllDone
	}
	return MsgKeepUp
}

type Report struct {
	Stats
	Message string `json:"message"`
}

func NewReport(tasks []models.Task) Report {
	stats := Compute(tasks)
	return Report{Stats: stats, Message: Message(stats.Percentage)}
}
