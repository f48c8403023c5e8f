package models

import (
	"strings"
	"time"
)

type Category string

const (
	CategoryWork     Category = "Work"
	CategoryStudy    Category = "Study"
	CategoryPersonal Category = "Personal"
	CategoryFitness  Category = "Fitness"
)

var Categories = []Category{CategoryWork, CategoryStudy, CategoryPersonal, CategoryFitness}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// DeadlineLayout is the calendar-date form the task form submits.
const DeadlineLayout = "2006-01-02"

// Task is one user-created to-do item. ID is the store key and is not part
// of the stored record.
type Task struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Deadline    string   `json:"deadline"`
	Category    Category `json:"category"`
	CreatedBy   string   `json:"createdBy"`
	Done        bool     `json:"done"`
}

// TaskRecord is the value stored at tasks/<id>.
type TaskRecord struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Deadline    string   `json:"deadline"`
	Category    Category `json:"category"`
	CreatedBy   string   `json:"createdBy"`
	Done        bool     `json:"done"`
}

func (t Task) Record() TaskRecord {
	return TaskRecord{
		Name:        t.Name,
		Description: t.Description,
		Deadline:    t.Deadline,
		Category:    t.Category,
		CreatedBy:   t.CreatedBy,
		Done:        t.Done,
	}
}

func (r TaskRecord) WithID(id string) Task {
	return Task{
		ID:          id,
		Name:        r.Name,
		Description: r.Description,
		Deadline:    r.Deadline,
		Category:    r.Category,
		CreatedBy:   r.CreatedBy,
		Done:        r.Done,
	}
}

// DeadlineTime parses the deadline. Absent or unparseable deadlines yield the
// zero time, which orders before every real date.
func (t Task) DeadlineTime() time.Time {
	s := strings.TrimSpace(t.Deadline)
	if s == "" {
		return time.Time{}
	}
	if d, err := time.Parse(DeadlineLayout, s); err == nil {
		return d
	}
	if d, err := time.Parse(time.RFC3339, s); err == nil {
		return d
	}
	return time.Time{}
}

func (t Task) OwnedBy(uid string) bool {
	return uid != "" && t.CreatedBy == uid
}
