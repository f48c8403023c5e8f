// Package feed keeps the signed-in user's task list in sync with the
// store.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"todola/backend/internal/models"
	"todola/backend/internal/store"
)

const TasksPath = "tasks"

var ErrTaskNotFound = errors.New("task not found")

type Reader interface {
	Read(ctx context.Context, path string) (store.Snapshot, error)
}

func TaskPath(id string) string { return TasksPath + "/" + id }

// Materialize turns every child of the tasks collection into a Task keyed
// by its store key. Records that do not decode keep only their id.
func Materialize(snap store.Snapshot) []models.Task {
	tasks := make([]models.Task, 0, len(snap.Children))
	for _, child := range snap.Children {
		var record models.TaskRecord
		_ = json.Unmarshal(child.Value, &record)
		tasks = append(tasks, record.WithID(child.Key))
	}
	return tasks
}

func Filter(tasks []models.Task, uid string) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.OwnedBy(uid) {
			out = append(out, task)
		}
	}
	return out
}

// Sort orders tasks by deadline, earliest first. Tasks without a
// parseable deadline sort as the earliest date. Ties keep their order.
func Sort(tasks []models.Task) []models.Task {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].DeadlineTime().Before(tasks[j].DeadlineTime())
	})
	return tasks
}

func Build(snap store.Snapshot, uid string) []models.Task {
	return Sort(Filter(Materialize(snap), uid))
}

// Snapshot reads the user's list once.
func Snapshot(ctx context.Context, r Reader, uid string) ([]models.Task, error) {
	snap, err := r.Read(ctx, TasksPath)
	if err != nil {
		return nil, err
	}
	return Build(snap, uid), nil
}

// Collection returns every task regardless of owner.
func Collection(ctx context.Context, r Reader) ([]models.Task, error) {
	snap, err := r.Read(ctx, TasksPath)
	if err != nil {
		return nil, err
	}
	return Materialize(snap), nil
}

func Lookup(ctx context.Context, r Reader, id string) (models.Task, error) {
	snap, err := r.Read(ctx, TaskPath(id))
	if err != nil {
		return models.Task{}, err
	}
	if !snap.Exists {
		return models.Task{}, ErrTaskNotFound
	}
	var record models.TaskRecord
	if err := snap.Decode(&record); err != nil {
		return models.Task{ID: id}, nil
	}
	return record.WithID(id), nil
}
