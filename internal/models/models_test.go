package models_test

import (
	"testing"
	"time"

	"todola/backend/internal/models"
)

func TestCategory_Valid(t *testing.T) {
	for _, c := range models.Categories {
		if !c.Valid() {
			t.Errorf("Expected category %q to be valid", c)
		}
	}

	for _, c := range []models.Category{"", "work", "Chores"} {
		if c.Valid() {
			t.Errorf("Expected category %q to be invalid", c)
		}
	}
}

func TestTask_DeadlineTime(t *testing.T) {
	task := models.Task{Deadline: "2024-01-10"}
	want := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	if !task.DeadlineTime().Equal(want) {
		t.Errorf("Expected %v, got %v", want, task.DeadlineTime())
	}

	for _, d := range []string{"", "   ", "next tuesday", "2024-13-45"} {
		task := models.Task{Deadline: d}
		if !task.DeadlineTime().IsZero() {
			t.Errorf("Expected zero deadline for %q, got %v", d, task.DeadlineTime())
		}
	}
}

func TestTask_RecordRoundTrip(t *testing.T) {
	task := models.Task{
		ID:        "01HXYZ",
		Name:      "Run",
		Category:  models.CategoryFitness,
		CreatedBy: "u1",
		Done:      true,
	}

	back := task.Record().WithID(task.ID)
	if back != task {
		t.Errorf("Expected %+v, got %+v", task, back)
	}
}

func TestTask_OwnedBy(t *testing.T) {
	task := models.Task{CreatedBy: "u1"}

	if !task.OwnedBy("u1") {
		t.Error("Expected task to be owned by u1")
	}
	if task.OwnedBy("u2") {
		t.Error("Expected task not to be owned by u2")
	}
	if (models.Task{}).OwnedBy("") {
		t.Error("Expected anonymous caller never to own a task")
	}
}

func TestIdentity_Present(t *testing.T) {
	var none *models.Identity
	if none.Present() {
		t.Error("Expected nil identity to be absent")
	}
	if models.UIDOf(none) != "" {
		t.Error("Expected empty uid for nil identity")
	}

	id := &models.Identity{UID: "u1", Email: "a@b.c"}
	if !id.Present() || models.UIDOf(id) != "u1" {
		t.Errorf("Expected identity u1 to be present, got %+v", id)
	}
}
