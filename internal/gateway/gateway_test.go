package gateway_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"todola/backend/internal/clock"
	"todola/backend/internal/feed"
	"todola/backend/internal/gateway"
	"todola/backend/internal/logger"
	"todola/backend/internal/models"
	"todola/backend/internal/store"
	"todola/backend/internal/testutil"
	"todola/backend/internal/view"
)

// spyStore records every mutation before passing it on.
type spyStore struct {
	store.Store
	mu    sync.Mutex
	calls []string
}

func (s *spyStore) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *spyStore) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *spyStore) Write(ctx context.Context, path string, value interface{}) error {
	s.record("write " + path)
	return s.Store.Write(ctx, path, value)
}

func (s *spyStore) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	s.record("update " + path)
	return s.Store.Update(ctx, path, fields)
}

func (s *spyStore) Append(ctx context.Context, path string) (string, error) {
	s.record("append " + path)
	return s.Store.Append(ctx, path)
}

func (s *spyStore) Delete(ctx context.Context, path string) error {
	s.record("delete " + path)
	return s.Store.Delete(ctx, path)
}

var (
	owner    = &models.Identity{UID: "u1", Email: "ann@example.com"}
	stranger = &models.Identity{UID: "u2", Email: "bob@example.com"}
	draft    = gateway.Draft{Name: "Read book", Description: "ch. 3", Deadline: "2024-06-01", Category: models.CategoryStudy}
)

type GatewayTestSuite struct {
	suite.Suite
	ctx   context.Context
	store *spyStore
	clock *clock.Mock
	rec   *view.Recorder
	gw    *gateway.Gateway
}

func (s *GatewayTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = &spyStore{Store: testutil.NewStore(s.T(), testutil.OpenDB(s.T()))}
	s.clock = clock.NewMock()
	s.rec = &view.Recorder{}
	s.gw = gateway.New(s.store, s.rec, view.NewRedirector(s.clock, s.rec, 2*time.Second), logger.Discard())
}

func (s *GatewayTestSuite) TearDownTest() {
	s.gw.Close()
}

func (s *GatewayTestSuite) stored(id string) models.Task {
	task, err := feed.Lookup(s.ctx, s.store, id)
	s.Require().NoError(err)
	return task
}

func (s *GatewayTestSuite) TestCreateSignedOut() {
	_, err := s.gw.Create(s.ctx, nil, draft)
	s.ErrorIs(err, gateway.ErrUnauthenticated)
	s.Empty(s.store.Calls())

	s.Require().Len(s.rec.Notices, 1)
	s.Equal(gateway.MsgLoginRequired, s.rec.Notices[0].Message)
	s.True(s.rec.Notices[0].Blocking)

	s.clock.Add(10 * time.Second)
	s.Empty(s.rec.Paths())

	s.rec.Ack()
	s.Eventually(func() bool { return len(s.rec.Paths()) == 1 }, time.Second, 5*time.Millisecond)
	s.Equal([]string{view.RouteLogin}, s.rec.Paths())
}

func (s *GatewayTestSuite) TestIdentityIsCheckedBeforeFields() {
	_, err := s.gw.Create(s.ctx, nil, gateway.Draft{})
	s.ErrorIs(err, gateway.ErrUnauthenticated)
	s.Equal([]string{gateway.MsgLoginRequired}, s.rec.Messages())
}

func (s *GatewayTestSuite) TestCreateRequiresFields() {
	cases := map[string]gateway.Draft{
		"empty name":       {Category: models.CategoryWork},
		"blank name":       {Name: "   ", Category: models.CategoryWork},
		"empty category":   {Name: "A"},
		"unknown category": {Name: "A", Category: "Hobby"},
	}

	for name, d := range cases {
		s.Run(name, func() {
			_, err := s.gw.Create(s.ctx, owner, d)
			s.ErrorIs(err, gateway.ErrValidation)
		})
	}

	s.Empty(s.store.Calls())
	for _, n := range s.rec.Notices {
		s.Equal(gateway.MsgRequiredFields, n.Message)
		s.True(n.Blocking)
	}

	s.rec.Ack()
	s.clock.Add(10 * time.Second)
	time.Sleep(20 * time.Millisecond)
	s.Empty(s.rec.Paths())
}

func (s *GatewayTestSuite) TestCreate() {
	task, err := s.gw.Create(s.ctx, owner, gateway.Draft{Name: "  Run  ", Category: " Fitness ", Deadline: "2024-06-01"})
	s.Require().NoError(err)

	s.Equal("Run", task.Name)
	s.Equal(models.CategoryFitness, task.Category)
	s.Equal("u1", task.CreatedBy)
	s.False(task.Done)
	s.Equal([]string{"append tasks", "write tasks/" + task.ID}, s.store.Calls())

	s.Equal(task, s.stored(task.ID))
	s.Equal([]string{gateway.MsgCreated}, s.rec.Messages())

	s.clock.Add(1999 * time.Millisecond)
	s.Empty(s.rec.Paths())
	s.clock.Add(time.Millisecond)
	s.Equal([]string{view.RouteHome}, s.rec.Paths())
}

func (s *GatewayTestSuite) TestUpdatePreservesOwnerAndDone() {
	created, err := s.gw.Create(s.ctx, owner, draft)
	s.Require().NoError(err)
	created.Done = true
	s.Require().NoError(s.store.Write(s.ctx, feed.TaskPath(created.ID), created.Record()))

	updated, err := s.gw.Update(s.ctx, owner, created, gateway.Draft{Name: "Read two books", Category: models.CategoryPersonal})
	s.Require().NoError(err)

	got := s.stored(created.ID)
	s.Equal(updated, got)
	s.Equal("Read two books", got.Name)
	s.Equal(models.CategoryPersonal, got.Category)
	s.Equal("", got.Deadline)
	s.Equal("u1", got.CreatedBy)
	s.True(got.Done)
	s.Contains(s.rec.Messages(), gateway.MsgUpdated)
}

func (s *GatewayTestSuite) TestUpdateByStranger() {
	created, err := s.gw.Create(s.ctx, owner, draft)
	s.Require().NoError(err)
	before := len(s.store.Calls())

	_, err = s.gw.Update(s.ctx, stranger, created, gateway.Draft{Name: "Mine now", Category: models.CategoryWork})
	s.ErrorIs(err, gateway.ErrUnauthorized)
	s.Len(s.store.Calls(), before)
	s.Equal(gateway.MsgEditForbidden, s.rec.Messages()[len(s.rec.Messages())-1])
	s.Equal(draft.Name, s.stored(created.ID).Name)
}

func (s *GatewayTestSuite) TestUpdateSignedOut() {
	created, err := s.gw.Create(s.ctx, owner, draft)
	s.Require().NoError(err)

	_, err = s.gw.Update(s.ctx, nil, created, draft)
	s.ErrorIs(err, gateway.ErrUnauthenticated)
}

func (s *GatewayTestSuite) TestDelete() {
	created, err := s.gw.Create(s.ctx, owner, draft)
	s.Require().NoError(err)

	s.ErrorIs(s.gw.Delete(stranger, created), gateway.ErrUnauthorized)
	s.ErrorIs(s.gw.Delete(nil, created), gateway.ErrUnauthorized)
	s.gw.Wait()
	s.NotContains(s.store.Calls(), "delete tasks/"+created.ID)

	s.Require().NoError(s.gw.Delete(owner, created))
	s.Equal(gateway.MsgDeleted, s.rec.Messages()[len(s.rec.Messages())-1])

	s.gw.Wait()
	_, err = feed.Lookup(s.ctx, s.store, created.ID)
	s.ErrorIs(err, feed.ErrTaskNotFound)
}

func (s *GatewayTestSuite) TestToggleTwiceRestores() {
	created, err := s.gw.Create(s.ctx, owner, draft)
	s.Require().NoError(err)

	s.Require().NoError(s.gw.ToggleDone(owner, created))
	s.gw.Wait()
	toggled := s.stored(created.ID)
	s.True(toggled.Done)

	s.Require().NoError(s.gw.ToggleDone(owner, toggled))
	s.gw.Wait()
	s.Equal(created, s.stored(created.ID))
}

func (s *GatewayTestSuite) TestToggleByStranger() {
	created, err := s.gw.Create(s.ctx, owner, draft)
	s.Require().NoError(err)
	before := len(s.store.Calls())

	s.ErrorIs(s.gw.ToggleDone(stranger, created), gateway.ErrUnauthorized)
	s.gw.Wait()
	s.Len(s.store.Calls(), before)
	s.Equal(gateway.MsgForbidden, s.rec.Messages()[len(s.rec.Messages())-1])
}

func (s *GatewayTestSuite) TestOpenEditor() {
	task := models.Task{ID: "t1", CreatedBy: "u1"}

	s.ErrorIs(s.gw.OpenEditor(stranger, task), gateway.ErrUnauthorized)
	s.Require().NoError(s.gw.OpenEditor(owner, task))

	s.Require().Len(s.rec.Routes, 1)
	s.Equal(view.Route{Path: view.RouteAdd, TaskID: "t1"}, s.rec.Routes[0])
}

func (s *GatewayTestSuite) TestOpenComposer() {
	s.Require().NoError(s.gw.OpenComposer(owner))
	s.Equal([]string{view.RouteAdd}, s.rec.Paths())
	s.Empty(s.rec.Notices)
}

func (s *GatewayTestSuite) TestOpenComposerSignedOut() {
	s.ErrorIs(s.gw.OpenComposer(nil), gateway.ErrUnauthenticated)

	s.Require().Len(s.rec.Notices, 1)
	s.Equal(view.Info, s.rec.Notices[0].Kind)
	s.Equal(gateway.MsgLoginFirst, s.rec.Notices[0].Message)
	s.False(s.rec.Notices[0].Blocking)

	s.clock.Add(time.Second)
	s.Empty(s.rec.Paths())
	s.clock.Add(time.Second)
	s.Equal([]string{view.RouteLogin}, s.rec.Paths())
	s.Empty(s.store.Calls())
}

func (s *GatewayTestSuite) TestCloseCancelsPendingNavigation() {
	_, err := s.gw.Create(s.ctx, owner, draft)
	s.Require().NoError(err)

	s.gw.Close()
	s.clock.Add(5 * time.Second)
	s.Empty(s.rec.Paths())
}

func TestGatewayTestSuite(t *testing.T) {
	suite.Run(t, new(GatewayTestSuite))
}

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) Write(ctx context.Context, path string, value interface{}) error {
	return m.Called(path).Error(0)
}

func (m *mockWriter) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	return m.Called(path, fields).Error(0)
}

func (m *mockWriter) Append(ctx context.Context, path string) (string, error) {
	args := m.Called(path)
	return args.String(0), args.Error(1)
}

func (m *mockWriter) Delete(ctx context.Context, path string) error {
	return m.Called(path).Error(0)
}

func TestCreate_RemoteWriteFailure(t *testing.T) {
	w := &mockWriter{}
	w.On("Append", "tasks").Return("tasks/k1", nil)
	w.On("Write", "tasks/k1").Return(store.ErrCircuitOpen)

	clk := clock.NewMock()
	rec := &view.Recorder{}
	gw := gateway.New(w, rec, view.NewRedirector(clk, rec, 2*time.Second), logger.Discard())
	defer gw.Close()

	_, err := gw.Create(context.Background(), owner, draft)
	if !errors.Is(err, gateway.ErrRemoteWrite) {
		t.Fatalf("expected ErrRemoteWrite, got %v", err)
	}
	if msgs := rec.Messages(); len(msgs) != 1 || msgs[0] != gateway.MsgCreateFailed {
		t.Errorf("unexpected notices %v", msgs)
	}

	clk.Add(5 * time.Second)
	if len(rec.Paths()) != 0 {
		t.Errorf("expected no navigation, got %v", rec.Paths())
	}
	w.AssertExpectations(t)
}

func TestUpdate_RemoteWriteFailure(t *testing.T) {
	w := &mockWriter{}
	w.On("Write", "tasks/k1").Return(errors.New("disk full"))

	rec := &view.Recorder{}
	gw := gateway.New(w, rec, view.NewRedirector(clock.NewMock(), rec, time.Second), logger.Discard())
	defer gw.Close()

	_, err := gw.Update(context.Background(), owner, models.Task{ID: "k1", CreatedBy: "u1"}, draft)
	if !errors.Is(err, gateway.ErrRemoteWrite) {
		t.Fatalf("expected ErrRemoteWrite, got %v", err)
	}
	if msgs := rec.Messages(); len(msgs) != 1 || msgs[0] != gateway.MsgUpdateFailed {
		t.Errorf("unexpected notices %v", msgs)
	}
}

func TestDelete_BackgroundFailureIsNotSurfaced(t *testing.T) {
	w := &mockWriter{}
	w.On("Delete", "tasks/k1").Return(errors.New("timeout"))

	rec := &view.Recorder{}
	gw := gateway.New(w, rec, view.NewRedirector(clock.NewMock(), rec, time.Second), logger.Discard())

	if err := gw.Delete(owner, models.Task{ID: "k1", CreatedBy: "u1"}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	gw.Close()

	if msgs := rec.Messages(); len(msgs) != 1 || msgs[0] != gateway.MsgDeleted {
		t.Errorf("unexpected notices %v", msgs)
	}
	w.AssertExpectations(t)
}

func TestOutcome(t *testing.T) {
	cases := map[error]string{
		nil:                          "ok",
		gateway.ErrUnauthenticated:   "unauthenticated",
		gateway.ErrValidation:        "validation",
		gateway.ErrUnauthorized:      "unauthorized",
		gateway.ErrRemoteWrite:       "remote_write",
		errors.New("something else"): "error",
	}
	for err, want := range cases {
		if got := gateway.Outcome(err); got != want {
			t.Errorf("Outcome(%v) = %q, want %q", err, got, want)
		}
	}
}
