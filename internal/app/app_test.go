package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"todola/backend/internal/app"
	"todola/backend/internal/auth"
	"todola/backend/internal/clock"
	"todola/backend/internal/gateway"
	"todola/backend/internal/logger"
	"todola/backend/internal/models"
	"todola/backend/internal/progress"
	"todola/backend/internal/session"
	"todola/backend/internal/store"
	"todola/backend/internal/testutil"
	"todola/backend/internal/view"
)

type chanSink struct {
	ch chan app.Event
}

func (s *chanSink) Send(e app.Event) { s.ch <- e }

type AppTestSuite struct {
	suite.Suite
	ctx   context.Context
	db    *gorm.DB
	store store.Store
	auth  *auth.Service
	clock *clock.Mock
	sink  *chanSink
	app   *app.App
}

func (s *AppTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = testutil.OpenDB(s.T())
	s.store = testutil.NewStore(s.T(), s.db)
	s.auth = testutil.NewAuthService(s.T(), s.db)
	s.clock = clock.NewMock()
	s.app, s.sink = s.newApp()
}

func (s *AppTestSuite) TearDownTest() {
	s.app.Close()
}

func (s *AppTestSuite) newApp() (*app.App, *chanSink) {
	sink := &chanSink{ch: make(chan app.Event, 1024)}
	a := app.New(app.Deps{
		Store:  s.store,
		Auth:   s.auth,
		Clock:  s.clock,
		Logger: logger.Discard(),
	}, app.Options{
		NavigationDelay: 2 * time.Second,
		Progress: progress.Timing{
			AnimationDuration:   time.Second,
			FrameInterval:       100 * time.Millisecond,
			CelebrationDuration: 5 * time.Second,
		},
	}, sink)
	return a, sink
}

func (s *AppTestSuite) waitOn(sink *chanSink, kind string, match func(app.Event) bool) app.Event {
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-sink.ch:
			if e.Type == kind && (match == nil || match(e)) {
				return e
			}
		case <-deadline:
			s.FailNowf("timed out", "waiting for %s event", kind)
			return app.Event{}
		}
	}
}

func (s *AppTestSuite) wait(kind string, match func(app.Event) bool) app.Event {
	return s.waitOn(s.sink, kind, match)
}

type expectation struct {
	kind  string
	match func(app.Event) bool
}

func expect(kind string, match func(app.Event) bool) expectation {
	return expectation{kind: kind, match: match}
}

// waitAll consumes events until every expectation has been met, in
// whatever order the events arrive.
func (s *AppTestSuite) waitAll(expected ...expectation) {
	deadline := time.After(2 * time.Second)
	for len(expected) > 0 {
		select {
		case e := <-s.sink.ch:
			for i, x := range expected {
				if e.Type == x.kind && (x.match == nil || x.match(e)) {
					expected = append(expected[:i], expected[i+1:]...)
					break
				}
			}
		case <-deadline:
			s.FailNowf("timed out", "still waiting for %d events, first %s", len(expected), expected[0].kind)
			return
		}
	}
}

func noticeIs(message string) func(app.Event) bool {
	return func(e app.Event) bool { return e.Data.(app.NoticeData).Message == message }
}

func feedLen(n int) func(app.Event) bool {
	return func(e app.Event) bool { return len(e.Data.([]models.Task)) == n }
}

func (s *AppTestSuite) signUp(email string) *models.Identity {
	s.Require().NoError(s.app.Handle(s.ctx, app.Command{Type: app.CmdSignUp, Email: email, Password: "secret1"}))
	e := s.wait(app.EventSession, func(e app.Event) bool { return e.Data.(app.SessionData).User != nil })
	return e.Data.(app.SessionData).User
}

func (s *AppTestSuite) TestStartSignedOut() {
	s.app.Start("")

	e := s.wait(app.EventSession, nil)
	s.Nil(e.Data.(app.SessionData).User)

	e = s.wait(app.EventFeed, nil)
	s.Empty(e.Data.([]models.Task))

	e = s.wait(app.EventProgress, nil)
	s.Equal(0, e.Data.(progress.Report).Percentage)
	s.Equal(progress.MsgKeepUp, e.Data.(progress.Report).Message)
}

func (s *AppTestSuite) TestSignUpRecordsAccountAndRedirects() {
	s.app.Start("")
	identity := s.signUp("ann@example.com")

	s.wait(app.EventNotice, noticeIs(session.MsgSignupOK))

	snap, err := s.store.Read(s.ctx, session.AccountPath(identity.UID))
	s.Require().NoError(err)
	s.True(snap.Exists)

	s.clock.Add(2 * time.Second)
	e := s.wait(app.EventNavigate, nil)
	s.Equal(view.RouteLogin, e.Data.(view.Route).Path)
}

func (s *AppTestSuite) TestSignInFailureShowsMessage() {
	s.app.Start("")
	s.Error(s.app.Handle(s.ctx, app.Command{Type: app.CmdSignIn, Email: "nobody@example.com", Password: "secret1"}))
	s.wait(app.EventNotice, noticeIs("invalid email or password"))
}

func (s *AppTestSuite) TestTaskLifecycle() {
	s.app.Start("")
	s.signUp("ann@example.com")

	s.Require().NoError(s.app.Handle(s.ctx, app.Command{Type: app.CmdCreate, Task: gateway.Draft{
		Name: "B", Deadline: "2024-03-01", Category: models.CategoryWork,
	}}))
	s.wait(app.EventNotice, noticeIs(gateway.MsgCreated))
	s.Require().NoError(s.app.Handle(s.ctx, app.Command{Type: app.CmdCreate, Task: gateway.Draft{
		Name: "A", Deadline: "2024-05-01", Category: models.CategoryStudy,
	}}))

	e := s.wait(app.EventFeed, feedLen(2))
	tasks := e.Data.([]models.Task)
	s.Equal("B", tasks[0].Name)
	s.Equal("A", tasks[1].Name)

	s.Require().NoError(s.app.Handle(s.ctx, app.Command{Type: app.CmdToggle, TaskID: tasks[1].ID}))
	s.wait(app.EventProgress, func(e app.Event) bool {
		r := e.Data.(progress.Report)
		return r.Completed == 1 && r.Total == 2 && r.Percentage == 50
	})

	s.Require().NoError(s.app.Handle(s.ctx, app.Command{Type: app.CmdToggle, TaskID: tasks[0].ID}))
	s.wait(app.EventProgress, func(e app.Event) bool {
		r := e.Data.(progress.Report)
		return r.Percentage == 100 && r.Message == progress.MsgAllDone
	})
	s.wait(app.EventCelebration, func(e app.Event) bool { return e.Data.(app.CelebrationData).Active })

	s.clock.Add(5 * time.Second)
	s.wait(app.EventCelebration, func(e app.Event) bool { return !e.Data.(app.CelebrationData).Active })

	s.Require().NoError(s.app.Handle(s.ctx, app.Command{Type: app.CmdDelete, TaskID: tasks[0].ID}))
	s.waitAll(
		expect(app.EventNotice, noticeIs(gateway.MsgDeleted)),
		expect(app.EventFeed, feedLen(1)),
	)
}

func (s *AppTestSuite) TestSignedOutCreateRedirectsAfterAck() {
	s.app.Start("")

	err := s.app.Handle(s.ctx, app.Command{Type: app.CmdCreate, Task: gateway.Draft{Name: "A", Category: models.CategoryWork}})
	s.ErrorIs(err, gateway.ErrUnauthenticated)

	e := s.wait(app.EventNotice, noticeIs(gateway.MsgLoginRequired))
	notice := e.Data.(app.NoticeData)
	s.True(notice.Blocking)

	snap, err := s.store.Read(s.ctx, "tasks")
	s.Require().NoError(err)
	s.Empty(snap.Children)

	s.Require().NoError(s.app.Handle(s.ctx, app.Command{Type: app.CmdAck, NoticeID: notice.ID}))
	nav := s.wait(app.EventNavigate, nil)
	s.Equal(view.RouteLogin, nav.Data.(view.Route).Path)
}

func (s *AppTestSuite) TestCannotTouchAnotherUsersTask() {
	s.Require().NoError(s.store.Write(s.ctx, "tasks/theirs", models.TaskRecord{
		Name: "Theirs", Category: models.CategoryWork, CreatedBy: "someone-else",
	}))

	s.app.Start("")
	s.signUp("ann@example.com")

	s.ErrorIs(s.app.Handle(s.ctx, app.Command{Type: app.CmdToggle, TaskID: "theirs"}), gateway.ErrUnauthorized)
	s.wait(app.EventNotice, noticeIs(gateway.MsgForbidden))

	s.ErrorIs(s.app.Handle(s.ctx, app.Command{Type: app.CmdUpdate, TaskID: "theirs", Task: gateway.Draft{
		Name: "Mine", Category: models.CategoryWork,
	}}), gateway.ErrUnauthorized)
	s.wait(app.EventNotice, noticeIs(gateway.MsgEditForbidden))

	s.Error(s.app.Handle(s.ctx, app.Command{Type: app.CmdDelete, TaskID: "missing"}))
	s.wait(app.EventError, func(e app.Event) bool { return e.Data.(app.ErrorData).Code == "not_found" })
}

func (s *AppTestSuite) TestEditNavigatesWithTask() {
	s.app.Start("")
	s.signUp("ann@example.com")
	s.Require().NoError(s.app.Handle(s.ctx, app.Command{Type: app.CmdCreate, Task: gateway.Draft{Name: "A", Category: models.CategoryWork}}))
	tasks := s.wait(app.EventFeed, feedLen(1)).Data.([]models.Task)

	s.Require().NoError(s.app.Handle(s.ctx, app.Command{Type: app.CmdEdit, TaskID: tasks[0].ID}))
	e := s.wait(app.EventNavigate, func(e app.Event) bool { return e.Data.(view.Route).Path == view.RouteAdd })
	s.Equal(tasks[0].ID, e.Data.(view.Route).TaskID)
}

func (s *AppTestSuite) TestSignOutClearsFeed() {
	s.app.Start("")
	s.signUp("ann@example.com")
	s.Require().NoError(s.app.Handle(s.ctx, app.Command{Type: app.CmdCreate, Task: gateway.Draft{Name: "A", Category: models.CategoryWork}}))
	s.wait(app.EventFeed, feedLen(1))

	s.Require().NoError(s.app.Handle(s.ctx, app.Command{Type: app.CmdSignOut}))
	s.waitAll(
		expect(app.EventSession, func(e app.Event) bool { return e.Data.(app.SessionData).User == nil }),
		expect(app.EventFeed, feedLen(0)),
		expect(app.EventNotice, noticeIs(session.MsgLogoutOK)),
	)
	s.Nil(s.app.Identity())
}

func (s *AppTestSuite) TestAddOpensEmptyForm() {
	s.app.Start("")
	s.signUp("ann@example.com")

	s.Require().NoError(s.app.Handle(s.ctx, app.Command{Type: app.CmdAdd}))
	e := s.wait(app.EventNavigate, func(e app.Event) bool { return e.Data.(view.Route).Path == view.RouteAdd })
	s.Empty(e.Data.(view.Route).TaskID)
}

func (s *AppTestSuite) TestAddSignedOutRedirectsToLogin() {
	s.app.Start("")
	s.wait(app.EventSession, nil)

	s.ErrorIs(s.app.Handle(s.ctx, app.Command{Type: app.CmdAdd}), gateway.ErrUnauthenticated)
	e := s.wait(app.EventNotice, noticeIs(gateway.MsgLoginFirst))
	s.Equal(view.Info, e.Data.(app.NoticeData).Kind)
	s.False(e.Data.(app.NoticeData).Blocking)

	s.clock.Add(2 * time.Second)
	nav := s.wait(app.EventNavigate, nil)
	s.Equal(view.RouteLogin, nav.Data.(view.Route).Path)
}

func (s *AppTestSuite) TestResumeFromToken() {
	granted, err := s.auth.SignUp(s.ctx, "ann@example.com", "secret1")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Write(s.ctx, "tasks/t1", models.TaskRecord{Name: "A", CreatedBy: granted.Identity.UID}))

	s.app.Start(granted.Token)
	e := s.wait(app.EventSession, nil)
	s.Equal(granted.Identity.UID, e.Data.(app.SessionData).User.UID)
	s.wait(app.EventFeed, feedLen(1))

	other, otherSink := s.newApp()
	defer other.Close()
	other.Start("bogus")
	s.waitOn(otherSink, app.EventError, func(e app.Event) bool { return e.Data.(app.ErrorData).Code == auth.CodeInvalidToken })
	e = s.waitOn(otherSink, app.EventSession, nil)
	s.Nil(e.Data.(app.SessionData).User)
}

func (s *AppTestSuite) TestUnknownCommand() {
	s.app.Start("")
	s.ErrorIs(s.app.Handle(s.ctx, app.Command{Type: "explode"}), app.ErrUnknownCommand)
	s.wait(app.EventError, func(e app.Event) bool { return e.Data.(app.ErrorData).Code == "unknown_command" })
}

func (s *AppTestSuite) TestCloseStopsEvents() {
	s.app.Start("")
	s.signUp("ann@example.com")
	s.app.Close()

	for len(s.sink.ch) > 0 {
		<-s.sink.ch
	}
	s.Require().NoError(s.store.Write(s.ctx, "tasks/t1", models.TaskRecord{Name: "A"}))
	s.clock.Add(10 * time.Second)

	select {
	case e := <-s.sink.ch:
		s.Failf("event after Close", "%+v", e)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAppTestSuite(t *testing.T) {
	suite.Run(t, new(AppTestSuite))
}
