package monitor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"repost_monitor/internal/domain"
	"repost_monitor/internal/monitor/mocks"
)

type SessionTestSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	platform *mocks.MockPlatform
	logger   *slog.Logger
}

func (s *SessionTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.platform = mocks.NewMockPlatform(s.ctrl)
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func (s *SessionTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestSessionTestSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}

func (s *SessionTestSuite) newManager(creds Credentials, cfg SessionConfig) *SessionManager {
	return NewSessionManager(s.platform, creds, cfg, s.logger)
}

func (s *SessionTestSuite) TestAuthenticate_Primary() {
	ctx := context.Background()

	s.platform.EXPECT().Authenticate(ctx, "operator", "secret").Return(domain.AuthOK, nil)

	m := s.newManager(Credentials{Username: "operator", Password: "secret"}, SessionConfig{})

	s.Require().NoError(m.Authenticate(ctx))
	s.Equal(SessionLoggedIn, m.State())
}

func (s *SessionTestSuite) TestAuthenticate_SecondaryIdentifierFallback() {
	ctx := context.Background()

	gomock.InOrder(
		s.platform.EXPECT().
			Authenticate(ctx, "operator", "secret").
			Return(domain.AuthOutcome(""), errors.New("unusual activity, identifier rejected")),
		s.platform.EXPECT().
			Authenticate(ctx, "+15550100", "secret").
			Return(domain.AuthOK, nil),
	)

	m := s.newManager(Credentials{Username: "operator", Password: "secret", Phone: "+15550100"}, SessionConfig{})

	s.Require().NoError(m.Authenticate(ctx))
	s.Equal(SessionLoggedIn, m.State())
}

func (s *SessionTestSuite) TestAuthenticate_NoSecondaryConfigured() {
	ctx := context.Background()

	s.platform.EXPECT().
		Authenticate(ctx, "operator", "secret").
		Return(domain.AuthOutcome(""), errors.New("identifier rejected"))

	m := s.newManager(Credentials{Username: "operator", Password: "secret"}, SessionConfig{})

	err := m.Authenticate(ctx)
	s.Require().Error(err)
	s.Contains(err.Error(), "primary login")
	s.Equal(SessionLoggedOut, m.State())
}

func (s *SessionTestSuite) TestAuthenticate_StepUpClears() {
	ctx := context.Background()

	s.platform.EXPECT().Authenticate(ctx, "operator", "secret").Return(domain.AuthNeedsStepUp, nil)
	gomock.InOrder(
		s.platform.EXPECT().StepUpCleared(ctx).Return(false, nil),
		s.platform.EXPECT().StepUpCleared(ctx).Return(true, nil),
	)

	m := s.newManager(
		Credentials{Username: "operator", Password: "secret"},
		SessionConfig{StepUpPollInterval: time.Millisecond, MaxStepUpWait: time.Second},
	)

	s.Require().NoError(m.Authenticate(ctx))
	s.Equal(SessionLoggedIn, m.State())
}

func (s *SessionTestSuite) TestAuthenticate_StepUpTimesOut() {
	ctx := context.Background()

	s.platform.EXPECT().Authenticate(ctx, "operator", "secret").Return(domain.AuthNeedsStepUp, nil)
	s.platform.EXPECT().StepUpCleared(ctx).Return(false, nil).AnyTimes()

	m := s.newManager(
		Credentials{Username: "operator", Password: "secret"},
		SessionConfig{StepUpPollInterval: time.Millisecond, MaxStepUpWait: 5 * time.Millisecond},
	)

	err := m.Authenticate(ctx)
	s.Require().ErrorIs(err, ErrAuthTimeout)
	s.Equal(SessionLoggedOut, m.State())
}

func (s *SessionTestSuite) TestAuthenticate_StepUpCancelled() {
	ctx, cancel := context.WithCancel(context.Background())

	s.platform.EXPECT().Authenticate(ctx, "operator", "secret").Return(domain.AuthNeedsStepUp, nil)
	s.platform.EXPECT().
		StepUpCleared(ctx).
		DoAndReturn(func(context.Context) (bool, error) {
			cancel()
			return false, nil
		}).
		AnyTimes()

	m := s.newManager(
		Credentials{Username: "operator", Password: "secret"},
		SessionConfig{StepUpPollInterval: 50 * time.Millisecond, MaxStepUpWait: time.Minute},
	)

	err := m.Authenticate(ctx)
	s.Require().ErrorIs(err, context.Canceled)
	s.Equal(SessionLoggedOut, m.State())
}

func (s *SessionTestSuite) TestLogout_BestEffort() {
	ctx := context.Background()

	s.platform.EXPECT().Logout(ctx).Return(errors.New("connection already gone"))

	m := s.newManager(Credentials{Username: "operator", Password: "secret"}, SessionConfig{})

	m.Logout(ctx)
	s.Equal(SessionLoggedOut, m.State())
}

func (s *SessionTestSuite) TestReset_LogoutThenFreshLogin() {
	ctx := context.Background()

	gomock.InOrder(
		s.platform.EXPECT().Logout(ctx).Return(nil),
		s.platform.EXPECT().Authenticate(ctx, "operator", "secret").Return(domain.AuthOK, nil),
	)

	m := s.newManager(Credentials{Username: "operator", Password: "secret"}, SessionConfig{})

	s.Require().NoError(m.Reset(ctx))
	s.Equal(SessionLoggedIn, m.State())
}
