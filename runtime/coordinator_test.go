package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-probe/contract"
	"chat-probe/domain"
	"chat-probe/errors"
	"chat-probe/mocks"
	"chat-probe/observability"
	"chat-probe/repositories"
)

// runnerFunc lets tests stub a session without a real connection.
type runnerFunc func(ctx context.Context) domain.SessionResult

func (f runnerFunc) Run(ctx context.Context) domain.SessionResult { return f(ctx) }

func newTestCoordinator(t *testing.T, auth contract.Authenticator, rooms contract.RoomLister, factory contract.SessionFactory) *Coordinator {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return NewCoordinator(log, auth, rooms, repositories.NewTokenRepository(), factory, observability.NewMonitor())
}

func successFactory() contract.SessionFactory {
	return func(cred domain.Credential, token domain.Token, room domain.Room) contract.SessionRunner {
		return runnerFunc(func(ctx context.Context) domain.SessionResult {
			return domain.SessionResult{User: cred.Name, Connected: true, JoinAcknowledged: true}
		})
	}
}

func TestCoordinator_OneResultPerUserNoDuplicates(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	users := domain.Fixtures(5)
	auth := mocks.NewMockAuthenticator(ctrl)
	rooms := mocks.NewMockRoomLister(ctrl)

	auth.EXPECT().Register(gomock.Any(), gomock.Any()).Return(contract.RegisterAccepted, nil).Times(5)
	auth.EXPECT().Login(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cred domain.Credential) (domain.Token, error) {
			return domain.Token("token-" + cred.Name), nil
		}).Times(5)
	rooms.EXPECT().ListRooms(gomock.Any(), gomock.Any()).
		Return([]domain.Room{{ID: "r1", Name: "general"}}, nil).Times(1)

	coordinator := newTestCoordinator(t, auth, rooms, successFactory())
	results, room, err := coordinator.Run(context.Background(), users)

	req.NoError(err)
	req.Equal("r1", room.ID)
	req.Len(results, len(users))

	names := lo.Map(results, func(r domain.SessionResult, _ int) string { return r.User })
	req.ElementsMatch(names, lo.Map(users, func(u domain.Credential, _ int) string { return u.Name }))
}

func TestCoordinator_LoginFailureIsIsolated(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	users := domain.Fixtures(3)
	auth := mocks.NewMockAuthenticator(ctrl)
	rooms := mocks.NewMockRoomLister(ctrl)

	auth.EXPECT().Register(gomock.Any(), gomock.Any()).Return(contract.RegisterAccepted, nil).Times(3)
	auth.EXPECT().Login(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cred domain.Credential) (domain.Token, error) {
			if cred.Name == "user2" {
				return "", errors.ErrAuthFailure
			}
			return domain.Token("token-" + cred.Name), nil
		}).Times(3)
	rooms.EXPECT().ListRooms(gomock.Any(), gomock.Any()).
		Return([]domain.Room{{ID: "r1", Name: "general"}}, nil).Times(1)

	var mu sync.Mutex
	started := make(map[string]bool)
	factory := func(cred domain.Credential, token domain.Token, room domain.Room) contract.SessionRunner {
		mu.Lock()
		started[cred.Name] = true
		mu.Unlock()
		return runnerFunc(func(ctx context.Context) domain.SessionResult {
			return domain.SessionResult{User: cred.Name, Connected: true}
		})
	}

	coordinator := newTestCoordinator(t, auth, rooms, factory)
	results, _, err := coordinator.Run(context.Background(), users)
	req.NoError(err)
	req.Len(results, 3)

	// The failed user never reaches Connecting.
	req.False(started["user2"])
	req.True(started["user1"])
	req.True(started["user3"])

	failed, found := lo.Find(results, func(r domain.SessionResult) bool { return r.User == "user2" })
	req.True(found)
	req.ErrorIs(failed.Err, errors.ErrAuthFailure)
	req.False(failed.Connected)
}

func TestCoordinator_PlainLoginErrorClassifiesAsAuthFailure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	users := domain.Fixtures(2)
	auth := mocks.NewMockAuthenticator(ctrl)
	rooms := mocks.NewMockRoomLister(ctrl)

	auth.EXPECT().Register(gomock.Any(), gomock.Any()).Return(contract.RegisterAccepted, nil).Times(2)
	// An Authenticator that does not wrap its own sentinel: the
	// coordinator still reports the exclusion as an auth failure.
	auth.EXPECT().Login(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cred domain.Credential) (domain.Token, error) {
			if cred.Name == "user2" {
				return "", fmt.Errorf("connection reset by peer")
			}
			return domain.Token("token-" + cred.Name), nil
		}).Times(2)
	rooms.EXPECT().ListRooms(gomock.Any(), gomock.Any()).
		Return([]domain.Room{{ID: "r1", Name: "general"}}, nil).Times(1)

	coordinator := newTestCoordinator(t, auth, rooms, successFactory())
	results, _, err := coordinator.Run(context.Background(), users)
	req.NoError(err)

	failed, found := lo.Find(results, func(r domain.SessionResult) bool { return r.User == "user2" })
	req.True(found)
	req.ErrorIs(failed.Err, errors.ErrAuthFailure)
	req.Contains(failed.Err.Error(), "connection reset by peer")
}

func TestCoordinator_RegistrationConflictIsNonFatal(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	users := domain.Fixtures(1)
	auth := mocks.NewMockAuthenticator(ctrl)
	rooms := mocks.NewMockRoomLister(ctrl)

	auth.EXPECT().Register(gomock.Any(), gomock.Any()).Return(contract.RegisterAlreadyExists, nil).Times(1)
	auth.EXPECT().Login(gomock.Any(), gomock.Any()).Return(domain.Token("token-user1"), nil).Times(1)
	rooms.EXPECT().ListRooms(gomock.Any(), gomock.Any()).
		Return([]domain.Room{{ID: "r1", Name: "general"}}, nil).Times(1)

	coordinator := newTestCoordinator(t, auth, rooms, successFactory())
	results, _, err := coordinator.Run(context.Background(), users)

	req.NoError(err)
	req.Len(results, 1)
	req.NoError(results[0].Err)
}

func TestCoordinator_EmptyRoomListAbortsBeforeFanOut(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	users := domain.Fixtures(2)
	auth := mocks.NewMockAuthenticator(ctrl)
	rooms := mocks.NewMockRoomLister(ctrl)

	auth.EXPECT().Register(gomock.Any(), gomock.Any()).Return(contract.RegisterAccepted, nil).Times(2)
	auth.EXPECT().Login(gomock.Any(), gomock.Any()).Return(domain.Token("token"), nil).Times(2)
	rooms.EXPECT().ListRooms(gomock.Any(), gomock.Any()).Return(nil, nil).Times(1)

	factory := func(cred domain.Credential, token domain.Token, room domain.Room) contract.SessionRunner {
		t.Fatal("no session must start when there is no room")
		return nil
	}

	coordinator := newTestCoordinator(t, auth, rooms, factory)
	_, _, err := coordinator.Run(context.Background(), users)
	req.ErrorIs(err, errors.ErrNoRoomAvailable)
}

func TestCoordinator_SessionsRunConcurrently(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	const users = 100
	const sessionDuration = 100 * time.Millisecond

	auth := mocks.NewMockAuthenticator(ctrl)
	rooms := mocks.NewMockRoomLister(ctrl)
	auth.EXPECT().Register(gomock.Any(), gomock.Any()).Return(contract.RegisterAccepted, nil).Times(users)
	auth.EXPECT().Login(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cred domain.Credential) (domain.Token, error) {
			return domain.Token("token-" + cred.Name), nil
		}).Times(users)
	rooms.EXPECT().ListRooms(gomock.Any(), gomock.Any()).
		Return([]domain.Room{{ID: "r1", Name: "general"}}, nil).Times(1)

	factory := func(cred domain.Credential, token domain.Token, room domain.Room) contract.SessionRunner {
		return runnerFunc(func(ctx context.Context) domain.SessionResult {
			time.Sleep(sessionDuration)
			return domain.SessionResult{User: cred.Name, Connected: true}
		})
	}

	coordinator := newTestCoordinator(t, auth, rooms, factory)
	start := time.Now()
	results, _, err := coordinator.Run(context.Background(), domain.Fixtures(users))
	elapsed := time.Since(start)

	req.NoError(err)
	req.Len(results, users)
	// 100 serialized sessions would take 10s; overlapping ones stay
	// close to a single session's duration.
	req.Less(elapsed, 10*sessionDuration)
}

func TestCoordinator_NoAuthenticatedUserSkipsFanOut(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	users := domain.Fixtures(2)
	auth := mocks.NewMockAuthenticator(ctrl)
	rooms := mocks.NewMockRoomLister(ctrl)

	auth.EXPECT().Register(gomock.Any(), gomock.Any()).Return(contract.RegisterAccepted, nil).Times(2)
	auth.EXPECT().Login(gomock.Any(), gomock.Any()).Return(domain.Token(""), errors.ErrAuthFailure).Times(2)
	// ListRooms must never be called without an issued token.

	coordinator := newTestCoordinator(t, auth, rooms, successFactory())
	results, _, err := coordinator.Run(context.Background(), users)

	req.NoError(err)
	req.Len(results, 2)
	for _, res := range results {
		req.ErrorIs(res.Err, errors.ErrAuthFailure)
		req.False(res.Connected)
	}
}
