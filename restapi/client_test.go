package restapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"chat-probe/chattest"
	"chat-probe/contract"
	"chat-probe/domain"
	"chat-probe/errors"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return NewClient(baseURL, 2*time.Second, log)
}

func TestClient_RegisterThenLogin(t *testing.T) {
	req := require.New(t)
	srv := chattest.NewServer()
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv.URL())
	cred := domain.Credential{Name: "user1", Password: "pass1"}

	outcome, err := client.Register(context.Background(), cred)
	req.NoError(err)
	req.Equal(contract.RegisterAccepted, outcome)

	token, err := client.Login(context.Background(), cred)
	req.NoError(err)
	req.NotEmpty(token)
}

func TestClient_RegisterTwiceIsIdempotent(t *testing.T) {
	req := require.New(t)
	srv := chattest.NewServer()
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv.URL())
	cred := domain.Credential{Name: "user1", Password: "pass1"}

	outcome, err := client.Register(context.Background(), cred)
	req.NoError(err)
	req.Equal(contract.RegisterAccepted, outcome)

	// Second registration reports the conflict, login still succeeds.
	outcome, err = client.Register(context.Background(), cred)
	req.NoError(err)
	req.Equal(contract.RegisterAlreadyExists, outcome)

	_, err = client.Login(context.Background(), cred)
	req.NoError(err)
}

func TestClient_LoginWithWrongPasswordFails(t *testing.T) {
	req := require.New(t)
	srv := chattest.NewServer()
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv.URL())
	_, err := client.Register(context.Background(), domain.Credential{Name: "user1", Password: "pass1"})
	req.NoError(err)

	_, err = client.Login(context.Background(), domain.Credential{Name: "user1", Password: "wrong"})
	req.ErrorIs(err, errors.ErrAuthFailure)
}

func TestClient_RegisterRejectedByValidation(t *testing.T) {
	req := require.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"name too short"}`, http.StatusUnprocessableEntity)
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv.URL)
	_, err := client.Register(context.Background(), domain.Credential{Name: "u", Password: "p"})
	req.ErrorIs(err, errors.ErrRegistrationRejected)
}

func TestClient_ListRooms(t *testing.T) {
	req := require.New(t)
	srv := chattest.NewServer(
		domain.Room{ID: "r1", Name: "general"},
		domain.Room{ID: "r2", Name: "random"},
	)
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv.URL())
	rooms, err := client.ListRooms(context.Background(), domain.Token(srv.IssueToken("user1")))
	req.NoError(err)
	req.Len(rooms, 2)
	req.Equal("r1", rooms[0].ID)
}

func TestClient_ListRoomsRejectsBadToken(t *testing.T) {
	req := require.New(t)
	srv := chattest.NewServer(domain.Room{ID: "r1", Name: "general"})
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv.URL())
	_, err := client.ListRooms(context.Background(), "not-a-token")
	req.Error(err)
}
