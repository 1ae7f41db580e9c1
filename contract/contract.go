//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-probe/domain"
	"context"
)

// RegisterOutcome is the non-error result of a registration attempt.
type RegisterOutcome int

const (
	RegisterAccepted RegisterOutcome = iota
	// RegisterAlreadyExists is non-fatal: the login is still attempted.
	RegisterAlreadyExists
)

// Authenticator is the REST auth boundary consumed by the coordinator.
type Authenticator interface {
	Register(ctx context.Context, cred domain.Credential) (RegisterOutcome, error)
	Login(ctx context.Context, cred domain.Credential) (domain.Token, error)
}

// RoomLister queries the REST boundary for joinable rooms.
type RoomLister interface {
	ListRooms(ctx context.Context, token domain.Token) ([]domain.Room, error)
}

// SessionRunner drives one real-time session to a terminal state.
// Run never panics the run: every failure ends up in the result.
type SessionRunner interface {
	Run(ctx context.Context) domain.SessionResult
}

// SessionFactory builds the runner for one authenticated user.
type SessionFactory func(cred domain.Credential, token domain.Token, room domain.Room) SessionRunner

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}
