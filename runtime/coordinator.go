// Package runtime orchestrates a run: auth fan-out, room resolution,
// concurrent session fan-out and result aggregation. It contains no
// protocol logic, only coordination.
package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"chat-probe/contract"
	"chat-probe/domain"
	"chat-probe/errors"
	"chat-probe/observability"
	"chat-probe/repositories"
)

// Coordinator fans out one session driver per authenticated user and
// is the single synchronization point of a run: it joins on every
// spawned session before aggregating.
type Coordinator struct {
	log     *slog.Logger
	auth    contract.Authenticator
	rooms   contract.RoomLister
	tokens  repositories.ITokenRepository
	factory contract.SessionFactory
	monitor *observability.Monitor
}

func NewCoordinator(
	log *slog.Logger,
	auth contract.Authenticator,
	rooms contract.RoomLister,
	tokens repositories.ITokenRepository,
	factory contract.SessionFactory,
	monitor *observability.Monitor,
) *Coordinator {
	return &Coordinator{
		log:     log,
		auth:    auth,
		rooms:   rooms,
		tokens:  tokens,
		factory: factory,
		monitor: monitor,
	}
}

type authenticated struct {
	cred  domain.Credential
	token domain.Token
}

// Run executes the full scenario and returns exactly one result per
// input user. Phases are strict: every register+login completes before
// the single room lookup, and only then do sessions start. Only
// ErrNoRoomAvailable (or a failed room listing) aborts the run.
func (c *Coordinator) Run(ctx context.Context, users []domain.Credential) ([]domain.SessionResult, domain.Room, error) {
	results := make([]domain.SessionResult, 0, len(users))

	authed := c.authenticate(ctx, users, &results)
	if len(authed) == 0 {
		// Nothing logged in: no token to list rooms with, no sessions
		// to start. The threshold check upstream will flag the run.
		c.log.Warn("No user authenticated, skipping room resolution and fan-out")
		return results, domain.Room{}, nil
	}

	room, err := c.resolveRoom(ctx)
	if err != nil {
		return results, domain.Room{}, err
	}
	c.log.Info("Target room selected", "id", room.ID, "name", room.Name)

	c.fanOut(ctx, authed, room, &results)
	return results, room, nil
}

// authenticate registers and logs in every user concurrently. Failures
// are isolated: a rejected registration or failed login never stops
// the other users. Login failures are recorded as terminal results.
func (c *Coordinator) authenticate(ctx context.Context, users []domain.Credential, results *[]domain.SessionResult) []authenticated {
	outcomes := make(chan domain.SessionResult, len(users))
	var wg sync.WaitGroup

	for _, user := range users {
		wg.Add(1)
		go func(cred domain.Credential) {
			defer wg.Done()

			switch outcome, err := c.auth.Register(ctx, cred); {
			case err != nil:
				// Non-fatal: the login below decides this user's fate.
				c.log.Warn("Registration rejected", "user", cred.Name, "error", err)
			case outcome == contract.RegisterAlreadyExists:
				c.log.Debug("User already registered", "user", cred.Name)
			}

			token, err := c.auth.Login(ctx, cred)
			if err != nil {
				// Classify here, not in the Authenticator: any login
				// error excludes the user, whatever the implementation
				// wrapped it in.
				if !stderrors.Is(err, errors.ErrAuthFailure) {
					err = fmt.Errorf("%w: %s: %v", errors.ErrAuthFailure, cred.Name, err)
				}
				c.log.Warn("Login failed, user excluded from fan-out", "user", cred.Name, "error", err)
				outcomes <- domain.SessionResult{User: cred.Name, Err: err}
				return
			}
			c.tokens.Put(cred.Name, token)
			outcomes <- domain.SessionResult{User: cred.Name}
		}(user)
	}
	wg.Wait()
	close(outcomes)

	failed := make(map[string]domain.SessionResult)
	for outcome := range outcomes {
		if outcome.Err != nil {
			failed[outcome.User] = outcome
		}
	}

	// Input order is kept for the excluded users' results; the session
	// results themselves arrive in completion order later.
	var authed []authenticated
	for _, user := range users {
		if res, ok := failed[user.Name]; ok {
			*results = append(*results, res)
			continue
		}
		token, ok := c.tokens.Get(user.Name)
		if !ok {
			*results = append(*results, domain.SessionResult{
				User: user.Name,
				Err:  fmt.Errorf("%w: %s: token missing after login", errors.ErrAuthFailure, user.Name),
			})
			continue
		}
		authed = append(authed, authenticated{cred: user, token: token})
	}
	return authed
}

// resolveRoom queries the room list exactly once, with any one issued token.
func (c *Coordinator) resolveRoom(ctx context.Context) (domain.Room, error) {
	token, ok := c.tokens.Any()
	if !ok {
		return domain.Room{}, errors.ErrNoRoomAvailable
	}
	rooms, err := c.rooms.ListRooms(ctx, token)
	if err != nil {
		return domain.Room{}, fmt.Errorf("resolving target room: %w", err)
	}
	return domain.SelectTarget(rooms)
}

// fanOut starts every session concurrently and blocks until all of
// them reach a terminal state. Sessions share nothing mutable, each
// result has a single writer until it lands on the channel.
func (c *Coordinator) fanOut(ctx context.Context, authed []authenticated, room domain.Room, results *[]domain.SessionResult) {
	resChan := make(chan domain.SessionResult, len(authed))
	var wg sync.WaitGroup

	c.log.Info("Starting session fan-out", "sessions", len(authed))
	for _, a := range authed {
		wg.Add(1)
		runner := c.factory(a.cred, a.token, room)
		go func(runner contract.SessionRunner) {
			defer wg.Done()
			c.monitor.SessionStarted()
			res := runner.Run(ctx)
			c.monitor.SessionFinished(res.Failed(), len(res.Messages))
			resChan <- res
		}(runner)
	}

	go func() {
		wg.Wait()
		close(resChan)
	}()

	for res := range resChan {
		*results = append(*results, res)
	}
}
