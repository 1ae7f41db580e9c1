// Package session owns the lifecycle of one real-time client session:
// connect, join, send one probe message, observe the room, disconnect.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chat-probe/contract"
	"chat-probe/domain"
	"chat-probe/errors"
)

var _ contract.SessionRunner = (*Driver)(nil)

// Options are the shared knobs of every driver in a run.
type Options struct {
	WSURL          string
	ConnectTimeout time.Duration
	SettleDelay    time.Duration
	ObserveWindow  time.Duration
	// RunID tags outbound chat payloads so concurrent runs against a
	// shared server can be told apart.
	RunID string
}

// Driver runs one session as an explicit state machine:
// Idle → Connecting → Connected → Joining → Joined → Interacting →
// Disconnecting → Terminated. It owns its connection and its result,
// nothing is shared with other drivers except the read-only room.
type Driver struct {
	user  string
	token domain.Token
	room  domain.Room
	opts  Options
	log   *slog.Logger

	state domain.SessionState
}

func NewDriver(log *slog.Logger, opts Options, cred domain.Credential, token domain.Token, room domain.Room) *Driver {
	return &Driver{
		user:  cred.Name,
		token: token,
		room:  room,
		opts:  opts,
		log:   log,
		state: domain.StateIdle,
	}
}

// Run drives the session to a terminal state. It never returns early:
// every exit path produces a complete SessionResult, and any failure
// after connect still attempts a best-effort disconnect.
func (d *Driver) Run(ctx context.Context) domain.SessionResult {
	start := time.Now()
	result := domain.SessionResult{User: d.user}

	conn, err := d.connect(ctx)
	if err != nil {
		result.Err = err
		result.Cancelled = ctx.Err() != nil
		result.Duration = time.Since(start)
		d.state = domain.StateTerminated
		return result
	}
	result.Connected = true
	defer d.disconnect(conn)

	// Join is fire-and-forget: the service does not acknowledge it, so
	// a successful emit is the whole transition.
	d.state = domain.StateJoining
	if err := d.emit(conn, EventJoinRoom, d.room.ID); err != nil {
		result.Err = fmt.Errorf("%w: join emit: %v", errors.ErrTransportError, err)
		result.Duration = time.Since(start)
		d.state = domain.StateTerminated
		return result
	}
	result.JoinAcknowledged = true
	d.state = domain.StateJoined

	// Let the server-side join take effect before sending.
	select {
	case <-ctx.Done():
		result.Cancelled = true
		result.Duration = time.Since(start)
		d.state = domain.StateTerminated
		return result
	case <-time.After(d.opts.SettleDelay):
	}

	d.state = domain.StateInteracting
	payload := ChatPayload{
		RoomID:  d.room.ID,
		Message: fmt.Sprintf("Hello from %s! (run %s)", d.user, d.opts.RunID),
	}
	if err := d.emit(conn, EventChatMessage, payload); err != nil {
		result.Err = fmt.Errorf("%w: chat emit: %v", errors.ErrTransportError, err)
		result.Duration = time.Since(start)
		d.state = domain.StateTerminated
		return result
	}

	result.Messages, result.Cancelled, result.Err = d.observe(ctx, conn)
	result.Duration = time.Since(start)
	d.state = domain.StateTerminated
	return result
}

func (d *Driver) connect(ctx context.Context) (*websocket.Conn, error) {
	d.state = domain.StateConnecting

	dialer := websocket.Dialer{HandshakeTimeout: d.opts.ConnectTimeout}
	header := http.Header{"Authorization": {"Bearer " + string(d.token)}}

	dialCtx, cancel := context.WithTimeout(ctx, d.opts.ConnectTimeout)
	defer cancel()

	conn, res, err := dialer.DialContext(dialCtx, d.opts.WSURL, header)
	if err != nil {
		if res != nil {
			return nil, fmt.Errorf("%w: %s: status %d: %v", errors.ErrConnectFailure, d.user, res.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrConnectFailure, d.user, err)
	}
	d.state = domain.StateConnected
	d.log.Debug("Session connected", "user", d.user)
	return conn, nil
}

func (d *Driver) emit(conn *websocket.Conn, event string, data any) error {
	env, err := newEnvelope(event, data)
	if err != nil {
		return err
	}
	return conn.WriteJSON(env)
}

// observe passively collects inbound events until the window elapses.
// The window ends by elapsed time, never by message count: delivery
// count is not guaranteed and zero traffic is a valid outcome.
func (d *Driver) observe(ctx context.Context, conn *websocket.Conn) ([]domain.ReceivedMessage, bool, error) {
	deadline := time.Now().Add(d.opts.ObserveWindow)
	_ = conn.SetReadDeadline(deadline)

	// A blocked read does not see ctx: force it awake on cancellation.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()

	var messages []domain.ReceivedMessage
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return messages, true, nil
			}
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				// Window elapsed, the session is a success.
				return messages, false, nil
			}
			return messages, false, fmt.Errorf("%w: %s: %v", errors.ErrTransportError, d.user, err)
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			d.log.Debug("Skipping undecodable frame", "user", d.user, "error", err)
			continue
		}
		switch env.Event {
		case EventSystemMessage:
			messages = append(messages, domain.ReceivedMessage{Kind: domain.KindSystem, Payload: env.Data, ObservedAt: time.Now()})
		case EventChatMessage:
			messages = append(messages, domain.ReceivedMessage{Kind: domain.KindChat, Payload: env.Data, ObservedAt: time.Now()})
		default:
			d.log.Debug("Ignoring event", "user", d.user, "event", env.Event)
		}
	}
}

// disconnect closes the session cleanly when possible and always
// releases the underlying connection.
func (d *Driver) disconnect(conn *websocket.Conn) {
	d.state = domain.StateDisconnecting
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = conn.Close()
	d.state = domain.StateTerminated
}

// State reports the last state the driver reached.
func (d *Driver) State() domain.SessionState {
	return d.state
}
