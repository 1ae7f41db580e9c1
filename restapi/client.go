// Package restapi consumes the chat service's REST boundary:
// registration, login and room discovery.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"chat-probe/contract"
	"chat-probe/domain"
	"chat-probe/errors"
)

// Client talks to the REST endpoints of the target service.
// It implements contract.Authenticator and contract.RoomLister.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type credentialBody struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type roomsResponse struct {
	Rooms []domain.Room `json:"rooms"`
}

// Register creates the user on the target service. An already existing
// user is a normal outcome on repeated runs, never a reason to stop.
func (c *Client) Register(ctx context.Context, cred domain.Credential) (contract.RegisterOutcome, error) {
	status, body, err := c.postJSON(ctx, "/auth/register", credentialBody{Name: cred.Name, Password: cred.Password})
	if err != nil {
		return 0, fmt.Errorf("register %s: %w", cred.Name, err)
	}

	switch {
	case status >= 200 && status < 300:
		return contract.RegisterAccepted, nil
	case status == http.StatusConflict,
		strings.Contains(strings.ToLower(string(body)), "exist"):
		return contract.RegisterAlreadyExists, nil
	}
	return 0, fmt.Errorf("%w: %s status %d: %s", errors.ErrRegistrationRejected, cred.Name, status, snippet(body))
}

// Login exchanges the credential for a token. A non-200 is fatal to
// this user only.
func (c *Client) Login(ctx context.Context, cred domain.Credential) (domain.Token, error) {
	status, body, err := c.postJSON(ctx, "/auth/login", credentialBody{Name: cred.Name, Password: cred.Password})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", errors.ErrAuthFailure, cred.Name, err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%w: %s status %d: %s", errors.ErrAuthFailure, cred.Name, status, snippet(body))
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %s: decoding login body: %v", errors.ErrAuthFailure, cred.Name, err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("%w: %s: empty token", errors.ErrAuthFailure, cred.Name)
	}
	return domain.Token(resp.Token), nil
}

// ListRooms returns the joinable rooms in service order.
func (c *Client) ListRooms(ctx context.Context, token domain.Token) ([]domain.Room, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rooms", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+string(token))

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing rooms: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading rooms body: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing rooms: status %d: %s", res.StatusCode, snippet(body))
	}

	var resp roomsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding rooms body: %w", err)
	}
	c.log.Debug("Rooms discovered", "count", len(resp.Rooms))
	return resp.Rooms, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, nil, err
	}
	return res.StatusCode, body, nil
}

// snippet truncates a response body for error messages.
func snippet(body []byte) string {
	const max = 120
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
