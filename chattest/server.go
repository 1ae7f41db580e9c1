// Package chattest provides an in-process fake of the target chat
// service: REST register/login/rooms plus a websocket room with
// broadcast fan-out. It reproduces the service's observable contract
// so the harness can be tested hermetically.
package chattest

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/argon2"

	"chat-probe/domain"
	"chat-probe/session"
)

// Argon2id parameters, deliberately cheap: this is a test double, the
// hashing only has to be structurally faithful.
const (
	memory      = 8 * 1024
	iterations  = 1
	parallelism = 1
	saltLength  = 16
	keyLength   = 32
)

var jwtKey = []byte("chattest_signing_key")

type userRecord struct {
	salt []byte
	hash []byte
}

type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
	name string
}

func (c *client) send(env session.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteJSON(env)
}

// Server is the fake chat service. Zero rooms is a valid configuration,
// it exercises the harness's no-room abort path.
type Server struct {
	httpSrv *httptest.Server

	mu      sync.Mutex
	users   map[string]userRecord
	rooms   []domain.Room
	members map[string]map[*client]struct{}
}

func NewServer(rooms ...domain.Room) *Server {
	s := &Server{
		users:   make(map[string]userRecord),
		rooms:   rooms,
		members: make(map[string]map[*client]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("GET /rooms", s.handleRooms)
	mux.HandleFunc("GET /ws", s.handleWS)
	s.httpSrv = httptest.NewServer(mux)
	return s
}

func (s *Server) Close() {
	s.httpSrv.Close()
}

// URL is the REST base URL.
func (s *Server) URL() string {
	return s.httpSrv.URL
}

// WSURL is the websocket endpoint.
func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.httpSrv.URL, "http") + "/ws"
}

// IssueToken mints a valid token without going through login.
func (s *Server) IssueToken(name string) string {
	token, _ := s.signToken(name)
	return token
}

type credentialBody struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentialBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" || body.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[body.Name]; exists {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "User already exists"})
		return
	}

	salt := make([]byte, saltLength)
	_, _ = rand.Read(salt)
	s.users[body.Name] = userRecord{
		salt: salt,
		hash: argon2.IDKey([]byte(body.Password), salt, iterations, memory, parallelism, keyLength),
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "registered"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentialBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	s.mu.Lock()
	record, exists := s.users[body.Name]
	s.mu.Unlock()

	if !exists || !passwordMatches(body.Password, record) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	token, err := s.signToken(body.Name)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "token generation failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	if _, err := s.authenticate(r); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	s.mu.Lock()
	rooms := append([]domain.Room(nil), s.rooms...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	name, err := s.authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	cl := &client{conn: conn, name: name}
	defer s.drop(cl)

	for {
		var env session.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		switch env.Event {
		case session.EventJoinRoom:
			var roomID string
			if err := json.Unmarshal(env.Data, &roomID); err != nil {
				continue
			}
			s.join(roomID, cl)
			s.broadcast(roomID, session.EventSystemMessage, fmt.Sprintf("%s joined the room", name))
		case session.EventChatMessage:
			var payload session.ChatPayload
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				continue
			}
			s.broadcast(payload.RoomID, session.EventChatMessage, map[string]string{
				"sender": name,
				"text":   payload.Message,
			})
		}
	}
}

func (s *Server) join(roomID string, cl *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[roomID] == nil {
		s.members[roomID] = make(map[*client]struct{})
	}
	s.members[roomID][cl] = struct{}{}
}

func (s *Server) drop(cl *client) {
	s.mu.Lock()
	for _, room := range s.members {
		delete(room, cl)
	}
	s.mu.Unlock()
	_ = cl.conn.Close()
}

// broadcast fans an event out to every room member, sender included,
// matching the real service's io.to(room).emit semantics.
func (s *Server) broadcast(roomID, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	env := session.Envelope{Event: event, Data: raw}

	s.mu.Lock()
	receivers := make([]*client, 0, len(s.members[roomID]))
	for cl := range s.members[roomID] {
		receivers = append(receivers, cl)
	}
	s.mu.Unlock()

	for _, cl := range receivers {
		cl.send(env)
	}
}

func (s *Server) signToken(name string) (string, error) {
	claims := jwt.MapClaims{
		"name": name,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtKey)
}

func (s *Server) authenticate(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	tokenString, found := strings.CutPrefix(header, "Bearer ")
	if !found || tokenString == "" {
		return "", fmt.Errorf("missing bearer token")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return jwtKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims")
	}
	name, _ := claims["name"].(string)
	if name == "" {
		return "", fmt.Errorf("token without name claim")
	}
	return name, nil
}

func passwordMatches(password string, record userRecord) bool {
	hash := argon2.IDKey([]byte(password), record.salt, iterations, memory, parallelism, keyLength)
	return subtle.ConstantTimeCompare(hash, record.hash) == 1
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
