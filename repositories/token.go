package repositories

import (
	"sync"

	"chat-probe/domain"
)

type ITokenRepository interface {
	Put(user string, token domain.Token)
	Get(user string) (domain.Token, bool)
	Any() (domain.Token, bool)
	Len() int
}

// TokenRepository is the in-memory credential store of a run.
// The auth phase writes concurrently, the fan-out phase only reads.
type TokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]domain.Token
	order  []string
}

func NewTokenRepository() *TokenRepository {
	return &TokenRepository{tokens: make(map[string]domain.Token)}
}

func (r *TokenRepository) Put(user string, token domain.Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.tokens[user]; !seen {
		r.order = append(r.order, user)
	}
	r.tokens[user] = token
}

func (r *TokenRepository) Get(user string) (domain.Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	token, ok := r.tokens[user]
	return token, ok
}

// Any returns one issued token, used for the single room lookup.
// Insertion order keeps the pick deterministic under tests.
func (r *TokenRepository) Any() (domain.Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return "", false
	}
	return r.tokens[r.order[0]], true
}

func (r *TokenRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}
