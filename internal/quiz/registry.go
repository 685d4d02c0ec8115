package quiz

import (
	"math/rand"
	"sync"

	"github.com/rs/zerolog"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

// Registry owns every live session, keyed by session code. It is created
// at process start and passed explicitly so tests can run independent
// registries in parallel.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   zerolog.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Create allocates a fresh session in WAITING stage under a unique code.
func (r *Registry) Create() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	code := r.generateCode()
	sess := &Session{
		Code:         code,
		stage:        StageWaiting,
		current:      -1,
		participants: make(map[string]*Participant),
	}
	r.sessions[code] = sess

	r.logger.Info().Str("session_code", code).Msg("session created")
	return sess
}

// Get retrieves a session by code.
func (r *Registry) Get(code string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[code]
	return sess, ok
}

// Delete removes a session unconditionally. Deleting an unknown code is a
// no-op.
func (r *Registry) Delete(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[code]; ok {
		delete(r.sessions, code)
		r.logger.Info().Str("session_code", code).Msg("session deleted")
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// generateCode picks a 6-character uppercase alphanumeric code, retrying
// on collision with a live session. Caller must hold the write lock.
func (r *Registry) generateCode() string {
	buf := make([]byte, codeLength)
	for {
		for i := range buf {
			buf[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
		}
		code := string(buf)
		if _, exists := r.sessions[code]; !exists {
			return code
		}
	}
}
