package pipeline

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hadichaudhri/trackerscope/internal/audit"
	"github.com/hadichaudhri/trackerscope/internal/rules"
	"github.com/hadichaudhri/trackerscope/internal/store"
)

// Manager tracks concurrent monitoring sessions. Every session references
// the same rule store and record store; the record store serializes
// appends, so streams from different sessions never interleave
// inconsistently.
type Manager struct {
	ruleStore *rules.Store
	db        *store.Store
	decisions *audit.Logger
	log       zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager over shared stores.
func NewManager(ruleStore *rules.Store, db *store.Store, decisions *audit.Logger, log zerolog.Logger) *Manager {
	return &Manager{
		ruleStore: ruleStore,
		db:        db,
		decisions: decisions,
		log:       log,
		sessions:  make(map[string]*Session),
	}
}

// Create registers a new session for a first-party domain and returns it.
func (m *Manager) Create(firstParty string) *Session {
	id := uuid.NewString()
	s := NewSession(id, firstParty, m.ruleStore, m.db, m.decisions, m.log)
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	m.log.Info().Str("session", id).Str("first_party", firstParty).Msg("session created")
	return s
}

// Get looks up a session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete removes a session.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// List returns all active sessions.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}
