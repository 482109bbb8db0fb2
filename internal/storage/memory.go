package storage

import (
	"sync"

	"github.com/deepnsharma/crm-chat-connector/internal/models"
)

// MemoryStore keeps sessions in a map, for local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.Session),
	}
}

// GetSession returns a copy of the stored session so callers can mutate it
// freely before saving.
func (m *MemoryStore) GetSession(phoneNumber string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[phoneNumber]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := *session
	copied.FlowData = make(map[string]string, len(session.FlowData))
	for k, v := range session.FlowData {
		copied.FlowData[k] = v
	}
	return &copied, nil
}

// SaveSession upserts the session keyed by phone number.
func (m *MemoryStore) SaveSession(session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *session
	copied.FlowData = make(map[string]string, len(session.FlowData))
	for k, v := range session.FlowData {
		copied.FlowData[k] = v
	}
	m.sessions[session.PhoneNumber] = &copied
	return nil
}

// Len reports how many sessions exist, for tests and stats.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
