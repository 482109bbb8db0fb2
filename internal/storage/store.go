package storage

import (
	"errors"

	"github.com/deepnsharma/crm-chat-connector/internal/models"
)

// ErrSessionNotFound is returned when no session exists for a phone number.
var ErrSessionNotFound = errors.New("session not found")

// Store persists one conversation session per phone number. Implementations
// are plain CRUD; the chatbot serializes turns per phone number itself.
type Store interface {
	// GetSession returns the session keyed by phone number, or
	// ErrSessionNotFound
	GetSession(phoneNumber string) (*models.Session, error)

	// SaveSession inserts or updates the session for its phone number
	SaveSession(session *models.Session) error
}
