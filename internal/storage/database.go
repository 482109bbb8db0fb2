package storage

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/deepnsharma/crm-chat-connector/internal/models"
)

// DatabaseStore persists sessions in PostgreSQL via GORM.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore wraps an open GORM connection.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func (d *DatabaseStore) GetSession(phoneNumber string) (*models.Session, error) {
	var session models.Session
	err := d.db.Where("phone_number = ?", phoneNumber).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (d *DatabaseStore) SaveSession(session *models.Session) error {
	// Upsert on the unique phone number so concurrent first-contact turns
	// cannot create a second row for the same identity
	return d.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "phone_number"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"customer_id", "contact_id", "customer_name",
			"state", "flow_data", "updated_at",
		}),
	}).Create(session).Error
}
