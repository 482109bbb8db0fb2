package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// State identifies where a conversation currently is. Sessions persist the
// state as a string; ParseState maps anything unrecognized back to
// StateInitial so a stale row can never wedge a conversation.
type State string

const (
	StateInitial  State = "INITIAL"
	StateMainMenu State = "MAIN_MENU"

	// Lead flow
	StateLeadName            State = "LEAD_NAME"
	StateLeadCompany         State = "LEAD_COMPANY"
	StateLeadEmail           State = "LEAD_EMAIL"
	StateLeadProductInterest State = "LEAD_PRODUCT_INTEREST"
	StateLeadQuantity        State = "LEAD_QUANTITY"
	StateLeadConfirm         State = "LEAD_CONFIRM"

	// Complaint flow
	StateComplaintType        State = "COMPLAINT_TYPE"
	StateComplaintDescription State = "COMPLAINT_DESCRIPTION"
	StateComplaintPriority    State = "COMPLAINT_PRIORITY"
	StateComplaintConfirm     State = "COMPLAINT_CONFIRM"

	// Delivery order flow
	StateDoSelectOrder  State = "DO_SELECT_ORDER"
	StateDoQuantity     State = "DO_QUANTITY"
	StateDoDeliveryDate State = "DO_DELIVERY_DATE"
	StateDoAddress      State = "DO_ADDRESS"
	StateDoConfirm      State = "DO_CONFIRM"

	// Quote response
	StateQuoteReason State = "QUOTE_REASON"
)

var validStates = map[State]bool{
	StateInitial:              true,
	StateMainMenu:             true,
	StateLeadName:             true,
	StateLeadCompany:          true,
	StateLeadEmail:            true,
	StateLeadProductInterest:  true,
	StateLeadQuantity:         true,
	StateLeadConfirm:          true,
	StateComplaintType:        true,
	StateComplaintDescription: true,
	StateComplaintPriority:    true,
	StateComplaintConfirm:     true,
	StateDoSelectOrder:        true,
	StateDoQuantity:           true,
	StateDoDeliveryDate:       true,
	StateDoAddress:            true,
	StateDoConfirm:            true,
	StateQuoteReason:          true,
}

// ParseState validates a persisted state value, falling back to StateInitial.
func ParseState(s string) State {
	if validStates[State(s)] {
		return State(s)
	}
	return StateInitial
}

// Valid reports whether the state is a member of the fixed set.
func (s State) Valid() bool {
	return validStates[s]
}

// Session stores one WhatsApp conversation per phone number
type Session struct {
	ID          string `json:"id" gorm:"primaryKey"`
	PhoneNumber string `json:"phone_number" gorm:"uniqueIndex;not null"`

	// CRM identity, filled in once the phone number resolves to a contact
	CustomerID   string `json:"customer_id"`
	ContactID    string `json:"contact_id"`
	CustomerName string `json:"customer_name"`

	State State `json:"state"`

	// FlowData accumulates answers for the in-progress flow and is cleared
	// whenever the session resets to INITIAL
	FlowData map[string]string `json:"flow_data" gorm:"serializer:json"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName keeps the table name aligned with the original CRM-side schema.
func (Session) TableName() string {
	return "chat_sessions"
}

// NewSession creates a fresh idle session for a phone number.
func NewSession(phoneNumber string) *Session {
	now := time.Now()
	return &Session{
		ID:          uuid.NewString(),
		PhoneNumber: phoneNumber,
		State:       StateInitial,
		FlowData:    make(map[string]string),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AfterFind normalizes rows persisted before a state existed (or edited by
// hand) and guarantees FlowData is usable.
func (s *Session) AfterFind(_ *gorm.DB) error {
	s.State = ParseState(string(s.State))
	if s.FlowData == nil {
		s.FlowData = make(map[string]string)
	}
	return nil
}

// Reset returns the session to the idle state and drops flow scratch data.
func (s *Session) Reset() {
	s.State = StateInitial
	s.FlowData = make(map[string]string)
	s.UpdatedAt = time.Now()
}
