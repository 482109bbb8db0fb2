package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseState(t *testing.T) {
	assert.Equal(t, StateLeadEmail, ParseState("LEAD_EMAIL"))
	assert.Equal(t, StateQuoteReason, ParseState("QUOTE_REASON"))

	// Anything unknown falls back to the idle state
	assert.Equal(t, StateInitial, ParseState(""))
	assert.Equal(t, StateInitial, ParseState("LEAD_EMAIl"))
	assert.Equal(t, StateInitial, ParseState("REMOVED_LEGACY_STATE"))
}

func TestNewSessionDefaults(t *testing.T) {
	session := NewSession("919876543210")

	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "919876543210", session.PhoneNumber)
	assert.Equal(t, StateInitial, session.State)
	require.NotNil(t, session.FlowData)
	assert.Empty(t, session.FlowData)
	assert.False(t, session.CreatedAt.IsZero())
}

func TestSessionReset(t *testing.T) {
	session := NewSession("919876543210")
	session.State = StateDoAddress
	session.CustomerID = "a-1"
	session.FlowData["orderId"] = "so-1"

	session.Reset()

	assert.Equal(t, StateInitial, session.State)
	assert.Empty(t, session.FlowData)
	// Identity survives a reset; only flow progress is dropped
	assert.Equal(t, "a-1", session.CustomerID)
}

func TestSessionAfterFindNormalizesStaleRows(t *testing.T) {
	session := &Session{State: State("GONE_STATE")}

	require.NoError(t, session.AfterFind(nil))

	assert.Equal(t, StateInitial, session.State)
	assert.NotNil(t, session.FlowData)
}

func TestIncomingMessageInputPrecedence(t *testing.T) {
	msg := &IncomingMessage{Text: "free text"}
	assert.Equal(t, "free text", msg.Input())

	msg.ListReplyID = "list-1"
	assert.Equal(t, "list-1", msg.Input())

	msg.ButtonReplyID = "btn-1"
	assert.Equal(t, "btn-1", msg.Input())
}
