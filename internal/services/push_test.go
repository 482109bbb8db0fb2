package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepnsharma/crm-chat-connector/internal/models"
)

type fakeQuoteReader struct {
	quote *models.Quote
	err   error
}

func (f *fakeQuoteReader) QuoteByID(ctx context.Context, quoteID string) (*models.Quote, error) {
	return f.quote, f.err
}

func TestPush_SendQuotationCarriesQuoteIDInButtons(t *testing.T) {
	sender := &fakeSender{}
	push := NewPush(sender, &fakeQuoteReader{quote: &models.Quote{
		Name:        "Cement Q3",
		QuoteNumber: "QUO-01042",
		TotalAmount: 180000,
	}})

	err := push.SendQuotation(context.Background(), testPhone, "q-42", "")
	require.NoError(t, err)

	last := sender.last()
	assert.Equal(t, "buttons", last.kind)
	assert.Contains(t, last.body, "QUO-01042")
	assert.Contains(t, last.body, "₹180000.00")
	require.Len(t, last.buttons, 2)
	assert.Equal(t, "quote_accept_q-42", last.buttons[0].ID)
	assert.Equal(t, "quote_reject_q-42", last.buttons[1].ID)
}

func TestPush_SendQuotationFailsWhenQuoteMissing(t *testing.T) {
	sender := &fakeSender{}
	push := NewPush(sender, &fakeQuoteReader{err: errors.New("not found")})

	err := push.SendQuotation(context.Background(), testPhone, "q-42", "")
	require.Error(t, err)
	assert.Empty(t, sender.sent)
}

func TestPush_SendQuotationDeliversDocumentFirst(t *testing.T) {
	sender := &fakeSender{}
	push := NewPush(sender, &fakeQuoteReader{quote: &models.Quote{
		Name:        "Cement Q3",
		QuoteNumber: "QUO-01042",
		TotalAmount: 180000,
	}})

	err := push.SendQuotation(context.Background(), testPhone, "q-42", "https://files.example.com/quo-01042.pdf")
	require.NoError(t, err)

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "document", sender.sent[0].kind)
	assert.Equal(t, "https://files.example.com/quo-01042.pdf", sender.sent[0].body)
	assert.Equal(t, "buttons", sender.sent[1].kind)
}

func TestPush_SendCustomerOnboarded(t *testing.T) {
	sender := &fakeSender{}
	push := NewPush(sender, &fakeQuoteReader{})

	require.NoError(t, push.SendCustomerOnboarded(testPhone, "Rao Traders"))

	last := sender.last()
	assert.Equal(t, "text", last.kind)
	assert.Contains(t, last.body, "Rao Traders")
}

func TestPush_SendShipmentReminder(t *testing.T) {
	sender := &fakeSender{}
	push := NewPush(sender, &fakeQuoteReader{})

	require.NoError(t, push.SendShipmentReminder(testPhone, "DO-1001", "30/08/2026"))

	last := sender.last()
	assert.Contains(t, last.body, "DO-1001")
	assert.Contains(t, last.body, "30/08/2026")
}
