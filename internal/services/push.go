package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/deepnsharma/crm-chat-connector/internal/models"
)

// QuoteReader is the push service's view of the CRM, satisfied by
// *crm.Dataverse.
type QuoteReader interface {
	QuoteByID(ctx context.Context, quoteID string) (*models.Quote, error)
}

// Push sends outbound business notifications triggered by CRM-side events
// (usually forwarded through the REST surface by workflow automation).
type Push struct {
	sender MessageSender
	crm    QuoteReader
}

func NewPush(sender MessageSender, crmClient QuoteReader) *Push {
	return &Push{sender: sender, crm: crmClient}
}

// SendQuotation notifies a customer about a quotation and offers
// accept/decline buttons. The button ids carry the quote id so the webhook
// can route the reply without a session. When documentURL is set the quote
// PDF is delivered first.
func (p *Push) SendQuotation(ctx context.Context, phone, quoteID, documentURL string) error {
	quote, err := p.crm.QuoteByID(ctx, quoteID)
	if err != nil {
		return fmt.Errorf("fetch quote %s: %w", quoteID, err)
	}

	if documentURL != "" {
		filename := quote.QuoteNumber + ".pdf"
		if _, err := p.sender.SendDocument(phone, documentURL, filename, quote.Name); err != nil {
			log.Warn().Err(err).Str("quote_id", quoteID).Msg("failed to send quote document, continuing with buttons")
		}
	}

	body := fmt.Sprintf(
		"📄 *New Quotation*\n\nQuote: %s\nReference: %s\nAmount: ₹%.2f\n\nPlease review and respond:",
		quote.Name, quote.QuoteNumber, quote.TotalAmount)

	buttons := []models.Button{
		{ID: "quote_accept_" + quoteID, Title: "✅ Accept"},
		{ID: "quote_reject_" + quoteID, Title: "❌ Decline"},
	}

	if _, err := p.sender.SendButtons(phone, "Quotation", body, "DPL Sales Team", buttons); err != nil {
		return fmt.Errorf("send quotation notification: %w", err)
	}

	log.Info().Str("phone", phone).Str("quote_id", quoteID).Msg("quotation notification sent")
	return nil
}

// SendCustomerOnboarded welcomes a newly registered customer.
func (p *Push) SendCustomerOnboarded(phone, customerName string) error {
	body := fmt.Sprintf(
		"🎉 Welcome aboard, %s!\n\nYour customer account has been created successfully. You can now use this WhatsApp number for inquiries, complaints, and delivery bookings.\n\nJust say *Hi* to get started!",
		customerName)

	if _, err := p.sender.SendText(phone, body); err != nil {
		return fmt.Errorf("send onboarding notification: %w", err)
	}
	return nil
}

// SendSalesOrderCreated confirms that a sales order was raised.
func (p *Push) SendSalesOrderCreated(phone, orderNumber string, amount float64) error {
	body := fmt.Sprintf(
		"🧾 *Sales Order Confirmed*\n\nOrder Number: %s\nAmount: ₹%.2f\n\nYou can book deliveries against this order any time. Thank you for your business!",
		orderNumber, amount)

	if _, err := p.sender.SendText(phone, body); err != nil {
		return fmt.Errorf("send sales order notification: %w", err)
	}
	return nil
}

// SendDeliveryOrderCreated confirms a delivery booking.
func (p *Push) SendDeliveryOrderCreated(phone, doNumber, deliveryDate string) error {
	body := fmt.Sprintf(
		"🚚 *Delivery Scheduled*\n\nDO Number: %s\nExpected Date: %s\n\nWe'll keep you posted on the shipment status.",
		doNumber, deliveryDate)

	if _, err := p.sender.SendText(phone, body); err != nil {
		return fmt.Errorf("send delivery order notification: %w", err)
	}
	return nil
}

// SendComplaintStatus notifies about a complaint lifecycle change.
// Status is the human-readable stage, e.g. "Registered" or "Resolved".
func (p *Push) SendComplaintStatus(phone, ticketRef, status string) error {
	body := fmt.Sprintf(
		"📋 *Complaint Update*\n\nTicket: %s\nStatus: %s\n\nThank you for your patience.",
		ticketRef, status)

	if _, err := p.sender.SendText(phone, body); err != nil {
		return fmt.Errorf("send complaint status notification: %w", err)
	}
	return nil
}

// SendShipmentReminder nudges the customer about an upcoming delivery.
func (p *Push) SendShipmentReminder(phone, doNumber, deliveryDate string) error {
	body := fmt.Sprintf(
		"⏰ *Delivery Reminder*\n\nYour delivery %s is scheduled for %s.\n\nPlease ensure someone is available to receive the shipment.",
		doNumber, deliveryDate)

	if _, err := p.sender.SendText(phone, body); err != nil {
		return fmt.Errorf("send shipment reminder: %w", err)
	}
	return nil
}
