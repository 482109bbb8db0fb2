package services

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/deepnsharma/crm-chat-connector/internal/config"
	"github.com/deepnsharma/crm-chat-connector/internal/models"
)

// Notifier event names posted to n8n workflows.
const (
	EventLeadCreated          = "LEAD_CREATED"
	EventOpportunityCreated   = "OPPORTUNITY_CREATED"
	EventComplaintRegistered  = "COMPLAINT_REGISTERED"
	EventDeliveryOrderCreated = "DO_CREATED"
	EventQuoteResponse        = "QUOTE_RESPONSE"
)

// EventSink is the chatbot's view of the workflow notifier.
type EventSink interface {
	LeadCreated(leadID string, session *models.Session)
	OpportunityCreated(opportunityID string, session *models.Session)
	ComplaintRegistered(complaintID string, session *models.Session)
	DeliveryOrderCreated(deliveryOrderID string, session *models.Session)
	QuoteResponse(quoteID string, accepted bool, reason string, session *models.Session)
	ForwardIncoming(message *models.IncomingMessage)
}

// N8nNotifier posts business events to n8n webhooks. Dispatch is
// fire-and-forget: each send runs in its own goroutine, failures are logged
// and never retried or surfaced: a crash between a CRM write and its
// notification loses the event (at-most-once).
type N8nNotifier struct {
	cfg        config.N8n
	httpClient *http.Client
}

// NewN8nNotifier builds the notifier with a short delivery budget.
func NewN8nNotifier(cfg config.N8n) *N8nNotifier {
	return &N8nNotifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *N8nNotifier) LeadCreated(leadID string, session *models.Session) {
	n.dispatch(n.cfg.WebhookLeadCreated, map[string]any{
		"event":       EventLeadCreated,
		"leadId":      leadID,
		"phoneNumber": session.PhoneNumber,
		"flowData":    session.FlowData,
		"timestamp":   time.Now().Format(time.RFC3339),
	})
}

func (n *N8nNotifier) OpportunityCreated(opportunityID string, session *models.Session) {
	n.dispatch(n.cfg.WebhookLeadCreated, map[string]any{
		"event":         EventOpportunityCreated,
		"opportunityId": opportunityID,
		"customerId":    session.CustomerID,
		"customerName":  session.CustomerName,
		"phoneNumber":   session.PhoneNumber,
		"flowData":      session.FlowData,
		"timestamp":     time.Now().Format(time.RFC3339),
	})
}

func (n *N8nNotifier) ComplaintRegistered(complaintID string, session *models.Session) {
	n.dispatch(n.cfg.WebhookComplaintRegistered, map[string]any{
		"event":        EventComplaintRegistered,
		"complaintId":  complaintID,
		"customerId":   session.CustomerID,
		"customerName": session.CustomerName,
		"phoneNumber":  session.PhoneNumber,
		"flowData":     session.FlowData,
		"timestamp":    time.Now().Format(time.RFC3339),
	})
}

func (n *N8nNotifier) DeliveryOrderCreated(deliveryOrderID string, session *models.Session) {
	n.dispatch(n.cfg.WebhookDoRequest, map[string]any{
		"event":           EventDeliveryOrderCreated,
		"deliveryOrderId": deliveryOrderID,
		"customerId":      session.CustomerID,
		"customerName":    session.CustomerName,
		"phoneNumber":     session.PhoneNumber,
		"flowData":        session.FlowData,
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}

func (n *N8nNotifier) QuoteResponse(quoteID string, accepted bool, reason string, session *models.Session) {
	n.dispatch(n.cfg.WebhookQuotationResponse, map[string]any{
		"event":           EventQuoteResponse,
		"quoteId":         quoteID,
		"accepted":        accepted,
		"rejectionReason": reason,
		"customerId":      session.CustomerID,
		"customerName":    session.CustomerName,
		"phoneNumber":     session.PhoneNumber,
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}

// ForwardIncoming relays a raw inbound message to n8n for side workflows.
func (n *N8nNotifier) ForwardIncoming(message *models.IncomingMessage) {
	n.dispatch(n.cfg.WebhookIncomingMessage, map[string]any{
		"messageId":     message.MessageID,
		"from":          message.From,
		"type":          message.Type,
		"text":          message.Text,
		"buttonReplyId": message.ButtonReplyID,
		"listReplyId":   message.ListReplyID,
		"profileName":   message.ProfileName,
		"mediaId":       message.MediaID,
		"timestamp":     message.Timestamp,
	})
}

func (n *N8nNotifier) dispatch(webhookPath string, payload map[string]any) {
	go func() {
		url := n.cfg.WebhookURL(webhookPath)

		body, err := json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Str("webhook", webhookPath).Msg("failed to encode n8n payload")
			return
		}

		resp, err := n.httpClient.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			log.Error().Err(err).Str("webhook", webhookPath).Msg("failed to send to n8n")
			return
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			log.Error().Int("status", resp.StatusCode).Str("webhook", webhookPath).Msg("n8n webhook rejected event")
			return
		}
		log.Info().Str("webhook", webhookPath).Msg("sent event to n8n")
	}()
}
