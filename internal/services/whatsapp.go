package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/deepnsharma/crm-chat-connector/internal/config"
	"github.com/deepnsharma/crm-chat-connector/internal/models"
)

// Cloud API caps for interactive payloads.
const (
	maxButtons         = 3
	buttonTitleMax     = 20
	listRowTitleMax    = 24
	listRowDescMax     = 72
	defaultCountryCode = "91"
)

// MessageSender is what the chatbot needs from the outbound channel.
type MessageSender interface {
	SendText(to, body string) (*models.MessageResponse, error)
	SendButtons(to, header, body, footer string, buttons []models.Button) (*models.MessageResponse, error)
	SendList(to, header, body, footer, buttonText string, sections []models.ListSection) (*models.MessageResponse, error)
	SendDocument(to, documentURL, filename, caption string) (*models.MessageResponse, error)
	MarkAsRead(messageID string)
}

// WhatsAppClient sends messages through the Meta WhatsApp Cloud API.
type WhatsAppClient struct {
	messagesURL string
	accessToken string
	httpClient  *http.Client
}

// NewWhatsAppClient builds a client with the standard 30s round-trip budget.
func NewWhatsAppClient(cfg config.WhatsApp) *WhatsAppClient {
	return &WhatsAppClient{
		messagesURL: cfg.MessagesURL(),
		accessToken: cfg.AccessToken,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// SendText sends a plain text message.
func (w *WhatsAppClient) SendText(to, body string) (*models.MessageResponse, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                normalizeRecipient(to),
		"type":              "text",
		"text": map[string]any{
			"preview_url": false,
			"body":        body,
		},
	}
	return w.send(payload)
}

// SendButtons sends an interactive message with up to three reply buttons.
func (w *WhatsAppClient) SendButtons(to, header, body, footer string, buttons []models.Button) (*models.MessageResponse, error) {
	buttonList := make([]map[string]any, 0, maxButtons)
	for i, btn := range buttons {
		if i == maxButtons {
			break
		}
		buttonList = append(buttonList, map[string]any{
			"type": "reply",
			"reply": map[string]any{
				"id":    btn.ID,
				"title": truncate(btn.Title, buttonTitleMax),
			},
		})
	}

	interactive := map[string]any{
		"type":   "button",
		"body":   map[string]any{"text": body},
		"action": map[string]any{"buttons": buttonList},
	}
	if header != "" {
		interactive["header"] = map[string]any{"type": "text", "text": header}
	}
	if footer != "" {
		interactive["footer"] = map[string]any{"text": footer}
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                normalizeRecipient(to),
		"type":              "interactive",
		"interactive":       interactive,
	}
	return w.send(payload)
}

// SendList sends an interactive list message with named sections.
func (w *WhatsAppClient) SendList(to, header, body, footer, buttonText string, sections []models.ListSection) (*models.MessageResponse, error) {
	sectionList := make([]map[string]any, 0, len(sections))
	for _, section := range sections {
		rows := make([]map[string]any, 0, len(section.Rows))
		for _, row := range section.Rows {
			rowMap := map[string]any{
				"id":    row.ID,
				"title": truncate(row.Title, listRowTitleMax),
			}
			if row.Description != "" {
				rowMap["description"] = truncate(row.Description, listRowDescMax)
			}
			rows = append(rows, rowMap)
		}
		sectionList = append(sectionList, map[string]any{
			"title": section.Title,
			"rows":  rows,
		})
	}

	interactive := map[string]any{
		"type": "list",
		"body": map[string]any{"text": body},
		"action": map[string]any{
			"button":   buttonText,
			"sections": sectionList,
		},
	}
	if header != "" {
		interactive["header"] = map[string]any{"type": "text", "text": header}
	}
	if footer != "" {
		interactive["footer"] = map[string]any{"text": footer}
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                normalizeRecipient(to),
		"type":              "interactive",
		"interactive":       interactive,
	}
	return w.send(payload)
}

// SendDocument sends a document by link, with an optional caption.
func (w *WhatsAppClient) SendDocument(to, documentURL, filename, caption string) (*models.MessageResponse, error) {
	document := map[string]any{
		"link":     documentURL,
		"filename": filename,
	}
	if caption != "" {
		document["caption"] = caption
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                normalizeRecipient(to),
		"type":              "document",
		"document":          document,
	}
	return w.send(payload)
}

// MarkAsRead flags an inbound message as read. Best-effort.
func (w *WhatsAppClient) MarkAsRead(messageID string) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}
	if _, err := w.send(payload); err != nil {
		log.Warn().Err(err).Str("message_id", messageID).Msg("failed to mark message as read")
	}
}

func (w *WhatsAppClient) send(payload map[string]any) (*models.MessageResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, w.messagesURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build message request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return &models.MessageResponse{Success: false, Error: err.Error()}, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error().Int("status", resp.StatusCode).Str("body", string(respBody)).Msg("whatsapp send failed")
		return &models.MessageResponse{Success: false, Error: string(respBody)},
			fmt.Errorf("whatsapp api returned %d", resp.StatusCode)
	}

	result := &models.MessageResponse{Success: true}
	var parsed struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(respBody, &parsed); err == nil && len(parsed.Messages) > 0 {
		result.MessageID = parsed.Messages[0].ID
	}

	log.Debug().Str("message_id", result.MessageID).Msg("whatsapp message sent")
	return result, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// normalizeRecipient strips non-digits and defaults 10-digit numbers to the
// Indian country code, matching how CRM stores customer numbers.
func normalizeRecipient(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	normalized := b.String()
	if len(normalized) == 10 && !strings.HasPrefix(normalized, defaultCountryCode) {
		normalized = defaultCountryCode + normalized
	}
	return normalized
}
