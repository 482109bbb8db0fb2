package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/deepnsharma/crm-chat-connector/internal/models"
	"github.com/deepnsharma/crm-chat-connector/internal/services"
)

// metaWebhookPayload mirrors the Meta Cloud API webhook envelope. Only the
// fields the connector reads are declared.
type metaWebhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				MessagingProduct string `json:"messaging_product"`
				Contacts         []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					ID        string `json:"id"`
					From      string `json:"from"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
					Image struct {
						ID string `json:"id"`
					} `json:"image"`
					Document struct {
						ID string `json:"id"`
					} `json:"document"`
					Interactive struct {
						Type        string `json:"type"`
						ButtonReply struct {
							ID    string `json:"id"`
							Title string `json:"title"`
						} `json:"button_reply"`
						ListReply struct {
							ID    string `json:"id"`
							Title string `json:"title"`
						} `json:"list_reply"`
					} `json:"interactive"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// WebhookHandler receives Meta Cloud API callbacks.
type WebhookHandler struct {
	chatbot     *services.Chatbot
	sender      services.MessageSender
	notifier    services.EventSink
	verifyToken string
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(chatbot *services.Chatbot, sender services.MessageSender, notifier services.EventSink, verifyToken string) *WebhookHandler {
	return &WebhookHandler{
		chatbot:     chatbot,
		sender:      sender,
		notifier:    notifier,
		verifyToken: verifyToken,
	}
}

// Verify answers Meta's GET subscription handshake: echo hub.challenge when
// the mode is "subscribe" and the token matches, 403 otherwise.
func (h *WebhookHandler) Verify(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		log.Info().Msg("webhook verified")
		return c.SendString(challenge)
	}

	log.Warn().Str("mode", mode).Msg("webhook verification failed")
	return c.SendStatus(fiber.StatusForbidden)
}

// Receive processes an inbound webhook delivery. It always returns 200 so
// Meta doesn't retry payloads we cannot act on.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	var payload metaWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Error().Err(err).Msg("failed to parse webhook payload")
		return c.SendStatus(fiber.StatusOK)
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			profileName := ""
			if len(change.Value.Contacts) > 0 {
				profileName = change.Value.Contacts[0].Profile.Name
			}
			for _, raw := range change.Value.Messages {
				msg := &models.IncomingMessage{
					MessageID:   raw.ID,
					From:        raw.From,
					Timestamp:   raw.Timestamp,
					Type:        raw.Type,
					Text:        raw.Text.Body,
					ProfileName: profileName,
				}
				switch raw.Type {
				case "image":
					msg.MediaID = raw.Image.ID
				case "document":
					msg.MediaID = raw.Document.ID
				}
				switch raw.Interactive.Type {
				case "button_reply":
					msg.ButtonReplyID = raw.Interactive.ButtonReply.ID
					msg.ButtonReplyTitle = raw.Interactive.ButtonReply.Title
				case "list_reply":
					msg.ListReplyID = raw.Interactive.ListReply.ID
					msg.ListReplyTitle = raw.Interactive.ListReply.Title
				}
				h.handleMessage(c, msg)
			}
		}
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *WebhookHandler) handleMessage(c *fiber.Ctx, msg *models.IncomingMessage) {
	h.sender.MarkAsRead(msg.MessageID)
	h.notifier.ForwardIncoming(msg)

	// Quote responses carry the quote id in the button id and skip the menu
	if quoteID, ok := strings.CutPrefix(msg.ButtonReplyID, "quote_accept_"); ok {
		h.chatbot.HandleQuoteResponse(c.Context(), msg.From, quoteID, true)
		return
	}
	if quoteID, ok := strings.CutPrefix(msg.ButtonReplyID, "quote_reject_"); ok {
		h.chatbot.HandleQuoteResponse(c.Context(), msg.From, quoteID, false)
		return
	}

	h.chatbot.ProcessIncoming(c.Context(), msg)
}
