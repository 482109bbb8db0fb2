package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepnsharma/crm-chat-connector/internal/config"
	"github.com/deepnsharma/crm-chat-connector/internal/models"
)

func newTestWhatsAppClient(t *testing.T, capture *map[string]any) (*WhatsAppClient, *httptest.Server) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/12345/messages", r.URL.Path)
		assert.Equal(t, "Bearer test-access-token", r.Header.Get("Authorization"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		*capture = payload

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messages":[{"id":"wamid.test123"}]}`))
	}))

	client := NewWhatsAppClient(config.WhatsApp{
		BaseURL:       server.URL,
		PhoneNumberID: "12345",
		AccessToken:   "test-access-token",
	})
	return client, server
}

func TestWhatsAppClient_SendText(t *testing.T) {
	var payload map[string]any
	client, server := newTestWhatsAppClient(t, &payload)
	defer server.Close()

	resp, err := client.SendText("919876543210", "Hello there")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "wamid.test123", resp.MessageID)

	assert.Equal(t, "whatsapp", payload["messaging_product"])
	assert.Equal(t, "919876543210", payload["to"])
	assert.Equal(t, "text", payload["type"])
	text := payload["text"].(map[string]any)
	assert.Equal(t, "Hello there", text["body"])
}

func TestWhatsAppClient_SendButtonsCapsCountAndTitles(t *testing.T) {
	var payload map[string]any
	client, server := newTestWhatsAppClient(t, &payload)
	defer server.Close()

	buttons := []models.Button{
		{ID: "b1", Title: strings.Repeat("x", 30)},
		{ID: "b2", Title: "Short"},
		{ID: "b3", Title: "Third"},
		{ID: "b4", Title: "Dropped"},
	}
	_, err := client.SendButtons("919876543210", "Header", "Body", "Footer", buttons)
	require.NoError(t, err)

	interactive := payload["interactive"].(map[string]any)
	assert.Equal(t, "button", interactive["type"])

	action := interactive["action"].(map[string]any)
	buttonList := action["buttons"].([]any)
	require.Len(t, buttonList, 3)

	first := buttonList[0].(map[string]any)["reply"].(map[string]any)
	assert.Equal(t, "b1", first["id"])
	assert.Len(t, first["title"].(string), 20)

	header := interactive["header"].(map[string]any)
	assert.Equal(t, "Header", header["text"])
	footer := interactive["footer"].(map[string]any)
	assert.Equal(t, "Footer", footer["text"])
}

func TestWhatsAppClient_SendListCapsRowFields(t *testing.T) {
	var payload map[string]any
	client, server := newTestWhatsAppClient(t, &payload)
	defer server.Close()

	sections := []models.ListSection{{
		Title: "Options",
		Rows: []models.ListRow{
			{ID: "r1", Title: strings.Repeat("t", 40), Description: strings.Repeat("d", 100)},
			{ID: "r2", Title: "Plain"},
		},
	}}
	_, err := client.SendList("919876543210", "", "Pick one", "", "Choose", sections)
	require.NoError(t, err)

	interactive := payload["interactive"].(map[string]any)
	assert.Equal(t, "list", interactive["type"])
	// No header was given, none goes on the wire
	assert.NotContains(t, interactive, "header")

	action := interactive["action"].(map[string]any)
	assert.Equal(t, "Choose", action["button"])

	rows := action["sections"].([]any)[0].(map[string]any)["rows"].([]any)
	require.Len(t, rows, 2)

	capped := rows[0].(map[string]any)
	assert.Len(t, capped["title"].(string), 24)
	assert.Len(t, capped["description"].(string), 72)

	plain := rows[1].(map[string]any)
	assert.NotContains(t, plain, "description")
}

func TestWhatsAppClient_SendFailureSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"invalid recipient"}}`))
	}))
	defer server.Close()

	client := NewWhatsAppClient(config.WhatsApp{
		BaseURL:       server.URL,
		PhoneNumberID: "12345",
		AccessToken:   "tok",
	})

	resp, err := client.SendText("bad", "hi")
	require.Error(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "invalid recipient")
}

func TestNormalizeRecipient(t *testing.T) {
	assert.Equal(t, "919876543210", normalizeRecipient("+91 98765-43210"))
	assert.Equal(t, "919876543210", normalizeRecipient("9876543210"))
	assert.Equal(t, "919876543210", normalizeRecipient("919876543210"))
	assert.Equal(t, "14155550100", normalizeRecipient("+1 (415) 555-0100"))
}
