package models

// IncomingMessage is the normalized shape of one inbound WhatsApp event,
// produced by the webhook adapter before it reaches the chatbot.
type IncomingMessage struct {
	MessageID   string `json:"message_id"`
	From        string `json:"from"` // phone number, the conversation key
	Timestamp   string `json:"timestamp"`
	Type        string `json:"type"`
	Text        string `json:"text"`
	ProfileName string `json:"profile_name"`

	// Interactive replies; a button id takes precedence over a list id,
	// and either takes precedence over free text
	ButtonReplyID    string `json:"button_reply_id"`
	ButtonReplyTitle string `json:"button_reply_title"`
	ListReplyID      string `json:"list_reply_id"`
	ListReplyTitle   string `json:"list_reply_title"`

	MediaID string `json:"media_id"`
}

// Input resolves the effective user input for a turn.
func (m *IncomingMessage) Input() string {
	if m.ButtonReplyID != "" {
		return m.ButtonReplyID
	}
	if m.ListReplyID != "" {
		return m.ListReplyID
	}
	return m.Text
}

// Button is one reply option on an interactive button message (max 3 per
// message, title capped at 20 characters on the wire).
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ListRow is one selectable row of an interactive list message. Title is
// capped at 24 characters and Description at 72 on the wire.
type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ListSection groups rows under a heading.
type ListSection struct {
	Title string    `json:"title"`
	Rows  []ListRow `json:"rows"`
}

// MessageResponse reports the outcome of one outbound channel send.
type MessageResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}
