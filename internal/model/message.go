package model

import "encoding/json"

// MessageTypeText is the only inbound message type the core handles.
const MessageTypeText = "text"

// Envelope is an inbound message as handed over by the transport layer.
type Envelope struct {
	ID      string          `json:"id"`
	From    string          `json:"from"`
	Type    string          `json:"type"`
	Text    *TextBody       `json:"text,omitempty"`
	Context json.RawMessage `json:"context,omitempty"`
}

// TextBody carries the text of a text message.
type TextBody struct {
	Body string `json:"body"`
}

// Body returns the text body, or "" for non-text messages.
func (e Envelope) Body() string {
	if e.Text == nil {
		return ""
	}
	return e.Text.Body
}

// IsText reports whether the envelope is a text message.
func (e Envelope) IsText() bool {
	return e.Type == MessageTypeText && e.Text != nil
}

// IntentKind tells the delivery layer how to render an outbound message.
type IntentKind string

const (
	IntentText    IntentKind = "text"
	IntentList    IntentKind = "list"
	IntentButtons IntentKind = "buttons"
)

// OutboundIntent is a message the delivery layer should send.
type OutboundIntent struct {
	ID      string          `json:"id"`
	To      string          `json:"to"`
	Body    string          `json:"body"`
	Kind    IntentKind      `json:"kind"`
	Options []string        `json:"options,omitempty"`
	Context json.RawMessage `json:"context,omitempty"`
}
