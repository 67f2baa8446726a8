package domain

import "time"

// Variant is the severity style of a toast.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// DefaultToastDuration applies when a notification omits its duration.
const DefaultToastDuration = 5 * time.Second

// Toast is a transient message shown to the user.
type Toast struct {
	Title       string
	Description string
	Variant     Variant
	Duration    time.Duration
}

// MessageType tags WebSocket payloads.
type MessageType string

const (
	MessagePing         MessageType = "ping"
	MessagePong         MessageType = "pong"
	MessageNotification MessageType = "notification"
)

// Notification is a server push received over the WebSocket. Duration is in milliseconds.
type Notification struct {
	Type     MessageType `json:"type"`
	Title    string      `json:"title,omitempty"`
	Message  string      `json:"message,omitempty"`
	Variant  Variant     `json:"variant,omitempty"`
	Duration int         `json:"duration,omitempty"`
}

// Toast converts the notification, filling the default variant and duration.
func (n Notification) Toast() Toast {
	t := Toast{
		Title:       n.Title,
		Description: n.Message,
		Variant:     n.Variant,
		Duration:    time.Duration(n.Duration) * time.Millisecond,
	}
	if t.Variant == "" {
		t.Variant = VariantDefault
	}
	if t.Duration <= 0 {
		t.Duration = DefaultToastDuration
	}
	return t
}
