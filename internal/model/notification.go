package model

import (
	"time"
)

// NotificationType defines the type of notification.
type NotificationType string

// Notification types.
const (
	NotifySuccess NotificationType = "success"
	NotifyFailure NotificationType = "failure"
	NotifyTest    NotificationType = "test"
)

// Notification represents a notification to be sent.
type Notification struct {
	Type      NotificationType  `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Color     int               `json:"color,omitempty"` // Hex color for embeds
}

// NewNotification creates a new notification stamped at now.
func NewNotification(t NotificationType, title, message string, now time.Time) *Notification {
	return &Notification{
		Type:      t,
		Title:     title,
		Message:   message,
		Fields:    make(map[string]string),
		Timestamp: now,
		Color:     DefaultColorForType(t),
	}
}

// WithField adds a field to the notification.
func (n *Notification) WithField(key, value string) *Notification {
	if n.Fields == nil {
		n.Fields = make(map[string]string)
	}
	n.Fields[key] = value
	return n
}

// WithColor sets the embed color.
func (n *Notification) WithColor(color int) *Notification {
	n.Color = color
	return n
}

// Notification colors (Slack/Discord-compatible hex values).
const (
	ColorSuccess = 0x57F287 // Green
	ColorInfo    = 0x5865F2 // Blurple
	ColorError   = 0xED4245 // Red
)

// DefaultColorForType returns the default color for a notification type.
func DefaultColorForType(t NotificationType) int {
	switch t {
	case NotifySuccess:
		return ColorSuccess
	case NotifyFailure:
		return ColorError
	default:
		return ColorInfo
	}
}

// Icon returns an emoji shortcode for the notification type.
func (n *Notification) Icon() string {
	switch n.Type {
	case NotifySuccess:
		return "white_check_mark"
	case NotifyFailure:
		return "warning"
	default:
		return "bell"
	}
}
