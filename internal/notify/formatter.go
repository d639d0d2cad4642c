// Package notify delivers reconciler outcomes to the user: the log, the TUI
// status line and an optional outbound webhook.
package notify

import (
	"sort"

	"github.com/manav03panchal/timegrid/internal/model"
)

// Webhook payload kinds.
const (
	KindGeneric = "generic"
	KindSlack   = "slack"
	KindDiscord = "discord"
	KindTeams   = "teams"
)

// footer labels every outbound message.
const footer = "timegrid"

// Formatter formats notifications for a specific webhook kind.
type Formatter interface {
	// Format converts a notification into the webhook-specific payload.
	Format(n *model.Notification) ([]byte, error)

	// ContentType returns the HTTP Content-Type for the payload.
	ContentType() string
}

// GetFormatter returns the formatter for kind. Unknown kinds get the generic
// payload; tmpl only applies to it.
func GetFormatter(kind, tmpl string) Formatter {
	switch kind {
	case KindSlack:
		return &SlackFormatter{}
	case KindDiscord:
		return &DiscordFormatter{}
	case KindTeams:
		return &TeamsFormatter{}
	default:
		return NewGenericFormatter(tmpl)
	}
}

// sortedFields returns the notification fields ordered by key so payloads
// are stable.
func sortedFields(n *model.Notification) [][2]string {
	keys := make([]string, 0, len(n.Fields))
	for k := range n.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][2]string, len(keys))
	for i, k := range keys {
		out[i] = [2]string{k, n.Fields[k]}
	}
	return out
}

func colorOf(n *model.Notification) int {
	if n.Color != 0 {
		return n.Color
	}
	return model.DefaultColorForType(n.Type)
}
