package notify

import (
	"encoding/json"
	"time"

	"github.com/manav03panchal/timegrid/internal/model"
)

// DiscordFormatter formats notifications as a single Discord embed.
type DiscordFormatter struct{}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color,omitempty"`
	Fields      []discordField `json:"fields,omitempty"`
	Footer      discordFooter  `json:"footer"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

// Format converts a notification to a Discord webhook payload.
func (f *DiscordFormatter) Format(n *model.Notification) ([]byte, error) {
	embed := discordEmbed{
		Title:       n.Title,
		Description: n.Message,
		Color:       colorOf(n),
		Timestamp:   n.Timestamp.UTC().Format(time.RFC3339),
		Footer:      discordFooter{Text: footer},
	}
	for _, kv := range sortedFields(n) {
		embed.Fields = append(embed.Fields, discordField{Name: kv[0], Value: kv[1], Inline: true})
	}
	return json.Marshal(discordPayload{Embeds: []discordEmbed{embed}})
}

func (f *DiscordFormatter) ContentType() string {
	return "application/json"
}
