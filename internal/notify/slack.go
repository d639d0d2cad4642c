package notify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/manav03panchal/timegrid/internal/model"
)

// SlackFormatter formats notifications as Slack Block Kit messages.
type SlackFormatter struct{}

type slackPayload struct {
	Text        string        `json:"text,omitempty"`
	Blocks      []slackBlock  `json:"blocks,omitempty"`
	Attachments []slackAttach `json:"attachments,omitempty"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackAttach struct {
	Color    string `json:"color,omitempty"`
	Fallback string `json:"fallback,omitempty"`
}

// Format converts a notification to a Slack webhook payload.
func (f *SlackFormatter) Format(n *model.Notification) ([]byte, error) {
	blocks := []slackBlock{{
		Type: "section",
		Text: &slackText{
			Type: "mrkdwn",
			Text: fmt.Sprintf(":%s: *%s*\n%s", n.Icon(), slackEscape(n.Title), slackEscape(n.Message)),
		},
	}}

	if fields := sortedFields(n); len(fields) > 0 {
		var texts []slackText
		for _, kv := range fields {
			texts = append(texts, slackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("*%s*\n%s", slackEscape(kv[0]), slackEscape(kv[1])),
			})
		}
		blocks = append(blocks, slackBlock{Type: "section", Fields: texts})
	}

	blocks = append(blocks, slackBlock{
		Type: "context",
		Elements: []slackText{{
			Type: "mrkdwn",
			Text: fmt.Sprintf("%s | %s", footer, n.Timestamp.Format("Jan 2, 15:04")),
		}},
	})

	return json.Marshal(slackPayload{
		Text:        n.Title,
		Blocks:      blocks,
		Attachments: []slackAttach{{Color: colorToHex(colorOf(n)), Fallback: n.Title}},
	})
}

func (f *SlackFormatter) ContentType() string {
	return "application/json"
}

func colorToHex(color int) string {
	return fmt.Sprintf("#%06X", color)
}

// slackEscape escapes the three characters mrkdwn reserves.
func slackEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
