package notify

import (
	"encoding/json"
	"fmt"

	"github.com/manav03panchal/timegrid/internal/model"
)

// TeamsFormatter formats notifications as a Teams MessageCard.
type TeamsFormatter struct{}

type teamsPayload struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Summary    string         `json:"summary"`
	Sections   []teamsSection `json:"sections"`
}

type teamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	Text             string      `json:"text,omitempty"`
	Facts            []teamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown"`
}

type teamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Format converts a notification to a Teams webhook payload.
func (f *TeamsFormatter) Format(n *model.Notification) ([]byte, error) {
	section := teamsSection{
		ActivityTitle:    n.Title,
		ActivitySubtitle: fmt.Sprintf("%s | %s", footer, n.Timestamp.Format("Jan 2, 15:04")),
		Text:             n.Message,
		Markdown:         true,
	}
	for _, kv := range sortedFields(n) {
		section.Facts = append(section.Facts, teamsFact{Name: kv[0], Value: kv[1]})
	}
	return json.Marshal(teamsPayload{
		Type:       "MessageCard",
		Context:    "http://schema.org/extensions",
		ThemeColor: fmt.Sprintf("%06X", colorOf(n)),
		Summary:    n.Title,
		Sections:   []teamsSection{section},
	})
}

func (f *TeamsFormatter) ContentType() string {
	return "application/json"
}
