package notify

import (
	"bytes"
	"encoding/json"
	"text/template"
	"time"

	"github.com/manav03panchal/timegrid/internal/model"
)

// GenericFormatter emits a flat JSON document, or renders Template when set.
type GenericFormatter struct {
	Template string
}

type genericPayload struct {
	Source    string            `json:"source"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	Timestamp string            `json:"timestamp"`
	Color     int               `json:"color,omitempty"`
}

// NewGenericFormatter creates a new generic formatter with an optional template.
func NewGenericFormatter(tmpl string) *GenericFormatter {
	return &GenericFormatter{Template: tmpl}
}

// Format converts a notification to the generic payload.
func (f *GenericFormatter) Format(n *model.Notification) ([]byte, error) {
	if f.Template != "" {
		return f.render(n)
	}
	return json.Marshal(genericPayload{
		Source:    footer,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Fields:    n.Fields,
		Timestamp: n.Timestamp.UTC().Format(time.RFC3339),
		Color:     colorOf(n),
	})
}

// render executes the template with the notification as data. Fields
// are reachable as .Fields.key.
func (f *GenericFormatter) render(n *model.Notification) ([]byte, error) {
	tmpl, err := template.New("webhook").Option("missingkey=zero").Parse(f.Template)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *GenericFormatter) ContentType() string {
	return "application/json"
}
