package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/manav03panchal/timegrid/internal/notify"
	"github.com/manav03panchal/timegrid/internal/parser"
	"github.com/manav03panchal/timegrid/internal/reconcile"
)

// flashDuration is how long a status message stays on screen.
const flashDuration = 3 * time.Second

// ticketMsg is sent when a persistence call settles.
type ticketMsg struct {
	ticket *reconcile.Ticket
}

// eventMsg carries a reconciler outcome from the notify channel.
type eventMsg notify.Event

// flashExpiredMsg clears the status line if it still shows message seq.
type flashExpiredMsg struct {
	seq int
}

// errMsg is sent when an error occurs outside Update.
type errMsg struct {
	err error
}

// waitTicket blocks on t and reports it back to the program.
func waitTicket(t *reconcile.Ticket) tea.Cmd {
	if t == nil {
		return nil
	}
	return func() tea.Msg {
		<-t.Done()
		return ticketMsg{ticket: t}
	}
}

// listenEvents receives one event. The model re-arms it after each eventMsg.
func listenEvents(ch <-chan notify.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

// flash is the one-line status shown above the help bar.
type flash struct {
	text string
	err  bool
	seq  int
}

func (f *flash) set(text string, isErr bool) tea.Cmd {
	f.seq++
	f.text, f.err = text, isErr
	seq := f.seq
	return tea.Tick(flashDuration, func(time.Time) tea.Msg {
		return flashExpiredMsg{seq: seq}
	})
}

func (f *flash) expire(msg flashExpiredMsg) {
	if msg.seq == f.seq {
		f.text, f.err = "", false
	}
}

func (f flash) View() string {
	switch {
	case f.text == "":
		return ""
	case f.err:
		return StyleError.Render(f.text)
	default:
		return StyleSuccess.Render(f.text)
	}
}

// promptMode says what the input line is collecting.
type promptMode int

const (
	promptNone promptMode = iota
	// promptCreate confirms a drag-create.
	promptCreate
	// promptEdit changes the selected record.
	promptEdit
)

// prompt reads "HOURS [LABEL]" for a create or an edit.
type prompt struct {
	input  textinput.Model
	mode   promptMode
	target string
	title  string
}

func newPrompt() prompt {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "8 design review"
	ti.CharLimit = 120
	ti.Width = 40
	return prompt{input: ti}
}

func (p *prompt) open(mode promptMode, target, title, value string) tea.Cmd {
	p.mode, p.target, p.title = mode, target, title
	p.input.SetValue(value)
	p.input.CursorEnd()
	return p.input.Focus()
}

func (p *prompt) close() {
	p.mode, p.target, p.title = promptNone, "", ""
	p.input.Blur()
	p.input.SetValue("")
}

func (p prompt) active() bool { return p.mode != promptNone }

func (p *prompt) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return cmd
}

func (p prompt) View() string {
	if !p.active() {
		return ""
	}
	return StylePrompt.Render(p.title + "\n" + p.input.View())
}

// parseEntry splits "HOURS [LABEL]". A "-" for hours keeps the current
// effort and is only meaningful for edits.
func parseEntry(s string) (hours float64, label string, err error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, "", parser.NewHoursError(s)
	}
	label = strings.Join(fields[1:], " ")
	if fields[0] == "-" {
		return 0, label, nil
	}
	hours, err = parser.ParseHours(fields[0])
	return hours, label, err
}

// entryValue formats the prompt text for a record's effort and label.
func entryValue(minutes int, label string) string {
	v := fmt.Sprintf("%g", float64(minutes)/60)
	if label != "" {
		v += " " + label
	}
	return v
}

// errorText renders err for the status line.
func errorText(err error) string {
	return "Error: " + err.Error()
}
