package notify

import (
	"context"
	"sync"
	"time"

	"github.com/manav03panchal/timegrid/internal/clock"
	"github.com/manav03panchal/timegrid/internal/config"
	"github.com/manav03panchal/timegrid/internal/logging"
	"github.com/manav03panchal/timegrid/internal/model"
	"github.com/manav03panchal/timegrid/internal/validate"
)

// Notifier receives user-facing outcomes. It has the same method set as the
// reconciler's collaborator, so every type here plugs into it directly.
type Notifier interface {
	NotifySuccess(ctx context.Context, message string)
	NotifyFailure(ctx context.Context, message string)
}

// Log writes outcomes to the structured log.
type Log struct{}

func (Log) NotifySuccess(ctx context.Context, message string) {
	logging.InfoContext(ctx, message, logging.KeyStatus, model.NotifySuccess)
}

func (Log) NotifyFailure(ctx context.Context, message string) {
	logging.WarnContext(ctx, message, logging.KeyStatus, model.NotifyFailure)
}

// Fanout forwards each outcome to every notifier in order. Nil entries are skipped.
type Fanout []Notifier

func (f Fanout) NotifySuccess(ctx context.Context, message string) {
	for _, n := range f {
		if n != nil {
			n.NotifySuccess(ctx, message)
		}
	}
}

func (f Fanout) NotifyFailure(ctx context.Context, message string) {
	for _, n := range f {
		if n != nil {
			n.NotifyFailure(ctx, message)
		}
	}
}

// Event is one outcome delivered through a Channel.
type Event struct {
	Type    model.NotificationType
	Message string
	At      time.Time
}

// Failed reports whether the event is a failure.
func (e Event) Failed() bool { return e.Type == model.NotifyFailure }

// Channel hands outcomes to a consumer such as the TUI event loop. Sends
// never block: when the buffer is full the event is dropped and logged.
type Channel struct {
	events chan Event
	clock  clock.Clock
}

// NewChannel creates a channel notifier with room for size pending events.
func NewChannel(size int, clk clock.Clock) *Channel {
	if size <= 0 {
		size = 16
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Channel{events: make(chan Event, size), clock: clk}
}

// Events returns the receive side.
func (c *Channel) Events() <-chan Event { return c.events }

func (c *Channel) NotifySuccess(ctx context.Context, message string) {
	c.send(ctx, model.NotifySuccess, message)
}

func (c *Channel) NotifyFailure(ctx context.Context, message string) {
	c.send(ctx, model.NotifyFailure, message)
}

func (c *Channel) send(ctx context.Context, t model.NotificationType, message string) {
	select {
	case c.events <- Event{Type: t, Message: message, At: c.clock.Now()}:
	default:
		logging.WarnContext(ctx, "notification dropped, consumer is behind", "message", message)
	}
}

// Webhook posts outcomes to an outbound URL. Each send runs on its own
// goroutine so the caller never waits on the network; Wait drains them.
type Webhook struct {
	url       string
	formatter Formatter
	client    *HTTPClient
	clock     clock.Clock
	wg        sync.WaitGroup

	mu      sync.Mutex
	lastErr error
	sent    int
}

// NewWebhook returns nil and no error when cfg has no URL.
func NewWebhook(cfg config.WebhookConfig, httpCfg config.HTTPConfig, clk clock.Clock) (*Webhook, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	if err := validate.URL(cfg.URL); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Webhook{
		url:       cfg.URL,
		formatter: GetFormatter(cfg.Kind, cfg.Template),
		client:    NewHTTPClient(httpCfg),
		clock:     clk,
	}, nil
}

func (w *Webhook) NotifySuccess(ctx context.Context, message string) {
	w.Send(ctx, model.NewNotification(model.NotifySuccess, "Time entry saved", message, w.clock.Now()))
}

func (w *Webhook) NotifyFailure(ctx context.Context, message string) {
	w.Send(ctx, model.NewNotification(model.NotifyFailure, "Time entry not saved", message, w.clock.Now()))
}

// Send formats n and posts it in the background. The commit id of ctx, if
// any, is attached as a field so the receiver can correlate with our log.
func (w *Webhook) Send(ctx context.Context, n *model.Notification) {
	if id := logging.CommitID(ctx); id != "" {
		n.WithField(logging.KeyCommitID, id)
	}
	payload, err := w.formatter.Format(n)
	if err != nil {
		logging.WarnContext(ctx, "failed to format notification", logging.KeyError, err)
		w.record(err)
		return
	}

	ctx = context.WithoutCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		res := w.client.Send(ctx, w.url, w.formatter.ContentType(), payload)
		w.record(res.Error)
		if res.Error != nil {
			logging.WarnContext(ctx, "webhook delivery failed",
				logging.KeyWebhook, logging.MaskURL(w.url),
				"attempts", res.Attempts,
				logging.KeyError, res.Error)
			return
		}
		logging.DebugContext(ctx, "webhook delivered",
			logging.KeyWebhook, logging.MaskURL(w.url),
			logging.KeyStatus, res.StatusCode,
			logging.KeyDuration, res.Duration.Milliseconds())
	}()
}

func (w *Webhook) record(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastErr = err
	if err == nil {
		w.sent++
	}
}

// Wait blocks until every in-flight delivery has finished.
func (w *Webhook) Wait() {
	w.wg.Wait()
}

// Stats returns the number of delivered messages and the last delivery error.
func (w *Webhook) Stats() (sent int, lastErr error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sent, w.lastErr
}
