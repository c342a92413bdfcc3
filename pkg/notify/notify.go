package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventType identifies the kind of notification event.
type EventType string

const (
	// EventAbuseBlock is emitted when a user is auto-blocked by the abuse
	// detector.
	EventAbuseBlock EventType = "abuse_block"

	// EventVersionUpdate is emitted when a newer release is detected.
	EventVersionUpdate EventType = "version_update"
)

// Event is a notification destined for the host's admin-messaging layer.
// Template rendering is the host's concern; events carry raw fields only.
type Event struct {
	// Type identifies the event kind.
	Type EventType `json:"type"`

	// TargetAdmins lists admin identifiers the host should notify. Empty
	// means all configured admins.
	TargetAdmins []string `json:"target_admins,omitempty"`

	// Fields carries event-specific template fields (user id, block
	// duration, trigger counts).
	Fields map[string]string `json:"fields,omitempty"`

	// At is when the event was emitted.
	At time.Time `json:"at"`
}

// Notifier delivers notification events. Implementations must not block
// the caller; delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, evt Event)
}

// Dispatcher fans events out to subscribers over a buffered channel. A
// full buffer drops the event rather than stalling the admission path.
type Dispatcher struct {
	logger *slog.Logger

	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// NewDispatcher creates a dispatcher with the given buffer size. A size
// of zero or less uses a default of 64.
func NewDispatcher(buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{
		logger: slog.Default().With("component", "notify"),
		ch:     make(chan Event, buffer),
	}
}

// Notify enqueues an event for delivery. Never blocks: when the buffer is
// full the event is dropped and logged.
func (d *Dispatcher) Notify(ctx context.Context, evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	select {
	case d.ch <- evt:
	default:
		d.logger.Warn("notification buffer full, dropping event",
			"type", evt.Type, "fields", evt.Fields)
	}
}

// Events returns the receive side of the event stream. The host drains
// this channel and renders events into admin messages.
func (d *Dispatcher) Events() <-chan Event {
	return d.ch
}

// Close stops the dispatcher. Events enqueued before Close remain
// readable; subsequent Notify calls are discarded.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.ch)
}

// Discard is a Notifier that drops every event. Useful when notification
// delivery is disabled.
type Discard struct{}

// Notify implements Notifier.
func (Discard) Notify(ctx context.Context, evt Event) {}
