// Package notify implements transient per-user toast notifications and the
// websocket hub that pushes them to connected clients.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Toast kinds mirror the visual variants the client renders.
const (
	ToastSuccess = "success"
	ToastError   = "error"
	ToastInfo    = "info"
	ToastWarning = "warning"
)

const (
	// DefaultDuration is used when a caller pushes a toast without one. The
	// client renders toasts for 5000ms unless told otherwise.
	DefaultDuration = 5 * time.Second
	// tickInterval drives the visible progress countdown.
	tickInterval = 50 * time.Millisecond
)

// Toast is one transient notification. Progress runs from 100 down to 0 over
// Duration; the toast dismisses itself when it reaches 0.
type Toast struct {
	ID         string        `json:"id"`
	Type       string        `json:"type"`
	Message    string        `json:"message"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"durationMs"`
	Progress   float64       `json:"progress"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// Event is what sinks receive: a toast appearing or going away.
type Event struct {
	Kind  string `json:"kind"` // "toast" or "toast_dismissed"
	Toast Toast  `json:"toast"`
}

// Sink receives toast events for one user. The websocket hub is a sink; so is
// the Redis publisher used when several gateway instances share users.
type Sink interface {
	Deliver(userID string, e Event)
}

type activeToast struct {
	toast Toast
	stop  chan struct{}
	once  sync.Once
}

// Bus owns the live toasts of every user. Each toast gets its own countdown;
// dismissing a toast stops its countdown immediately.
type Bus struct {
	mu     sync.Mutex
	active map[string]map[string]*activeToast // userID -> toastID
	sinks  []Sink
	log    *zap.Logger
}

func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		active: make(map[string]map[string]*activeToast),
		log:    log,
	}
}

// Attach registers a sink. Not safe to call after toasts start flowing.
func (b *Bus) Attach(s Sink) {
	b.sinks = append(b.sinks, s)
}

func (b *Bus) emit(userID string, e Event) {
	for _, s := range b.sinks {
		s.Deliver(userID, e)
	}
}

// Push creates a toast for userID and starts its countdown. A non-positive
// duration gets the default.
func (b *Bus) Push(userID, kind, message string, duration time.Duration) Toast {
	if duration <= 0 {
		duration = DefaultDuration
	}
	t := Toast{
		ID:         uuid.NewString(),
		Type:       kind,
		Message:    message,
		Duration:   duration,
		DurationMS: duration.Milliseconds(),
		Progress:   100,
		CreatedAt:  time.Now(),
	}
	at := &activeToast{toast: t, stop: make(chan struct{})}

	b.mu.Lock()
	if b.active[userID] == nil {
		b.active[userID] = make(map[string]*activeToast)
	}
	b.active[userID][t.ID] = at
	b.mu.Unlock()

	b.log.Debug("toast pushed",
		zap.String("user_id", userID),
		zap.String("toast_id", t.ID),
		zap.String("type", kind))

	b.emit(userID, Event{Kind: "toast", Toast: t})
	go b.countdown(userID, at)
	return t
}

func (b *Bus) countdown(userID string, at *activeToast) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	deadline := at.toast.CreatedAt.Add(at.toast.Duration)

	for {
		select {
		case <-at.stop:
			return
		case now := <-ticker.C:
			remaining := time.Until(deadline)
			if now.After(deadline) || remaining <= 0 {
				b.Dismiss(userID, at.toast.ID)
				return
			}
			b.mu.Lock()
			at.toast.Progress = float64(remaining) / float64(at.toast.Duration) * 100
			b.mu.Unlock()
		}
	}
}

// Dismiss removes the toast and stops its countdown. Dismissing a toast that
// already went away reports false.
func (b *Bus) Dismiss(userID, toastID string) bool {
	b.mu.Lock()
	at, ok := b.active[userID][toastID]
	var t Toast
	if ok {
		delete(b.active[userID], toastID)
		if len(b.active[userID]) == 0 {
			delete(b.active, userID)
		}
		t = at.toast
		t.Progress = 0
	}
	b.mu.Unlock()
	if !ok {
		return false
	}

	at.once.Do(func() { close(at.stop) })
	b.emit(userID, Event{Kind: "toast_dismissed", Toast: t})
	return true
}

// Active returns the user's live toasts with their current progress.
func (b *Bus) Active(userID string) []Toast {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Toast, 0, len(b.active[userID]))
	for _, at := range b.active[userID] {
		out = append(out, at.toast)
	}
	return out
}

// DropUser dismisses everything a user has, used when their session expires.
func (b *Bus) DropUser(userID string) {
	b.mu.Lock()
	ids := make([]string, 0, len(b.active[userID]))
	for id := range b.active[userID] {
		ids = append(ids, id)
	}
	b.mu.Unlock()
	for _, id := range ids {
		b.Dismiss(userID, id)
	}
}
