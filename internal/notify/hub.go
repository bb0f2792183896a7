package notify

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/observability"
)

type EventKind string

const (
	EventUserRegistered    EventKind = "USER_REGISTERED"
	EventRideRequested     EventKind = "RIDE_REQUESTED"
	EventNoDriverAvailable EventKind = "NO_DRIVER_AVAILABLE"
	EventDriverAssigned    EventKind = "DRIVER_ASSIGNED"
	EventDriverRejected    EventKind = "DRIVER_REJECTED"
	EventNoDriverAssigned  EventKind = "NO_DRIVER_ASSIGNED"
	EventRideStatusUpdate  EventKind = "RIDE_STATUS_UPDATE"
	EventPaymentCompleted  EventKind = "PAYMENT_COMPLETED"
)

type Event struct {
	Kind    EventKind `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Observer receives lifecycle events. ctx carries the per-delivery deadline.
type Observer interface {
	Notify(ctx context.Context, ev Event) error
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(ctx context.Context, ev Event) error

func (f ObserverFunc) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }

const DefaultTimeout = 2 * time.Second

// Hub fans events out to observers synchronously, in subscription order.
// An observer that errors or overruns its timeout is logged and skipped; it
// never stops delivery to the rest. An observer that outlives its timeout keeps running in
// the background and may see its next event before finishing the current one.
type Hub struct {
	mu        sync.RWMutex
	observers []Observer
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewHub(logger *slog.Logger, timeout time.Duration) *Hub {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{timeout: timeout, logger: logger, now: time.Now}
}

func (h *Hub) Subscribe(o Observer) {
	if o == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = append(h.observers, o)
}

// Unsubscribe removes every registration of o. Observers of non-comparable
// types (e.g. ObserverFunc) cannot be matched and are left in place.
func (h *Hub) Unsubscribe(o Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.observers[:0]
	for _, cur := range h.observers {
		if !sameObserver(cur, o) {
			kept = append(kept, cur)
		}
	}
	for i := len(kept); i < len(h.observers); i++ {
		h.observers[i] = nil
	}
	h.observers = kept
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

func (h *Hub) Publish(ctx context.Context, kind EventKind, message string) {
	h.mu.RLock()
	snapshot := make([]Observer, len(h.observers))
	copy(snapshot, h.observers)
	h.mu.RUnlock()

	ev := Event{Kind: kind, Message: message, At: h.now()}
	for _, o := range snapshot {
		h.deliver(ctx, o, ev)
	}
}

func (h *Hub) deliver(ctx context.Context, o Observer, ev Event) {
	// the state change is already committed; a cancelled caller must not drop the event
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("observer panic: %v", rec)
			}
		}()
		done <- o.Notify(ctx, ev)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		name := observerName(o)
		observability.NotifyFailures.WithLabelValues(name).Inc()
		h.logger.Warn("notification delivery failed", "observer", name, "kind", ev.Kind, "error", err)
	}
}

// Named lets an observer pick its metrics/log label.
type Named interface {
	Name() string
}

func observerName(o Observer) string {
	if n, ok := o.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", o)
}

func sameObserver(a, b Observer) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
