package testsupport

import (
	"context"
	"sync"

	"ultidisk/internal/notifications"
)

// Notification is one recorded event.
type Notification struct {
	Event   notifications.Event
	Payload notifications.Payload
}

// NotificationRecorder is a notifications.Service that keeps every event.
type NotificationRecorder struct {
	mu     sync.Mutex
	events []Notification
}

func (r *NotificationRecorder) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Notification{Event: event, Payload: payload})
	return nil
}

// Events returns a copy of the recorded events.
func (r *NotificationRecorder) Events() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.events...)
}

// Reset forgets recorded events.
func (r *NotificationRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
