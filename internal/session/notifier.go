package session

import (
	"sync"

	"go.uber.org/zap"
)

// Kind classifies a user-visible notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Notification is a toast raised by a session transition.
type Notification struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Notifier receives toasts.
type Notifier interface {
	Notify(n Notification)
}

// RecordingNotifier buffers toasts so a handler can return them with the response.
type RecordingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

// Notify implements Notifier.
func (r *RecordingNotifier) Notify(n Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

// Drain returns buffered toasts and resets the buffer.
func (r *RecordingNotifier) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.items
	r.items = nil
	return out
}

// LogNotifier writes toasts to the structured log.
type LogNotifier struct {
	Logger *zap.Logger
}

// Notify implements Notifier.
func (l LogNotifier) Notify(n Notification) {
	if l.Logger == nil {
		return
	}
	l.Logger.Debug("session notification", zap.String("kind", string(n.Kind)), zap.String("message", n.Message))
}

// MultiNotifier fans a toast out to several notifiers.
type MultiNotifier []Notifier

// Notify implements Notifier.
func (m MultiNotifier) Notify(n Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(n)
		}
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}
