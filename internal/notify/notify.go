// Package notify shows transient, keyed notifications. A loading
// notification is later replaced in place by a success or error one.
package notify

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Kind is the visual state of a notification.
type Kind string

const (
	KindLoading Kind = "loading"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notifier is the notification surface used by the playlist form.
type Notifier interface {
	// Loading shows a pending notification and returns its id.
	Loading(message string) string
	// Success replaces notification id with a success message.
	Success(id, message string)
	// Error replaces notification id with an error message.
	Error(id, message string)
}

// HistoryLimit is how many state changes a Toaster remembers.
const HistoryLimit = 256

// Toast is a single notification as currently displayed.
type Toast struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Toaster keeps notifications in memory, logs every change and optionally
// renders them as lines on a terminal.
type Toaster struct {
	mu      sync.Mutex
	toasts  map[string]*Toast
	order   []string
	history []Toast

	logger *logrus.Logger
	out    io.Writer
}

// NewToaster creates a Toaster. out may be nil.
func NewToaster(logger *logrus.Logger, out io.Writer) *Toaster {
	if logger == nil {
		logger = logrus.New()
	}
	return &Toaster{
		toasts: make(map[string]*Toast),
		logger: logger,
		out:    out,
	}
}

// Loading implements Notifier.
func (t *Toaster) Loading(message string) string {
	id := uuid.New().String()
	t.show(id, KindLoading, message)
	return id
}

// Success implements Notifier.
func (t *Toaster) Success(id, message string) {
	t.show(id, KindSuccess, message)
}

// Error implements Notifier. An empty id creates a standalone notification.
func (t *Toaster) Error(id, message string) {
	if id == "" {
		id = uuid.New().String()
	}
	t.show(id, KindError, message)
}

func (t *Toaster) show(id string, kind Kind, message string) {
	t.mu.Lock()
	toast, exists := t.toasts[id]
	if !exists {
		toast = &Toast{ID: id}
		t.toasts[id] = toast
		t.order = append(t.order, id)
	}
	toast.Kind = kind
	toast.Message = message
	toast.UpdatedAt = time.Now()
	t.history = append(t.history, *toast)
	if over := len(t.history) - HistoryLimit; over > 0 {
		t.history = append(t.history[:0], t.history[over:]...)
	}
	t.mu.Unlock()

	entry := t.logger.WithFields(logrus.Fields{
		"toast_id": id,
		"kind":     kind,
	})
	if kind == KindError {
		entry.Warn(message)
	} else {
		entry.Info(message)
	}

	if t.out != nil {
		fmt.Fprintf(t.out, "%s %s\n", symbol(kind), message)
	}
}

// Get returns the current state of notification id.
func (t *Toaster) Get(id string) (Toast, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	toast, ok := t.toasts[id]
	if !ok {
		return Toast{}, false
	}
	return *toast, true
}

// Toasts returns all notifications in creation order.
func (t *Toaster) Toasts() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()

	toasts := make([]Toast, 0, len(t.order))
	for _, id := range t.order {
		toasts = append(toasts, *t.toasts[id])
	}
	return toasts
}

// History returns the most recent HistoryLimit state changes, oldest first.
func (t *Toaster) History() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]Toast(nil), t.history...)
}

// Dismiss removes notification id.
func (t *Toaster) Dismiss(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.toasts[id]; !ok {
		return
	}
	delete(t.toasts, id)
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func symbol(kind Kind) string {
	switch kind {
	case KindSuccess:
		return "✔"
	case KindError:
		return "✖"
	default:
		return "…"
	}
}
