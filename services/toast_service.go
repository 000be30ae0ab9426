package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/restofacil/mesa-client/signals"
)

// ToastType classifies a notification
type ToastType string

const (
	ToastSuccess ToastType = "success"
	ToastError   ToastType = "error"
	ToastWarning ToastType = "warning"
	ToastInfo    ToastType = "info"
)

// Toast is one ephemeral user-facing message
type Toast struct {
	ID          string
	Type        ToastType
	Title       string
	Message     string
	Duration    time.Duration
	Dismissible bool
}

// ToastService broadcasts fire-and-forget notifications. Messages append
// in insertion order and remove themselves when their duration elapses.
type ToastService struct {
	Toasts *signals.Signal[[]Toast]
}

// NewToastService creates an empty broadcaster
func NewToastService() *ToastService {
	return &ToastService{
		Toasts: signals.New([]Toast(nil)),
	}
}

// Success shows a success toast
func (s *ToastService) Success(title, message string) {
	s.show(Toast{Type: ToastSuccess, Title: title, Message: message, Duration: 3 * time.Second})
}

// Error shows an error toast
func (s *ToastService) Error(title, message string) {
	s.show(Toast{Type: ToastError, Title: title, Message: message, Duration: 4 * time.Second})
}

// Warning shows a warning toast
func (s *ToastService) Warning(title, message string) {
	s.show(Toast{Type: ToastWarning, Title: title, Message: message, Duration: 3500 * time.Millisecond})
}

// Info shows an info toast
func (s *ToastService) Info(title, message string) {
	s.show(Toast{Type: ToastInfo, Title: title, Message: message, Duration: 3 * time.Second})
}

func (s *ToastService) show(toast Toast) {
	toast.ID = uuid.NewString()
	toast.Dismissible = true

	s.Toasts.Update(func(toasts []Toast) []Toast {
		return append(toasts, toast)
	})

	// Auto-dismiss; Dismiss is a no-op if the user beat the timer
	if toast.Duration > 0 {
		id := toast.ID
		time.AfterFunc(toast.Duration, func() {
			s.Dismiss(id)
		})
	}
}

// Dismiss removes one toast by id
func (s *ToastService) Dismiss(id string) {
	s.Toasts.Update(func(toasts []Toast) []Toast {
		filtered := toasts[:0:0]
		for _, t := range toasts {
			if t.ID != id {
				filtered = append(filtered, t)
			}
		}
		return filtered
	})
}

// DismissAll removes every toast
func (s *ToastService) DismissAll() {
	s.Toasts.Set(nil)
}
