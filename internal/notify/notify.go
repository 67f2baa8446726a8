// Package notify holds the sinks toasts are delivered to.
package notify

import (
	"fmt"
	"io"
	"sync"

	"learnlab-client/internal/domain"
)

// Toaster shows a toast to the user.
type Toaster interface {
	Toast(t domain.Toast)
}

// Console writes one line per toast. Destructive toasts are prefixed with "!".
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Toast(t domain.Toast) {
	marker := "*"
	if t.Variant == domain.VariantDestructive {
		marker = "!"
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.Description == "" {
		fmt.Fprintf(c.out, "%s %s\n", marker, t.Title)
		return
	}
	fmt.Fprintf(c.out, "%s %s: %s\n", marker, t.Title, t.Description)
}

// Recorder keeps every toast it receives. Useful in tests.
type Recorder struct {
	mu     sync.Mutex
	toasts []domain.Toast
	notify chan struct{}
}

func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 64)}
}

func (r *Recorder) Toast(t domain.Toast) {
	r.mu.Lock()
	r.toasts = append(r.toasts, t)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Toasts returns a copy of the recorded toasts in arrival order.
func (r *Recorder) Toasts() []domain.Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Toast(nil), r.toasts...)
}

// Count returns how many recorded toasts carry title.
func (r *Recorder) Count(title string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.toasts {
		if t.Title == title {
			n++
		}
	}
	return n
}

// Signal fires (best effort) after each recorded toast.
func (r *Recorder) Signal() <-chan struct{} {
	return r.notify
}

// Func adapts a plain function to Toaster.
type Func func(domain.Toast)

func (f Func) Toast(t domain.Toast) { f(t) }
