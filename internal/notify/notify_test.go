package notify

import (
	"bytes"
	"testing"
	"time"

	"learnlab-client/internal/domain"
)

func TestConsoleFormatsVariants(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	c.Toast(domain.Toast{Title: "Connected", Description: "Real-time notifications enabled"})
	c.Toast(domain.Toast{Title: "Connection Lost", Variant: domain.VariantDestructive})

	want := "* Connected: Real-time notifications enabled\n! Connection Lost\n"
	if buf.String() != want {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()
	r.Toast(domain.Toast{Title: "a", Duration: time.Second})
	r.Toast(domain.Toast{Title: "b"})
	r.Toast(domain.Toast{Title: "a"})

	if r.Count("a") != 2 || len(r.Toasts()) != 3 {
		t.Fatalf("unexpected toasts %+v", r.Toasts())
	}
	select {
	case <-r.Signal():
	default:
		t.Fatalf("expected a signal")
	}
}
