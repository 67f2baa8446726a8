package validate

import (
	"errors"
	"testing"

	"learnlab-client/internal/domain"
)

func TestStructTranslatesFieldErrors(t *testing.T) {
	err := Struct(domain.Registration{Email: "not-an-email", Username: "al", Password: "secret1", FullName: "Al"})
	var fe *FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("expected field error, got %v", err)
	}
	if _, ok := fe.Fields["email"]; !ok {
		t.Fatalf("expected email failure keyed by json name, got %v", fe.Fields)
	}
	if _, ok := fe.Fields["username"]; !ok {
		t.Fatalf("expected username failure, got %v", fe.Fields)
	}
}

func TestStructAcceptsReviewRange(t *testing.T) {
	for q := 1; q <= 5; q++ {
		if err := Struct(domain.Review{Quality: q}); err != nil {
			t.Fatalf("quality %d rejected: %v", q, err)
		}
	}
	if err := Struct(domain.Review{Quality: 6}); err == nil {
		t.Fatalf("expected quality 6 to be rejected")
	}
}
