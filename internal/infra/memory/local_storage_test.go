package memory

import (
	"context"
	"testing"
)

func TestLocalStorageLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStorage()

	if err := store.Set(ctx, "access_token", "abc"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, ok, _ := store.Get(ctx, "access_token"); !ok || v != "abc" {
		t.Fatalf("expected stored token, got %q ok=%v", v, ok)
	}

	_ = store.Delete(ctx, "access_token", "refresh_token")
	if _, ok, _ := store.Get(ctx, "access_token"); ok {
		t.Fatalf("expected token removed")
	}
}
