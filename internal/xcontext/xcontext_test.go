package xcontext_test

import (
	"testing"

	"github.com/artemis-health/artemis/internal/xcontext"
)

func TestUserID(t *testing.T) {
	t.Parallel()

	if _, ok := xcontext.GetUserID(t.Context()); ok {
		t.Error("GetUserID() on empty context ok = true")
	}
	if _, ok := xcontext.GetUserID(xcontext.SetUserID(t.Context(), "")); ok {
		t.Error("GetUserID() with empty id ok = true")
	}
	got, ok := xcontext.GetUserID(xcontext.SetUserID(t.Context(), "user-1"))
	if !ok || got != "user-1" {
		t.Errorf("GetUserID() = %q, %v, want user-1, true", got, ok)
	}
}

func TestShutdownInProgress(t *testing.T) {
	t.Parallel()

	if xcontext.IsShutdownInProgress(t.Context()) {
		t.Error("IsShutdownInProgress() on empty context = true")
	}
	if !xcontext.IsShutdownInProgress(xcontext.SetShutdownInProgress(t.Context(), true)) {
		t.Error("IsShutdownInProgress() = false after set")
	}
}
