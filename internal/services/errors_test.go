package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"mediadrop/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "download", "yt-dlp", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"download", "yt-dlp", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestKindMapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrValidation, "download", "read", "empty", nil), "validation"},
		{services.Wrap(services.ErrExternalTool, "download", "yt-dlp", "exit 1", nil), "external_tool"},
		{services.Wrap(services.ErrTransient, "upload", "put", "reset", errors.New("io")), "transient"},
		{errors.New("plain"), "transient"},
	}
	for _, tc := range tests {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestStageOfFindsWrappedError(t *testing.T) {
	inner := services.Wrap(services.ErrTransient, "upload", "put", "/media/x.mp4", errors.New("reset"))
	outer := fmt.Errorf("attempt 2: %w", inner)
	if got := services.StageOf(outer); got != "upload" {
		t.Fatalf("StageOf = %q, want upload", got)
	}
	if services.StageOf(errors.New("plain")) != "" {
		t.Fatal("expected no stage for plain error")
	}
}
