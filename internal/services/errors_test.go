package services

import (
	"errors"
	"testing"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("exit status 1")
	err := Wrap(ErrExternalTool, "convert", "run ffmpeg", "conversion failed", base)
	if !errors.Is(err, ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause to survive, got %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "", "", "", nil)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if err.Error() != "transient failure: service failure" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestIsFatal(t *testing.T) {
	cases := []struct {
		err   error
		fatal bool
	}{
		{Wrap(ErrConfiguration, "config", "load", "missing preset", nil), true},
		{Wrap(ErrNotFound, "resolve", "stat", "no such input", nil), true},
		{Wrap(ErrExternalTool, "probe", "ffprobe", "exit 1", nil), false},
		{Wrap(ErrTransient, "history", "record", "db busy", nil), false},
	}
	for _, tc := range cases {
		if got := IsFatal(tc.err); got != tc.fatal {
			t.Fatalf("IsFatal(%v) = %v, want %v", tc.err, got, tc.fatal)
		}
	}
}
