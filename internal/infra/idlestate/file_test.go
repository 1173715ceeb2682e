package idlestate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileMarkerRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewFileMarker(filepath.Join(t.TempDir(), "idle_since"))

	if _, ok, err := m.Get(ctx); err != nil || ok {
		t.Fatalf("fresh marker: ok=%v err=%v, want absent", ok, err)
	}

	since := time.Unix(1_700_000_000, 0)
	if err := m.Set(ctx, since); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := m.Get(ctx)
	if err != nil || !ok {
		t.Fatalf("get after set: ok=%v err=%v", ok, err)
	}
	if !got.Equal(since) {
		t.Errorf("since = %v, want %v", got, since)
	}

	if err := m.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := m.Get(ctx); ok {
		t.Error("marker survived clear")
	}
	// Clearing an already-clear marker is not an error.
	if err := m.Clear(ctx); err != nil {
		t.Errorf("second clear: %v", err)
	}
}

func TestFileMarkerCorruptContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idle_since")
	if err := os.WriteFile(path, []byte("not-a-timestamp\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	m := NewFileMarker(path)
	_, ok, err := m.Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Error("corrupt marker read as a valid idle start")
	}
}
