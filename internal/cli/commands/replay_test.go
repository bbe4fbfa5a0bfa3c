package commands

import (
	"os"
	"path/filepath"
	"testing"

	"loopctl/internal/bus"
	"loopctl/internal/gateway"
)

func TestReadNDJSONRoundTripsEventsInOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.ndjson")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("unexpected error creating fixture file: %v", err)
	}
	sink := gateway.NewNDJSONSink(f)
	events := []bus.Event{
		{Type: bus.EventInit, Timestamp: 100},
		{Type: bus.EventHistory, Timestamp: 150},
		{Type: bus.EventProgress, Timestamp: 200},
	}
	for _, evt := range events {
		if err := sink.Send(evt); err != nil {
			t.Fatalf("unexpected error writing event: %v", err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatalf("unexpected error closing file: %v", err)
	}

	got, err := readNDJSON(path)
	if err != nil {
		t.Fatalf("unexpected error reading events: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("expected %d events, got %d", len(events), len(got))
	}
	for i, evt := range got {
		if evt.Type != events[i].Type || evt.Timestamp != events[i].Timestamp {
			t.Fatalf("event %d mismatch: got %+v, want %+v", i, evt, events[i])
		}
	}
}

func TestReadNDJSONRejectsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.ndjson")
	if err := os.WriteFile(path, []byte("not-json\n"), 0o644); err != nil {
		t.Fatalf("unexpected error writing fixture: %v", err)
	}

	if _, err := readNDJSON(path); err == nil {
		t.Fatalf("expected an error parsing a malformed line")
	}
}
