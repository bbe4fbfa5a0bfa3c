// Package gateway implements the Connection Gateway: the per-subscriber
// session that turns a State Hub snapshot plus an Event Bus subscription
// into an ordered message stream for one connected client. Grounded on
// handleRunEvents/streamRunEvents (services/runner/internal/api/server.go)
// — history replay before live forwarding, a heartbeat ticker
// independent of the forwarding loop, and passive handling of
// connection drops via context cancellation — generalized here from an
// SSE-specific http.ResponseWriter target to a transport-agnostic Sink
// so the same session logic can drive SSE, websocket, or an in-process
// test harness.
package gateway

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"loopctl/internal/bus"
	"loopctl/internal/state"
)

const defaultHeartbeatInterval = 15 * time.Second

// Sink receives outbound messages for one connected subscriber. Send
// must not block indefinitely; a transport adapter should apply its own
// write deadline and treat an error as a dropped connection.
type Sink interface {
	Send(bus.Event) error
}

// SinkFunc adapts a plain function to a Sink.
type SinkFunc func(bus.Event) error

// Send calls f(evt).
func (f SinkFunc) Send(evt bus.Event) error { return f(evt) }

// Gateway fans a single Run's State Hub and Event Bus out to connected
// subscribers, one Session per connection.
type Gateway struct {
	Hub *state.Hub
	Bus *bus.Bus

	// HistoryLimit bounds how many retained events a newly-attached
	// subscriber replays; 0 replays everything the bus has retained.
	HistoryLimit int
	// HeartbeatInterval overrides the default 15s heartbeat cadence.
	HeartbeatInterval time.Duration
}

// Session is one subscriber's attachment to the Gateway.
type Session struct {
	gw   *Gateway
	sink Sink
	sub  *bus.Subscription
}

// Attach opens a new Session for sink: it sends an init message carrying
// the current Hub snapshot, then a history message replaying the Event
// Bus's retained events, then forwards every event published from this
// point on until ctx is done or the sink returns an error. Attach blocks
// for the lifetime of the session; callers typically run it in its own
// goroutine per connection.
func (g *Gateway) Attach(ctx context.Context, sink Sink) error {
	sub := g.Bus.Subscribe(nil)
	defer sub.Unsubscribe()

	s := &Session{gw: g, sink: sink, sub: sub}
	if err := s.sendInit(); err != nil {
		return err
	}
	if err := s.sendHistory(); err != nil {
		return err
	}
	return s.forward(ctx)
}

func (s *Session) sendInit() error {
	snap := s.gw.Hub.Snapshot()
	return s.sink.Send(bus.Event{Type: bus.EventInit, Data: snap})
}

func (s *Session) sendHistory() error {
	events := s.gw.Bus.History(s.gw.HistoryLimit)
	return s.sink.Send(bus.Event{Type: bus.EventHistory, Data: map[string]any{"events": events}})
}

func (s *Session) heartbeatInterval() time.Duration {
	if s.gw.HeartbeatInterval > 0 {
		return s.gw.HeartbeatInterval
	}
	return defaultHeartbeatInterval
}

// forward delivers every subsequently published event to the sink until
// ctx is cancelled, the subscription channel closes, or the sink errors.
// A heartbeat ticker runs alongside the forwarding select so a quiet Run
// still proves the connection is alive.
func (s *Session) forward(ctx context.Context) error {
	ticker := time.NewTicker(s.heartbeatInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-s.sub.C:
			if !ok {
				return nil
			}
			if err := s.sink.Send(evt); err != nil {
				return err
			}
		case <-ticker.C:
			if err := s.sink.Send(bus.Event{Type: bus.EventPong}); err != nil {
				return err
			}
		}
	}
}

// NDJSONSink writes each event as one JSON object per line to an
// underlying writer — a file-backed Sink for recording a Run's event
// stream for later replay.
type NDJSONSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewNDJSONSink wraps w as a Sink.
func NewNDJSONSink(w io.Writer) *NDJSONSink {
	return &NDJSONSink{w: w}
}

// Send marshals evt and writes it followed by a newline. Concurrent
// Send calls are serialized so lines are never interleaved.
func (n *NDJSONSink) Send(evt bus.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := n.w.Write(body); err != nil {
		return err
	}
	_, err = n.w.Write([]byte("\n"))
	return err
}

// HandleInbound processes one inbound client message. The only
// recognized inbound type is "ping", answered with a pong; every other
// type (including malformed or unknown ones) is ignored rather than
// treated as a protocol error, since a client that probes the channel
// with a future message type must not be disconnected for it.
func (s *Session) HandleInbound(msgType string) error {
	if msgType != "ping" {
		return nil
	}
	return s.sink.Send(bus.Event{Type: bus.EventPong})
}
