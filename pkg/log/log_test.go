package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

type captureLogger struct {
	events []Event
}

func (c *captureLogger) Log(e Event) { c.events = append(c.events, e) }

func TestSlogAdapterLogsFrameEvent(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	adapter.Log(Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionOut,
		Layer:        LayerTransport,
		Category:     CategoryMessage,
		LocalRole:    RolePanel,
		Frame:        &FrameEvent{Size: 6, Data: []byte{0x0D}, Redacted: true},
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["role"] != "PANEL" {
		t.Errorf("role: got %v, want PANEL", entry["role"])
	}
	if entry["direction"] != "OUT" {
		t.Errorf("direction: got %v, want OUT", entry["direction"])
	}
	if entry["frame_size"] != float64(6) {
		t.Errorf("frame_size: got %v, want 6", entry["frame_size"])
	}
	if entry["redacted"] != true {
		t.Errorf("redacted: got %v, want true", entry["redacted"])
	}
}

func TestSlogAdapterLogsStateChange(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	Emitter{Logger: adapter, Role: RoleController, ConnectionID: "c1"}.
		State(StateEntityLockout, "2", "3", "candidate mismatch")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["entity"] != "LOCKOUT" || entry["new_state"] != "3" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if entry["reason"] != "candidate mismatch" {
		t.Errorf("reason: got %v", entry["reason"])
	}
}

func TestSlogAdapterIgnoredBelowDebug(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	adapter.Log(Event{Message: &MessageEvent{Opcode: 0x0E, Name: "PASSWORD_IS_RIGHT"}})
	if buf.Len() != 0 {
		t.Errorf("expected no output at info level, got %q", buf.String())
	}
}

func TestEmitterStampsIdentity(t *testing.T) {
	c := &captureLogger{}
	e := Emitter{Logger: c, Role: RoleController, ConnectionID: "link-1"}

	e.Emit(Event{Layer: LayerWire})
	e.Emit(Event{Layer: LayerWire, ConnectionID: "other"})
	e.Error(LayerNode, "read credential slot", errors.New("bus fault"))
	e.Error(LayerNode, "ignored", nil)

	if len(c.events) != 3 {
		t.Fatalf("got %d events, want 3", len(c.events))
	}
	if c.events[0].ConnectionID != "link-1" || c.events[0].LocalRole != RoleController {
		t.Errorf("identity not stamped: %+v", c.events[0])
	}
	if c.events[0].Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}
	if c.events[1].ConnectionID != "other" {
		t.Errorf("explicit connection id overwritten: %q", c.events[1].ConnectionID)
	}
	if c.events[2].Error == nil || c.events[2].Error.Context != "read credential slot" {
		t.Errorf("error event: %+v", c.events[2])
	}
}

func TestZeroEmitterDiscards(t *testing.T) {
	var e Emitter
	e.State(StateEntityNode, "a", "b", "")
}

func TestMultiLoggerFansOut(t *testing.T) {
	a, b := &captureLogger{}, &captureLogger{}
	m := NewMultiLogger(a, nil, b)
	m.Log(Event{Layer: LayerNode})
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("fan out: a=%d b=%d", len(a.events), len(b.events))
	}
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Error("OrNoop(nil) should be NoopLogger")
	}
	c := &captureLogger{}
	if OrNoop(c) != Logger(c) {
		t.Error("OrNoop should pass through non-nil loggers")
	}
}

func TestFileLoggerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.llog")
	fl, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	base := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	events := []Event{
		{Timestamp: base, ConnectionID: "a", Direction: DirectionOut, Layer: LayerTransport, LocalRole: RolePanel,
			Frame: &FrameEvent{Size: 6, Data: []byte{0x0D}, Redacted: true}},
		{Timestamp: base.Add(time.Second), ConnectionID: "a", Direction: DirectionIn, Layer: LayerWire, LocalRole: RolePanel,
			Message: &MessageEvent{Opcode: 0x0F, Name: "PASSWORD_IS_WRONG"}},
		{Timestamp: base.Add(2 * time.Second), ConnectionID: "b", Direction: DirectionLocal, Layer: LayerNode,
			Category: CategoryState, LocalRole: RoleController, SessionID: "s1",
			StateChange: &StateChangeEvent{Entity: StateEntityActuation, OldState: "IDLE", NewState: "UNLOCKING"}},
	}
	for _, e := range events {
		fl.Log(e)
	}
	if err := fl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	fl.Log(events[0]) // ignored after close
	if err := fl.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	defer r.Close()

	var got []Event
	for {
		e, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		got = append(got, e)
	}
	if len(got) != len(events) {
		t.Fatalf("read %d events, want %d", len(got), len(events))
	}
	if !got[0].Timestamp.Equal(base) {
		t.Errorf("timestamp = %v, want %v", got[0].Timestamp, base)
	}
	if got[0].Frame == nil || !got[0].Frame.Redacted || got[0].Frame.Data[0] != 0x0D {
		t.Errorf("frame event = %+v", got[0].Frame)
	}
	if got[1].Message == nil || got[1].Message.Name != "PASSWORD_IS_WRONG" {
		t.Errorf("message event = %+v", got[1].Message)
	}
	if got[2].StateChange == nil || got[2].StateChange.NewState != "UNLOCKING" || got[2].SessionID != "s1" {
		t.Errorf("state event = %+v", got[2])
	}
}

func TestFilteredReader(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	controller := RoleController
	for i, role := range []Role{RolePanel, RoleController, RoleController} {
		if err := enc.Encode(Event{ConnectionID: "c", LocalRole: role, Layer: Layer(i)}); err != nil {
			t.Fatal(err)
		}
	}

	r := NewStreamReader(&buf, Filter{Role: &controller})
	n := 0
	for {
		e, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if e.LocalRole != RoleController {
			t.Errorf("filter leaked role %v", e.LocalRole)
		}
		n++
	}
	if n != 2 {
		t.Errorf("matched %d events, want 2", n)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() on non-closer = %v", err)
	}
}

func TestFilterTimeWindow(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Minute)
	f := Filter{TimeStart: &start, TimeEnd: &end}

	tests := []struct {
		ts   time.Time
		want bool
	}{
		{start.Add(-time.Second), false},
		{start, true},
		{start.Add(30 * time.Second), true},
		{end, false},
	}
	for _, tt := range tests {
		if got := f.Match(Event{Timestamp: tt.ts}); got != tt.want {
			t.Errorf("Match(%v) = %v, want %v", tt.ts, got, tt.want)
		}
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	pt := 3 * time.Millisecond
	in := Event{Message: &MessageEvent{Opcode: 0x0E, Name: "PASSWORD_IS_RIGHT", ProcessingTime: &pt}}
	data, err := EncodeEvent(in)
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}
	out, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	if out.Message == nil || *out.Message.ProcessingTime != pt {
		t.Errorf("decoded = %+v", out.Message)
	}
}

func TestStringers(t *testing.T) {
	if Direction(9).String() != "UNKNOWN" || Layer(9).String() != "UNKNOWN" ||
		Category(9).String() != "UNKNOWN" || Role(9).String() != "UNKNOWN" ||
		StateEntity(9).String() != "UNKNOWN" {
		t.Error("out-of-range values should print UNKNOWN")
	}
}
