package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockline/lockline-go/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.llog")

	logger, err := log.NewFileLogger(path)
	require.NoError(t, err)
	for _, e := range events {
		logger.Log(e)
	}
	require.NoError(t, logger.Close())
	return path
}

func sessionTrace() []log.Event {
	ts := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	took := 2 * time.Millisecond
	return []log.Event{
		{
			Timestamp: ts, ConnectionID: "aaaaaaaa-panel", LocalRole: log.RolePanel,
			Direction: log.DirectionOut, Layer: log.LayerWire, Category: log.CategoryMessage,
			Frame: &log.FrameEvent{Size: 6, Data: []byte{0x0D}, Redacted: true},
		},
		{
			Timestamp: ts.Add(time.Millisecond), ConnectionID: "bbbbbbbb-ctrl", LocalRole: log.RoleController,
			Direction: log.DirectionIn, Layer: log.LayerWire, Category: log.CategoryMessage,
			Message: &log.MessageEvent{Opcode: 0x0D, Name: "OPEN", HasPayload: true},
		},
		{
			Timestamp: ts.Add(2 * time.Millisecond), ConnectionID: "bbbbbbbb-ctrl", LocalRole: log.RoleController,
			SessionID: "1234567890ab", Direction: log.DirectionLocal, Layer: log.LayerNode, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntitySession, OldState: "OPEN", NewState: "GRANTED", Reason: "OPEN"},
		},
		{
			Timestamp: ts.Add(3 * time.Millisecond), ConnectionID: "bbbbbbbb-ctrl", LocalRole: log.RoleController,
			Direction: log.DirectionOut, Layer: log.LayerWire, Category: log.CategoryMessage,
			Message: &log.MessageEvent{Opcode: 0x0E, Name: "RIGHT", ProcessingTime: &took},
		},
		{
			Timestamp: ts.Add(4 * time.Second), ConnectionID: "bbbbbbbb-ctrl", LocalRole: log.RoleController,
			Direction: log.DirectionLocal, Layer: log.LayerNode, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityActuation, OldState: "IDLE", NewState: "ALARM_SOUNDING"},
		},
		{
			Timestamp: ts.Add(5 * time.Second), ConnectionID: "bbbbbbbb-ctrl", LocalRole: log.RoleController,
			Direction: log.DirectionLocal, Layer: log.LayerNode, Category: log.CategoryError,
			Error: &log.ErrorEventData{Layer: log.LayerNode, Message: "store fault", Context: "read credential slot"},
		},
	}
}

func TestViewFormatsEachKind(t *testing.T) {
	path := createTestLogFile(t, sessionTrace())

	var buf bytes.Buffer
	require.NoError(t, RunView(path, FilterOptions{}, &buf))
	out := buf.String()

	assert.Contains(t, out, "[PANEL conn:aaaaaaaa] OUT   WIRE Frame")
	assert.Contains(t, out, "Data: 0d (payload redacted)")
	assert.Contains(t, out, "Opcode: 0x0D")
	assert.Contains(t, out, "Session: 12345678")
	assert.Contains(t, out, "OPEN -> GRANTED")
	assert.Contains(t, out, "Duration: 2.000ms")
	assert.Contains(t, out, "Context: read credential slot")
}

func TestViewAppliesFilter(t *testing.T) {
	path := createTestLogFile(t, sessionTrace())

	var buf bytes.Buffer
	require.NoError(t, RunView(path, FilterOptions{Role: "panel"}, &buf))
	assert.Contains(t, buf.String(), "PANEL")
	assert.NotContains(t, buf.String(), "CONTROLLER")

	buf.Reset()
	require.NoError(t, RunView(path, FilterOptions{SessionID: "1234567890ab"}, &buf))
	assert.Equal(t, 1, strings.Count(buf.String(), "Session:"))
	assert.NotContains(t, buf.String(), "Frame")
}

func TestFilterOptionsRejectBadValues(t *testing.T) {
	for _, o := range []FilterOptions{
		{Layer: "service"},
		{Direction: "sideways"},
		{Category: "control"},
		{Role: "door"},
		{TimeStart: "yesterday"},
		{TimeEnd: "2026-13-01"},
	} {
		_, err := o.Build()
		assert.Error(t, err, "%+v", o)
	}
}

func TestFilterWritesSubset(t *testing.T) {
	path := createTestLogFile(t, sessionTrace())
	out := filepath.Join(t.TempDir(), "errors.llog")

	var report bytes.Buffer
	require.NoError(t, RunFilter(path, out, FilterOptions{Category: "error"}, &report))
	assert.Contains(t, report.String(), "Filtered 1 events")

	var buf bytes.Buffer
	require.NoError(t, RunView(out, FilterOptions{}, &buf))
	assert.Contains(t, buf.String(), "store fault")
	assert.NotContains(t, buf.String(), "GRANTED")
}

func TestExportJSONL(t *testing.T) {
	path := createTestLogFile(t, sessionTrace())

	var buf bytes.Buffer
	require.NoError(t, RunExport(path, "jsonl", &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	var first log.Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "aaaaaaaa-panel", first.ConnectionID)
	require.NotNil(t, first.Frame)
	assert.True(t, first.Frame.Redacted)
}

func TestExportCSV(t *testing.T) {
	path := createTestLogFile(t, sessionTrace())

	var buf bytes.Buffer
	require.NoError(t, RunExport(path, "csv", &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 7)
	assert.Equal(t, "timestamp", rows[0][0])
	assert.Equal(t, []string{"frame", "0x0D", "6"}, rows[1][7:])
	assert.Equal(t, []string{"message", "0x0E", "RIGHT"}, rows[4][7:])
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, sessionTrace())
	assert.Error(t, RunExport(path, "xml", &bytes.Buffer{}))
}

func TestStats(t *testing.T) {
	path := createTestLogFile(t, sessionTrace())

	s, err := Collect(path)
	require.NoError(t, err)
	assert.Equal(t, 6, s.TotalEvents)
	assert.Equal(t, 1, s.EventsByRole[log.RolePanel])
	assert.Equal(t, 5, s.EventsByRole[log.RoleController])
	assert.Equal(t, map[string]int{"OPEN": 1}, s.Opcodes)
	assert.Equal(t, map[string]int{"GRANTED": 1}, s.Outcomes)
	assert.Equal(t, 1, s.Sessions)
	assert.Equal(t, 1, s.Alarms)
	assert.Equal(t, 1, s.Errors)

	var buf bytes.Buffer
	require.NoError(t, RunStats(path, &buf))
	assert.Contains(t, buf.String(), "Total Events: 6")
	assert.Contains(t, buf.String(), "GRANTED:")
	assert.Contains(t, buf.String(), "Alarms: 1")
}

func TestMissingFile(t *testing.T) {
	assert.Error(t, RunStats(filepath.Join(t.TempDir(), "nope.llog"), &bytes.Buffer{}))
}
