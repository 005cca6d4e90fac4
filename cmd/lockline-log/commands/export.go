package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/lockline/lockline-go/pkg/log"
)

// RunExport writes every event of path to w as JSON lines or CSV.
func RunExport(path, format string, w io.Writer) error {
	switch format {
	case "jsonl":
		enc := json.NewEncoder(w)
		return each(path, log.Filter{}, func(e log.Event) error {
			if err := enc.Encode(e); err != nil {
				return fmt.Errorf("failed to encode event: %w", err)
			}
			return nil
		})
	case "csv":
		return exportCSV(path, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func exportCSV(path string, w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{"timestamp", "role", "connection_id", "session_id", "direction", "layer", "category", "type", "opcode", "detail"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	err := each(path, log.Filter{}, func(e log.Event) error {
		var kind, opcode, detail string
		switch {
		case e.Frame != nil:
			kind = "frame"
			if len(e.Frame.Data) > 0 {
				opcode = fmt.Sprintf("0x%02X", e.Frame.Data[0])
			}
			detail = strconv.Itoa(e.Frame.Size)
		case e.Message != nil:
			kind = "message"
			opcode = fmt.Sprintf("0x%02X", e.Message.Opcode)
			detail = e.Message.Name
		case e.StateChange != nil:
			kind = "state"
			detail = e.StateChange.Entity.String() + " " + e.StateChange.OldState + "->" + e.StateChange.NewState
		case e.Error != nil:
			kind = "error"
			detail = e.Error.Message
		default:
			kind = "unknown"
		}
		row := []string{
			e.Timestamp.UTC().Format(timeLayout),
			e.LocalRole.String(),
			e.ConnectionID,
			e.SessionID,
			e.Direction.String(),
			e.Layer.String(),
			e.Category.String(),
			kind,
			opcode,
			detail,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		return nil
	})
	cw.Flush()
	if err != nil {
		return err
	}
	return cw.Error()
}
