package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/lockline/lockline-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByRole      map[log.Role]int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Opcodes           map[string]int
	Outcomes          map[string]int
	Sessions          int
	Alarms            int
	Errors            int
	Start, End        time.Time
}

// Collect reads path and aggregates its events.
func Collect(path string) (*Stats, error) {
	s := &Stats{
		EventsByRole:      make(map[log.Role]int),
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Opcodes:           make(map[string]int),
		Outcomes:          make(map[string]int),
	}
	sessions := make(map[string]struct{})

	err := each(path, log.Filter{}, func(e log.Event) error {
		s.TotalEvents++
		s.EventsByRole[e.LocalRole]++
		s.EventsByLayer[e.Layer]++
		s.EventsByCategory[e.Category]++
		s.EventsByDirection[e.Direction]++

		if s.Start.IsZero() || e.Timestamp.Before(s.Start) {
			s.Start = e.Timestamp
		}
		if e.Timestamp.After(s.End) {
			s.End = e.Timestamp
		}

		if e.SessionID != "" {
			sessions[e.SessionID] = struct{}{}
		}
		switch {
		case e.Message != nil && e.Direction == log.DirectionIn:
			s.Opcodes[e.Message.Name]++
		case e.StateChange != nil:
			sc := e.StateChange
			if sc.Entity == log.StateEntitySession && sc.OldState != "" {
				s.Outcomes[sc.NewState]++
			}
			if sc.Entity == log.StateEntityActuation && sc.NewState == "ALARM_SOUNDING" && e.LocalRole == log.RoleController {
				s.Alarms++
			}
		case e.Error != nil:
			s.Errors++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Sessions = len(sessions)
	return s, nil
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	s, err := Collect(path)
	if err != nil {
		return err
	}
	printStats(w, s)
	return nil
}

func printStats(w io.Writer, s *Stats) {
	fmt.Fprintln(w, "=== Lockline Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if s.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n", s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", s.End.Sub(s.Start).Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", s.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Node:")
	for _, r := range []log.Role{log.RolePanel, log.RoleController} {
		if n := s.EventsByRole[r]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", r.String()+":", n)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, l := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerNode} {
		if n := s.EventsByLayer[l]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", l.String()+":", n)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, c := range []log.Category{log.CategoryMessage, log.CategoryState, log.CategoryError} {
		if n := s.EventsByCategory[c]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", c.String()+":", n)
		}
	}
	fmt.Fprintln(w)

	if len(s.Opcodes) > 0 {
		fmt.Fprintln(w, "Received Opcodes:")
		printCounts(w, s.Opcodes)
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Sessions: %d\n", s.Sessions)
	if len(s.Outcomes) > 0 {
		printCounts(w, s.Outcomes)
	}
	if s.Alarms > 0 {
		fmt.Fprintf(w, "Alarms: %d\n", s.Alarms)
	}
	if s.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", s.Errors)
	}
}

func printCounts(w io.Writer, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-16s %d\n", k+":", counts[k])
	}
}
