package commands

import (
	"fmt"
	"io"

	"github.com/lockline/lockline-go/pkg/log"
)

// RunFilter copies the matching events of path into a new log file and
// reports how many were written.
func RunFilter(path, output string, opts FilterOptions, report io.Writer) error {
	filter, err := opts.Build()
	if err != nil {
		return err
	}

	logger, err := log.NewFileLogger(output)
	if err != nil {
		return fmt.Errorf("failed to create output logger: %w", err)
	}

	count := 0
	err = each(path, filter, func(e log.Event) error {
		logger.Log(e)
		count++
		return nil
	})
	if cerr := logger.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close output: %w", cerr)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(report, "Filtered %d events to %s\n", count, output)
	return nil
}
