package utils

import (
	"fmt"
	"io"

	"go.uber.org/multierr"
)

// Closer is a named shutdown step.
type Closer struct {
	Name  string
	Close func() error
}

// Close closes c and ignores any error.
// Use for best-effort cleanup in defer where error handling is not critical.
func Close(c io.Closer) {
	_ = c.Close()
}

// CloseAll runs every step in order, even after a failure, and returns the
// combined errors.
func CloseAll(closers ...Closer) error {
	var err error
	for _, c := range closers {
		if c.Close == nil {
			continue
		}
		if cerr := c.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to close %s: %w", c.Name, cerr))
		}
	}
	return err
}
