package pkg

import (
	"io"

	"go.uber.org/multierr"
)

// CombinedWriter fans each write out to all of its writers.
// A failing writer does not stop the others; all errors are combined.
type CombinedWriter struct {
	Writers []io.Writer
}

func NewCombinedWriter(writers ...io.Writer) *CombinedWriter {
	return &CombinedWriter{
		Writers: append([]io.Writer(nil), writers...),
	}
}

// Write returns len(p) when every writer succeeded, otherwise the
// smallest number of bytes written by any writer and the combined error.
func (cw *CombinedWriter) Write(p []byte) (n int, err error) {
	n = len(p)
	for _, w := range cw.Writers {
		written, werr := w.Write(p)
		if werr != nil {
			err = multierr.Append(err, werr)
		}
		if written < n {
			n = written
		}
	}
	return n, err
}
