package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// LineWriter writes one compact JSON document per line (NDJSON). Records are
// encoded straight to the underlying writer, nothing is buffered here.
type LineWriter struct {
	mu      sync.Mutex
	encoder *json.Encoder
	count   int
}

// NewLineWriter creates an NDJSON writer on w. Close does not close w.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{encoder: json.NewEncoder(w)}
}

// Write appends a single record as one line.
func (w *LineWriter) Write(record any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.encoder.Encode(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of records written.
func (w *LineWriter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close is a no-op; every line is complete once Write returns.
func (w *LineWriter) Close() error {
	return nil
}

// ArrayWriter writes records as one indented JSON array. The closing bracket
// is only written by Close, so an ArrayWriter that is never closed leaves an
// incomplete document behind.
type ArrayWriter struct {
	mu     sync.Mutex
	output io.Writer
	count  int
	closed bool
}

// NewArrayWriter creates a JSON array writer on w. Close does not close w.
func NewArrayWriter(w io.Writer) *ArrayWriter {
	return &ArrayWriter{output: w}
}

// Write appends a single record to the array.
func (w *ArrayWriter) Write(record any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("failed to write record: writer closed")
	}

	data, err := json.MarshalIndent(record, "  ", "  ")
	if err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	sep := ",\n  "
	if w.count == 0 {
		sep = "[\n  "
	}
	if _, err := io.WriteString(w.output, sep); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if _, err := w.output.Write(data); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	w.count++
	return nil
}

// Count returns the number of records written.
func (w *ArrayWriter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close terminates the array.
func (w *ArrayWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	tail := "\n]\n"
	if w.count == 0 {
		tail = "[]\n"
	}
	if _, err := io.WriteString(w.output, tail); err != nil {
		return fmt.Errorf("failed to close array: %w", err)
	}
	return nil
}
