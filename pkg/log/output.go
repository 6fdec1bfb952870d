package log

import (
	"io"
	"os"
	"sync"
)

// ConsoleOutput writes formatted entries to stderr. The zero value is ready to use.
type ConsoleOutput struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleOutput returns a console output writing to stderr.
func NewConsoleOutput() *ConsoleOutput { return &ConsoleOutput{} }

// Write implements Output.
func (o *ConsoleOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	w := o.w
	if w == nil {
		w = os.Stderr
	}
	_, err := w.Write(formatted)
	return err
}

// Close implements Output. Console outputs do not own their writer.
func (o *ConsoleOutput) Close() error { return nil }

// WriterOutput writes formatted entries to an arbitrary io.Writer.
type WriterOutput struct {
	mu sync.Mutex
	W  io.Writer
}

// NewWriterOutput returns an output writing to w.
func NewWriterOutput(w io.Writer) *WriterOutput { return &WriterOutput{W: w} }

// Write implements Output.
func (o *WriterOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.W == nil {
		return nil
	}
	_, err := o.W.Write(formatted)
	return err
}

// Close implements Output.
func (o *WriterOutput) Close() error {
	if c, ok := o.W.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// FileOutput appends formatted entries to a file.
type FileOutput struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileOutput opens (or creates) path for appending.
func NewFileOutput(path string) (*FileOutput, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileOutput{file: f}, nil
}

// Write implements Output.
func (o *FileOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.file.Write(formatted)
	return err
}

// Close implements Output.
func (o *FileOutput) Close() error { return o.file.Close() }

// NullOutput discards all entries.
type NullOutput struct{}

// Write implements Output.
func (NullOutput) Write(*Entry, []byte) error { return nil }

// Close implements Output.
func (NullOutput) Close() error { return nil }
