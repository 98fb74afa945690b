// Package filesink implements a MetadataSink (spec §6) that appends
// newline-delimited JSON records to a single gzip-compressed file.
package filesink

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Sink writes JSON-metadata debug records to a gzip-compressed file. It is
// safe for concurrent use; Connected() reports true from a successful New
// until Close, and false afterwards.
type Sink struct {
	mu     sync.Mutex
	file   *os.File
	gz     *gzip.Writer
	bw     *bufio.Writer
	closed bool
}

// Record is the envelope written for every PushJSON call.
type Record struct {
	Timestamp time.Time   `json:"ts"`
	Payload   interface{} `json:"payload"`
}

// New opens path for writing (truncating any existing file) and wraps it
// in a gzip writer.
func New(path string) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("filesink: open %s: %w", path, err)
	}
	gz, err := gzip.NewWriterLevel(f, gzip.BestSpeed)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("filesink: new gzip writer: %w", err)
	}
	return &Sink{
		file: f,
		gz:   gz,
		bw:   bufio.NewWriter(gz),
	}, nil
}

// Connected reports whether the sink is still open for writing.
func (s *Sink) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// PushJSON appends one JSON-encoded record, newline-terminated, to the
// gzip stream.
func (s *Sink) PushJSON(ts time.Time, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("filesink: push on closed sink")
	}
	enc := json.NewEncoder(s.bw)
	if err := enc.Encode(Record{Timestamp: ts, Payload: v}); err != nil {
		return fmt.Errorf("filesink: encode: %w", err)
	}
	return nil
}

// Flush forces buffered records out to the underlying file.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.bw.Flush(); err != nil {
		return err
	}
	return s.gz.Flush()
}

// Close flushes and closes the gzip stream and underlying file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.bw.Flush(); err != nil {
		s.gz.Close()
		s.file.Close()
		return err
	}
	if err := s.gz.Close(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
