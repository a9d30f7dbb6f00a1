package log

import (
	"errors"
	"io"
	"os"
)

// Reader reads diagnostics events back from a CBOR stream file written
// by FileLogger.
type Reader struct {
	file *os.File
	dec  interface{ Decode(any) error }
}

// NewReader opens a diagnostics log file for reading.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, dec: NewDecoder(f)}, nil
}

// Next returns the next event, or io.EOF when the stream ends.
// A truncated trailing event (crash mid-write) is reported as io.EOF.
func (r *Reader) Next() (Event, error) {
	var event Event
	err := r.dec.Decode(&event)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Event{}, io.EOF
		}
		return Event{}, err
	}
	return event, nil
}

// ReadAll reads all remaining events.
func (r *Reader) ReadAll() ([]Event, error) {
	var events []Event
	for {
		event, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
