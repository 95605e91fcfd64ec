// Package security implements the non-repudiation event log described in
// §4.A: a rotating tail of accepted requests, kept separate from the
// hash-chained ledger.
package security

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Event is one accepted-request record.
type Event struct {
	SourceID    string `json:"sourceId"`
	Method      string `json:"method"`
	Path        string `json:"path"`
	Signature   string `json:"signature"`
	TimestampMs int64  `json:"timestampMs"`
}

// EventLogger is a bounded ring buffer flushed to a JSON-lines tail file.
// It is threaded through the request context per §9's redesign guidance.
type EventLogger struct {
	mu      sync.Mutex
	ring    []Event
	cap     int
	next    int
	filled  bool
	file    *os.File
	log     *logrus.Entry
}

// NewEventLogger opens (creating if needed) the tail file at path and
// allocates a ring buffer of the given capacity.
func NewEventLogger(path string, capacity int, log *logrus.Entry) (*EventLogger, error) {
	if capacity <= 0 {
		capacity = 4096
	}
	var f *os.File
	if path != "" {
		var err error
		f, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &EventLogger{ring: make([]Event, capacity), cap: capacity, file: f, log: log}, nil
}

// Record appends an event to the ring buffer and the tail file.
func (e *EventLogger) Record(ev Event) {
	e.mu.Lock()
	e.ring[e.next] = ev
	e.next = (e.next + 1) % e.cap
	if e.next == 0 {
		e.filled = true
	}
	e.mu.Unlock()

	if e.file != nil {
		b, err := json.Marshal(ev)
		if err != nil {
			e.log.WithError(err).Warn("marshal security event")
			return
		}
		b = append(b, '\n')
		if _, err := e.file.Write(b); err != nil {
			e.log.WithError(err).Warn("write security event tail")
		}
	}
}

// Recent returns up to the ring's capacity of the most recently recorded
// events, oldest first.
func (e *EventLogger) Recent() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.filled {
		out := make([]Event, e.next)
		copy(out, e.ring[:e.next])
		return out
	}
	out := make([]Event, e.cap)
	copy(out, e.ring[e.next:])
	copy(out[e.cap-e.next:], e.ring[:e.next])
	return out
}

// Close closes the underlying tail file, if any.
func (e *EventLogger) Close() error {
	if e.file == nil {
		return nil
	}
	return e.file.Close()
}

type ctxKey struct{}

// WithLogger threads an EventLogger through a context.
func WithLogger(ctx context.Context, l *EventLogger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the EventLogger threaded by WithLogger, if any.
func FromContext(ctx context.Context) (*EventLogger, bool) {
	l, ok := ctx.Value(ctxKey{}).(*EventLogger)
	return l, ok
}
