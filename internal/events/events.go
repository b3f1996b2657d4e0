// Package events publishes domain events after a unit of work commits.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Type names an event; it is also the AMQP routing key suffix.
type Type string

const (
	TransactionPosted     Type = "transaction.posted"
	TransactionVoided     Type = "transaction.voided"
	RolloverRecalculated  Type = "rollover.recalculated"
	RecurringMaterialized Type = "recurring.materialized"
)

// Event is the message body published for every domain change.
type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	PartyID    string         `json:"party_id"`
	SubjectID  string         `json:"subject_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// ToJSON encodes the event.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events. Callers log publish errors and carry on:
// the change they describe is already committed.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
