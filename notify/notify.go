package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/freewilll/potluck/ledger"
)

// Event types, also used as routing keys
const (
	TypeMessageSent       = "message.sent"
	TypeContributionAdded = "contribution.added"
)

// Event is a notification about something that has been committed to the ledger
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Notifier publishes events. Events are published after the write they
// describe is committed.
type Notifier interface {
	Publish(ctx context.Context, e Event) error
}

// Nop is a Notifier that drops every event
type Nop struct{}

// Publish is a noop
func (Nop) Publish(context.Context, Event) error { return nil }

func newEvent(eventType string, data any) (Event, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Timestamp: time.Now().UTC(), Data: body}, nil
}

// MessageSent makes the event for a new direct message
func MessageSent(m ledger.Message) (Event, error) {
	return newEvent(TypeMessageSent, m)
}

// ContributionAdded makes the event for a new contribution
func ContributionAdded(c ledger.Contribution) (Event, error) {
	return newEvent(TypeContributionAdded, c)
}
