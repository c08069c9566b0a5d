// internal/journal/record.go

// Package journal persists monitor events so a run can be audited after the
// fact. Sinks receive batches of records from a bus subscription.
package journal

import (
	"context"
	"fmt"
	"time"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/loopguard/api/schemas"
	"github.com/xkilldash9x/loopguard/internal/eventbus"
)

// Record is the persisted form of one bus message.
type Record struct {
	RunID     string          `json:"run_id"`
	ProfileID string          `json:"profile_id"`
	Seq       uint64          `json:"seq"`
	At        time.Time       `json:"at"`
	Type      string          `json:"-"`
	Event     json.RawMessage `json:"event"`
}

// NewRecord encodes the event of msg in its typed envelope.
func NewRecord(msg eventbus.Message) (Record, error) {
	data, err := schemas.MarshalEvent(msg.Event)
	if err != nil {
		return Record{}, err
	}
	return Record{
		RunID:     msg.RunID,
		ProfileID: msg.ProfileID,
		Seq:       msg.Seq,
		At:        msg.At.UTC(),
		Type:      string(msg.Event.Kind()),
		Event:     data,
	}, nil
}

// DecodeRecord parses one journal line and its event.
func DecodeRecord(line []byte) (Record, schemas.Event, error) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Record{}, nil, fmt.Errorf("failed to decode journal record: %w", err)
	}
	ev, err := schemas.UnmarshalEvent(rec.Event)
	if err != nil {
		return Record{}, nil, err
	}
	rec.Type = string(ev.Kind())
	return rec, ev, nil
}

// Sink stores batches of records.
type Sink interface {
	Write(ctx context.Context, records []Record) error
	Close() error
}
