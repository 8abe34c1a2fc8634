package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"photoattend/internal/attendance"
)

// TypeCheckinCreated is published once a check-in record exists.
const TypeCheckinCreated = "checkin.created"

// CheckinEvent announces a stored check-in.
type CheckinEvent struct {
	RecordID    string    `msgpack:"record_id" json:"record_id"`
	UserID      string    `msgpack:"user_id" json:"user_id"`
	PhotoURL    string    `msgpack:"photo_url" json:"photo_url"`
	Status      string    `msgpack:"status" json:"status"`
	Notes       string    `msgpack:"notes,omitempty" json:"notes,omitempty"`
	CheckInTime time.Time `msgpack:"check_in_time" json:"check_in_time"`
}

// EventFromRecord builds the event for a stored record.
func EventFromRecord(rec attendance.Record) CheckinEvent {
	return CheckinEvent{
		RecordID:    rec.ID,
		UserID:      rec.UserID,
		PhotoURL:    rec.PhotoURL,
		Status:      rec.Status,
		Notes:       rec.Notes.String,
		CheckInTime: rec.CheckInTime,
	}
}

// EncodeCheckin wraps an event in a queue message.
func EncodeCheckin(ev CheckinEvent) (Message, error) {
	b, err := msgpack.Marshal(&ev)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: TypeCheckinCreated, Body: b}, nil
}

// DecodeCheckin unwraps a checkin.created message.
func DecodeCheckin(msg Message) (CheckinEvent, error) {
	if msg.Type != TypeCheckinCreated {
		return CheckinEvent{}, fmt.Errorf("queue: unexpected message type %q", msg.Type)
	}
	var ev CheckinEvent
	if err := msgpack.Unmarshal(msg.Body, &ev); err != nil {
		return CheckinEvent{}, fmt.Errorf("queue: decode checkin: %w", err)
	}
	return ev, nil
}

// PublishCheckin encodes and publishes one event.
func PublishCheckin(ctx context.Context, q Queue, rec attendance.Record) error {
	msg, err := EncodeCheckin(EventFromRecord(rec))
	if err != nil {
		return err
	}
	return q.Publish(ctx, msg)
}
