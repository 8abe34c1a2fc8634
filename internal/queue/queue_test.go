package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"photoattend/internal/attendance"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	rec := attendance.Record{
		ID: "r1", UserID: "u1", PhotoURL: "http://m/u1/1.jpg", Status: "present",
		Notes: null.StringFrom("hi"), CheckInTime: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, PublishCheckin(ctx, q, rec))

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	select {
	case msg := <-msgs:
		ev, err := DecodeCheckin(msg)
		require.NoError(t, err)
		assert.Equal(t, "r1", ev.RecordID)
		assert.Equal(t, "hi", ev.Notes)
		assert.True(t, ev.CheckInTime.Equal(rec.CheckInTime))
	case <-time.After(time.Second):
		t.Fatal("no message")
	}

	cancel()
	_, open := <-msgs
	for open {
		_, open = <-msgs
	}
}

func TestInMemoryPublishRespectsContext(t *testing.T) {
	q := NewInMemory(0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := q.Publish(ctx, Message{Type: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDecodeCheckinRejects(t *testing.T) {
	_, err := DecodeCheckin(Message{Type: "other"})
	assert.Error(t, err)
	_, err = DecodeCheckin(Message{Type: TypeCheckinCreated, Body: []byte{0xc1}})
	assert.Error(t, err)
}
