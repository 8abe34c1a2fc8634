package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photoattend/internal/queue"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool { <-t.done; return true }

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	token        mqtt.Token
	sent         []published
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return c.token
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func event() queue.CheckinEvent {
	return queue.CheckinEvent{
		RecordID: "r1", UserID: "u1", PhotoURL: "http://m/u1/1.jpg", Status: "present",
		CheckInTime: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestMQTTNotify(t *testing.T) {
	client := &fakeClient{token: doneToken(nil)}
	n := newMQTT(client, "attendance/checkins/")

	require.NoError(t, n.Notify(context.Background(), event()))
	require.Len(t, client.sent, 1)
	assert.Equal(t, "attendance/checkins/u1", client.sent[0].topic)
	assert.Equal(t, byte(1), client.sent[0].qos)

	var got queue.CheckinEvent
	require.NoError(t, json.Unmarshal(client.sent[0].payload, &got))
	assert.Equal(t, "r1", got.RecordID)

	n.Close()
	assert.True(t, client.disconnected)
}

func TestMQTTNotifyErrors(t *testing.T) {
	n := newMQTT(&fakeClient{token: doneToken(errors.New("not connected"))}, "t")
	err := n.Notify(context.Background(), event())
	assert.ErrorContains(t, err, "not connected")

	pending := &fakeToken{done: make(chan struct{})}
	n = newMQTT(&fakeClient{token: pending}, "t")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.Notify(ctx, event()), context.Canceled)
}

func TestLogNotify(t *testing.T) {
	var buf bytes.Buffer
	n := NewLog(slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, n.Notify(context.Background(), event()))
	assert.Contains(t, buf.String(), "record_id=r1")
	assert.Contains(t, buf.String(), "user_id=u1")
}
