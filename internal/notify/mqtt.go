package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"photoattend/internal/queue"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
	qosAtLeastOnce = byte(1)
)

// publisher is the part of mqtt.Client the notifier uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes each event as JSON to <topic>/<userId>.
type MQTT struct {
	client publisher
	topic  string
}

// DialMQTT connects to broker (host:port) and returns a notifier publishing under topic.
func DialMQTT(broker, clientID, topic string) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", broker))
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		slog.Info("mqtt connection established", "broker", broker, "client_id", clientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		slog.Warn("mqtt connection lost, will auto-reconnect", "broker", broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	slog.Info("connecting to mqtt broker", "broker", broker)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errors.New("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	return newMQTT(client, topic), nil
}

func newMQTT(client publisher, topic string) *MQTT {
	return &MQTT{client: client, topic: strings.TrimRight(topic, "/")}
}

// Topic returns the topic an event for userID is published to.
func (n *MQTT) Topic(userID string) string {
	return n.topic + "/" + userID
}

func (n *MQTT) Notify(ctx context.Context, ev queue.CheckinEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	token := n.client.Publish(n.Topic(ev.UserID), qosAtLeastOnce, false, payload)
	select {
	case <-token.Done():
	case <-time.After(publishTimeout):
		return errors.New("publish timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// Close disconnects, giving in-flight messages a quarter second.
func (n *MQTT) Close() {
	n.client.Disconnect(250)
}
