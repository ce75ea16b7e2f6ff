// Package mqtt pushes menu changes to display clients over an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/platter/internal/notify"
)

const (
	DefaultBrokerURL = "tcp://0.0.0.0:1883"
	TopicPrefix      = "platter/menu"
	qos              = 1

	// DefaultPublishTimeout bounds the wait for a broker acknowledgement. With
	// auto reconnect a publish made during an outage is queued and its token
	// only completes once the broker is back.
	DefaultPublishTimeout = 5 * time.Second
)

var ErrPublishTimeout = errors.New("mqtt publish not acknowledged in time")

var connectHandler paho.OnConnectHandler = func(client paho.Client) {
	log.Info().Msg("Connected to MQTT broker")
}

var connectLostHandler paho.ConnectionLostHandler = func(client paho.Client, err error) {
	log.Warn().Err(err).Msg("MQTT connection lost")
}

// Connect opens a client to brokerURL that reconnects on its own after the
// first successful connection.
func Connect(brokerURL, clientID string) (paho.Client, error) {
	if brokerURL == "" {
		brokerURL = DefaultBrokerURL
	}
	opts := paho.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.OnConnect = connectHandler
	opts.OnConnectionLost = connectLostHandler

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	log.Info().Str("broker", brokerURL).Str("client_id", clientID).Msg("MQTT client initialized")
	return client, nil
}

// Topic is where events of the given type are published.
func Topic(typ notify.EventType) string {
	return fmt.Sprintf("%s/%s", TopicPrefix, typ)
}

type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Publisher sends scheduler events to the broker. Activation events are
// retained so a display that connects later still gets the current menu.
type Publisher struct {
	client  publishClient
	timeout time.Duration
}

var _ notify.Publisher = (*Publisher)(nil)

func NewPublisher(client paho.Client) *Publisher {
	return &Publisher{client: client, timeout: DefaultPublishTimeout}
}

func (p *Publisher) Publish(ctx context.Context, ev notify.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	topic := Topic(ev.Type)
	token := p.client.Publish(topic, qos, ev.Type == notify.EventActivated, payload)

	timeout := p.timeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: %s after %s", ErrPublishTimeout, topic, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	log.Debug().Str("topic", topic).Msg("published event to MQTT")
	return nil
}
