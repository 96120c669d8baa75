package mqttbridge

import (
	"fmt"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/shimmeringbee/pda/config"
	"time"
)

const DefaultConnectTimeout = 10 * time.Second
const DefaultPublishTimeout = 5 * time.Second
const disconnectQuiesceMs = 250

// Handler is called with messages received on a subscribed topic.
type Handler func(topic string, payload []byte)

// Client is the subset of an MQTT client the bridge uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, h Handler) error
	Disconnect()
}

type PahoClient struct {
	cli mqtt.Client
}

var _ Client = (*PahoClient)(nil)

// Will is published by the broker on behalf of the client if the connection is lost.
type Will struct {
	Topic   string
	Payload string
}

func clientOptions(cfg config.MQTTConfig, will Will) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetConnectTimeout(DefaultConnectTimeout)
	opts.SetOrderMatters(false)

	if will.Topic != "" {
		opts.SetWill(will.Topic, will.Payload, byte(cfg.QoS), true)
	}

	return opts
}

// Connect establishes a connection to the configured broker.
func Connect(cfg config.MQTTConfig, will Will) (*PahoClient, error) {
	cli := mqtt.NewClient(clientOptions(cfg, will))

	t := cli.Connect()
	if !t.WaitTimeout(DefaultConnectTimeout) {
		return nil, fmt.Errorf("connecting to %s: timed out", cfg.Broker)
	}

	if err := t.Error(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Broker, err)
	}

	return &PahoClient{cli: cli}, nil
}

func (c *PahoClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	t := c.cli.Publish(topic, qos, retained, payload)
	if !t.WaitTimeout(DefaultPublishTimeout) {
		return fmt.Errorf("publishing to %s: timed out", topic)
	}

	return t.Error()
}

func (c *PahoClient) Subscribe(topic string, qos byte, h Handler) error {
	t := c.cli.Subscribe(topic, qos, func(_ mqtt.Client, m mqtt.Message) {
		h(m.Topic(), m.Payload())
	})

	if !t.WaitTimeout(DefaultPublishTimeout) {
		return fmt.Errorf("subscribing to %s: timed out", topic)
	}

	return t.Error()
}

func (c *PahoClient) Disconnect() {
	c.cli.Disconnect(disconnectQuiesceMs)
}
