package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"capteur/internal/logger"
	"capteur/internal/models"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttQoS           = 1
	mqttConnectBudget = 10 * time.Second
	mqttConnectTries  = 5
	mqttQuiesceMs     = 250
)

type MQTTConfig struct {
	Broker      string // tcp://host:1883
	ClientID    string
	TopicPrefix string
}

// mqttPublisher is the part of mqtt.Client the sink uses.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes each measure as JSON on <prefix>/<capteur>/measure.
type MQTT struct {
	client mqttPublisher
	prefix string
}

// NewMQTT connects to the broker, retrying with exponential backoff.
func NewMQTT(ctx context.Context, cfg MQTTConfig, log *logger.Logger) (*MQTT, error) {
	if log == nil {
		log = logger.Nop()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = mqttConnectBudget

	var client mqtt.Client
	err := backoff.RetryNotify(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, mqttConnectTries-1), ctx),
		func(err error, next time.Duration) {
			log.Warnw("mqtt_connect_failed", "broker", cfg.Broker, "retry_in", next, "err", err)
		})
	if err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	log.Infow("mqtt_connected", "broker", cfg.Broker)
	return newMQTT(client, cfg.TopicPrefix), nil
}

func newMQTT(client mqttPublisher, prefix string) *MQTT {
	if prefix == "" {
		prefix = "capteur"
	}
	return &MQTT{client: client, prefix: prefix}
}

func (m *MQTT) Name() string { return "mqtt" }

// Topic returns the topic a capteur's measures are published on.
func (m *MQTT) Topic(capteur string) string {
	return fmt.Sprintf("%s/%s/measure", m.prefix, capteur)
}

func (m *MQTT) Write(ctx context.Context, rec models.MeasureRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal measure: %w", err)
	}
	token := m.client.Publish(m.Topic(rec.CapteurID), mqttQoS, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt publish: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MQTT) Close() {
	m.client.Disconnect(mqttQuiesceMs)
}
