package mqtt

import (
	"encoding/json"
	"fmt"
	"net/url"

	chlog "github.com/charmbracelet/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/wamphlett/backdrop-pi-controller/config"
	"github.com/wamphlett/backdrop-pi-controller/pkg/engine"
)

// payload represents the JSON payload which is published
type payload struct {
	Event           string
	CurrentImage    string
	PreviousImage   string `json:",omitempty"`
	Fading          bool
	AccentPrimary   string
	AccentSecondary string
}

// Publisher publishes engine state to an MQTT broker
type Publisher struct {
	client mqtt.Client
	prefix string
}

// New creates a new MQTT Publisher connected to the configured broker
func New(cfg *config.MQTT) (*Publisher, error) {
	// connect to the MQTT broker
	options := mqtt.NewClientOptions()
	options.Servers = []*url.URL{
		{
			Scheme: cfg.Scheme,
			Host:   cfg.Host,
		},
	}
	options.SetClientID(cfg.ClientID)
	client := mqtt.NewClient(options)
	t := client.Connect()
	_ = t.Wait()
	if t.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", t.Error())
	}

	return &Publisher{
		client: client,
		prefix: cfg.TopicPrefix,
	}, nil
}

// Publish publishes a JSON payload to the configured MQTT broker
func (p *Publisher) Publish(event engine.Event, state engine.State) {
	marshaledPayload, err := json.Marshal(payload{
		Event:           string(event),
		CurrentImage:    state.CurrentImage,
		PreviousImage:   state.PreviousImage,
		Fading:          state.Fading,
		AccentPrimary:   state.Accent.Primary.String(),
		AccentSecondary: state.Accent.Secondary.String(),
	})
	if err != nil {
		chlog.Error("failed to marshal MQTT payload", "error", err)
		return
	}

	// publish a message to the MQTT broker
	topic := fmt.Sprintf("%s/ENGINE/%s", p.prefix, event)
	t := p.client.Publish(topic, 1, true, marshaledPayload)

	// Check for errors asynchronously
	go func() {
		_ = t.Wait()
		if t.Error() != nil {
			chlog.Error("failed to publish MQTT message", "topic", topic, "error", t.Error())
		}
	}()
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
