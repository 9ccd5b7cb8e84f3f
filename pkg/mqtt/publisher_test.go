package mqtt

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/wamphlett/backdrop-pi-controller/pkg/accent"
	"github.com/wamphlett/backdrop-pi-controller/pkg/engine"
)

type stubToken struct{}

func (t *stubToken) Wait() bool                     { return true }
func (t *stubToken) WaitTimeout(time.Duration) bool { return true }
func (t *stubToken) Error() error                   { return nil }

func (t *stubToken) Done() <-chan struct{} {
	done := make(chan struct{})
	close(done)
	return done
}

type capturedMessage struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type stubClient struct {
	mqtt.Client

	mu          sync.Mutex
	messages    []capturedMessage
	disconnects int
}

func (c *stubClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, capturedMessage{
		topic:    topic,
		qos:      qos,
		retained: retained,
		payload:  payload.([]byte),
	})
	return &stubToken{}
}

func (c *stubClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
}

func (c *stubClient) captured() []capturedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]capturedMessage(nil), c.messages...)
}

func TestPublishFormatsTopicAndPayload(t *testing.T) {
	t.Parallel()
	client := &stubClient{}
	p := &Publisher{client: client, prefix: "BACKDROP"}

	p.Publish(engine.EventRotate, engine.State{
		CurrentImage:  "b.png",
		PreviousImage: "a.png",
		Fading:        true,
		Accent:        accent.Default,
	})

	messages := client.captured()
	require.Len(t, messages, 1)
	require.Equal(t, "BACKDROP/ENGINE/ROTATE", messages[0].topic)
	require.Equal(t, byte(1), messages[0].qos)
	require.True(t, messages[0].retained)

	var decoded payload
	require.NoError(t, json.Unmarshal(messages[0].payload, &decoded))
	require.Equal(t, "ROTATE", decoded.Event)
	require.Equal(t, "b.png", decoded.CurrentImage)
	require.Equal(t, "a.png", decoded.PreviousImage)
	require.True(t, decoded.Fading)
	require.Equal(t, "85 37 131", decoded.AccentPrimary)
	require.Equal(t, "253 185 39", decoded.AccentSecondary)
}

func TestPublishOmitsPreviousImageOutsideTransitions(t *testing.T) {
	t.Parallel()
	client := &stubClient{}
	p := &Publisher{client: client, prefix: "BACKDROP"}

	p.Publish(engine.EventFadeEnd, engine.State{
		CurrentImage: "b.png",
		Accent:       accent.Default,
	})

	messages := client.captured()
	require.Len(t, messages, 1)
	require.Equal(t, "BACKDROP/ENGINE/FADE_END", messages[0].topic)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(messages[0].payload, &decoded))
	require.NotContains(t, decoded, "PreviousImage")
	require.Equal(t, false, decoded["Fading"])
}

func TestCloseDisconnects(t *testing.T) {
	t.Parallel()
	client := &stubClient{}
	p := &Publisher{client: client, prefix: "BACKDROP"}

	p.Close()

	require.Equal(t, 1, client.disconnects)
}
