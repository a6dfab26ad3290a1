package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/dronelink/internal/pkg/model"
)

type fakeToken struct {
	err      error
	complete bool
}

func (t *fakeToken) Wait() bool                     { return t.complete }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.complete }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient records publishes. Methods not overridden panic through the nil embed.
type fakeClient struct {
	paho_mqtt.Client

	mu       sync.Mutex
	messages []published
	token    *fakeToken
}

func (c *fakeClient) Connect() paho_mqtt.Token {
	return c.token
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho_mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return c.token
}

func TestService_Write(t *testing.T) {
	client := &fakeClient{token: &fakeToken{complete: true}}
	svc := New(client, "Drone Link")

	discovered := model.NewDeviceEvent(model.EventDiscovered, 0x2a, 1, 1)
	command := model.NewDeviceEvent(model.EventCommand, 0x2a, 1, 1).WithCommand(model.CommandSetMessageInterval, "success")
	require.NoError(t, svc.Write(context.Background(), model.DeviceEvents{discovered, command}))

	require.Len(t, client.messages, 3)
	assert.Equal(t, "drone-link/device-000000000000002a/events/discovered", client.messages[0].topic)
	assert.False(t, client.messages[0].retained)
	assert.Equal(t, published{topic: "drone-link/device-000000000000002a/state", qos: 1, retained: true, payload: []byte("online")}, client.messages[1])
	assert.Equal(t, "drone-link/device-000000000000002a/events/command", client.messages[2].topic)

	var got model.DeviceEvent
	require.NoError(t, json.Unmarshal(client.messages[2].payload, &got))
	assert.Equal(t, command.ID, got.ID)
	assert.Equal(t, "success", got.Result)
}

func TestService_Lost(t *testing.T) {
	client := &fakeClient{token: &fakeToken{complete: true}}
	svc := New(client, "")

	require.NoError(t, svc.PublishEvent(model.NewDeviceEvent(model.EventLost, 1, 1, 1)))
	require.Len(t, client.messages, 2)
	assert.Equal(t, "dronelink/device-0000000000000001/state", client.messages[1].topic)
	assert.Equal(t, []byte("offline"), client.messages[1].payload)
}

func TestService_PublishErrors(t *testing.T) {
	tests := map[string]struct {
		token   *fakeToken
		wantErr string
	}{
		"timeout": {token: &fakeToken{}, wantErr: "timed out"},
		"broker":  {token: &fakeToken{complete: true, err: errors.New("not authorised")}, wantErr: "not authorised"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			svc := New(&fakeClient{token: tt.token}, "")
			err := svc.Write(context.Background(), model.DeviceEvents{model.NewDeviceEvent(model.EventCommand, 1, 1, 1)})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestService_Connect(t *testing.T) {
	tests := map[string]struct {
		token   *fakeToken
		wantErr error
	}{
		"connected": {token: &fakeToken{complete: true}},
		"timeout":   {token: &fakeToken{}, wantErr: errConnectTimeout},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := New(&fakeClient{token: tt.token}, "").Connect()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
