package mqtt

import (
	"errors"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gosimple/slug"
)

const (
	defaultTopicPrefix = "dronelink"
	connectTimeout     = 5 * time.Second
	publishTimeout     = 10 * time.Second
)

var errConnectTimeout = errors.New("unable to connect in time")

type service struct {
	client paho_mqtt.Client
	prefix string
}

func New(client paho_mqtt.Client, topicPrefix string) *service {
	prefix := slug.Make(topicPrefix)
	if prefix == "" {
		prefix = defaultTopicPrefix
	}
	return &service{
		client: client,
		prefix: prefix,
	}
}

// NewClient builds a paho client for host with an auto-reconnecting session.
func NewClient(host, username, password string) paho_mqtt.Client {
	opts := paho_mqtt.NewClientOptions().
		AddBroker(host).
		SetClientID("dronelink").
		SetUsername(username).
		SetPassword(password).
		SetAutoReconnect(true).
		SetConnectRetry(true)
	return paho_mqtt.NewClient(opts)
}

func (s *service) Connect() error {
	token := s.client.Connect()
	res := token.WaitTimeout(connectTimeout)
	if err := token.Error(); err != nil {
		return err
	}
	if res {
		return nil
	}
	return errConnectTimeout
}

func (s *service) Close() {
	s.client.Disconnect(250)
}
