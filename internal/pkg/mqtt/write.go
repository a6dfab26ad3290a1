package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gosimple/slug"

	"github.com/anicoll/dronelink/internal/pkg/model"
)

const (
	stateOnline  = "online"
	stateOffline = "offline"
)

func (s *service) Write(ctx context.Context, events model.DeviceEvents) error {
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.PublishEvent(event); err != nil {
			return err
		}
	}
	return nil
}

// PublishEvent publishes the event under the device's topic. Discovery and loss
// also update the retained availability topic.
func (s *service) PublishEvent(event model.DeviceEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := s.publish(s.eventTopic(event), 0, false, payload); err != nil {
		return err
	}

	switch event.Kind {
	case model.EventDiscovered:
		return s.publish(s.stateTopic(event.UID), 1, true, []byte(stateOnline))
	case model.EventLost:
		return s.publish(s.stateTopic(event.UID), 1, true, []byte(stateOffline))
	}
	return nil
}

func (s *service) publish(topic string, qos byte, retained bool, payload []byte) error {
	token := s.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func deviceIdentifier(uid uint64) string {
	return slug.Make(fmt.Sprintf("device %016x", uid))
}

func (s *service) eventTopic(event model.DeviceEvent) string {
	return fmt.Sprintf("%s/%s/events/%s", s.prefix, deviceIdentifier(event.UID), event.Kind)
}

func (s *service) stateTopic(uid uint64) string {
	return fmt.Sprintf("%s/%s/state", s.prefix, deviceIdentifier(uid))
}
