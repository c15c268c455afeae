package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/ips-core/internal/reading"
)

// PublishLatest publishes r retained on TopicLatest, so a subscriber gets
// the current reading as soon as it subscribes. The payload is the
// GET /sensor-data body.
func (c *Client) PublishLatest(ctx context.Context, r reading.Reading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding reading: %w", err)
	}
	if !c.paho.IsConnectionOpen() {
		return ErrNotConnected
	}
	return wait(ctx, c.paho.Publish(TopicLatest, c.qos, true, payload), ErrPublishFailed)
}

// SubscribeUploads passes every payload published on TopicUpload to h.
// Handler errors and panics are logged, never propagated to paho.
func (c *Client) SubscribeUploads(ctx context.Context, h UploadHandler) error {
	if !c.paho.IsConnectionOpen() {
		return ErrNotConnected
	}

	c.mu.Lock()
	c.uploads = h
	c.mu.Unlock()

	if err := wait(ctx, c.paho.Subscribe(TopicUpload, c.qos, c.deliver(h)), ErrSubscribeFailed); err != nil {
		c.mu.Lock()
		c.uploads = nil
		c.mu.Unlock()
		return err
	}
	return nil
}

// UnsubscribeUploads stops upload delivery. It is a no-op when no handler
// is registered.
func (c *Client) UnsubscribeUploads(ctx context.Context) error {
	c.mu.Lock()
	had := c.uploads != nil
	c.uploads = nil
	c.mu.Unlock()

	if !had {
		return nil
	}
	if !c.paho.IsConnectionOpen() {
		return ErrNotConnected
	}
	return wait(ctx, c.paho.Unsubscribe(TopicUpload), ErrSubscribeFailed)
}

func (c *Client) deliver(h UploadHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("mqtt upload handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := h(msg.Payload()); err != nil {
			c.log.Warn("mqtt upload handler failed", "topic", msg.Topic(), "error", err)
		}
	}
}
