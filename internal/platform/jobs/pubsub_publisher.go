package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/upfront-market/api/internal/services"
)

// PubSubOrderEventPublisher publishes order lifecycle events to a Pub/Sub topic.
type PubSubOrderEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubOrderEventPublisher constructs a Pub/Sub backed order event publisher.
func NewPubSubOrderEventPublisher(topic *pubsub.Topic) (*PubSubOrderEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order publisher: topic is required")
	}
	return &PubSubOrderEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishOrderEvent sends the event and waits for the server-assigned message id.
func (p *PubSubOrderEventPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub order publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal order event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", event.Type)
	setAttr(attrs, "orderOid", event.OID)
	setAttr(attrs, "paymentMethod", event.PaymentMethod)
	setAttr(attrs, "paymentStatus", event.PaymentStatus)

	msg := &pubsub.Message{Data: data, Attributes: attrs}
	// Events for one order stay ordered when the topic enables message ordering.
	if p.topic.EnableMessageOrdering {
		msg.OrderingKey = event.OID
	}

	id, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		if p.topic.EnableMessageOrdering {
			p.topic.ResumePublish(event.OID)
		}
		return "", fmt.Errorf("publish order event: %w", err)
	}
	return id, nil
}

// Close flushes pending messages and stops the topic's background goroutines.
func (p *PubSubOrderEventPublisher) Close() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
