package service

import (
	"context"
	"encoding/json"

	"paperchat-be/internal/pkg/logger"
	"paperchat-be/pkg/events"
	"paperchat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the in-process event topic and relays turn
// events to NATS for external subscribers. Relay failures never block the
// turn pipeline: events are fire-and-forget past the local bus.
type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	relay     *nats.Publisher
	logger    logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	relay *nats.Publisher,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		relay:     relay,
		logger:    log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var event events.BaseEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		cs.logger.Error("Consumer", "failed to unmarshal event", map[string]interface{}{
			"error": err.Error(),
		})
		// invalid payloads are acked to prevent infinite redelivery
		msg.Ack()
		return
	}

	if cs.relay != nil {
		if err := cs.relay.Publish(ctx, event); err != nil {
			cs.logger.Warn("Consumer", "event relay failed", map[string]interface{}{
				"event": event.Type,
				"error": err.Error(),
			})
		}
	}

	cs.logger.Info("Consumer", "event processed", map[string]interface{}{
		"event": event.Type,
	})
	msg.Ack()
}
