package service

import (
	"context"

	"paperchat-be/internal/dto"
	"paperchat-be/internal/pkg/logger"
	"paperchat-be/internal/repository/memory"
	"paperchat-be/pkg/events"
	"paperchat-be/pkg/nats"

	"github.com/google/uuid"
)

type IEventListenerService interface {
	Start() error
}

// eventListenerService consumes turn lifecycle events back off NATS. It
// closes the loop the consumer service opens: deletions performed on any
// instance reach every client still viewing the conversation, and
// completed turns land in the audit log.
type eventListenerService struct {
	subscriber   *nats.Subscriber
	snapshotRepo *memory.SnapshotRepository
	sink         StreamSink
	logger       logger.ILogger
}

func NewEventListenerService(
	subscriber *nats.Subscriber,
	snapshotRepo *memory.SnapshotRepository,
	sink StreamSink,
	log logger.ILogger,
) IEventListenerService {
	return &eventListenerService{
		subscriber:   subscriber,
		snapshotRepo: snapshotRepo,
		sink:         sink,
		logger:       log,
	}
}

func (s *eventListenerService) Start() error {
	if err := s.subscriber.Subscribe("events."+events.TypeConversationDeleted, "conversation-deleted-worker", s.onConversationDeleted); err != nil {
		return err
	}
	return s.subscriber.Subscribe("events."+events.TypeTurnCompleted, "turn-audit-worker", s.onTurnCompleted)
}

func (s *eventListenerService) onConversationDeleted(ctx context.Context, event events.Event) error {
	payload := event.Payload()
	conversationId, err := uuid.Parse(stringField(payload, "conversation_id"))
	if err != nil {
		s.logger.Warn("EventListener", "deleted event missing conversation_id", map[string]interface{}{
			"payload": payload,
		})
		return nil
	}
	clientId, err := uuid.Parse(stringField(payload, "client_id"))
	if err != nil {
		return nil
	}

	// snapshot delete is idempotent across instances
	s.snapshotRepo.Delete(conversationId.String())

	// only sockets whose live pointer still targets this conversation see the frame
	s.sink.Deliver(clientId, &dto.StreamFrame{
		Type:           dto.StreamFrameDeleted,
		ConversationId: conversationId,
	})
	return nil
}

func (s *eventListenerService) onTurnCompleted(ctx context.Context, event events.Event) error {
	s.logger.Info("EventListener", "turn completed", event.Payload())
	return nil
}

func stringField(payload map[string]interface{}, key string) string {
	value, _ := payload[key].(string)
	return value
}
