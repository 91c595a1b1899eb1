package service

import (
	"context"
	"encoding/json"

	"kb-ingest-be/internal/dto"
	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/pkg/logger"
	"kb-ingest-be/internal/repository/specification"
	"kb-ingest-be/internal/repository/unitofwork"
	"kb-ingest-be/pkg/events"
	pktNats "kb-ingest-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService listens for terminal sync outcomes on the internal
// bus, keeps per-space counters current, and mirrors the outcome onto
// the external NATS stream.
type consumerService struct {
	pubSub         *gochannel.GoChannel
	topicName      string
	uowFactory     unitofwork.RepositoryFactory
	eventPublisher *pktNats.Publisher
	logger         logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:         pubSub,
		topicName:      topicName,
		uowFactory:     uowFactory,
		eventPublisher: eventPublisher,
		logger:         log,
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
	var payload dto.DocumentSyncedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("consumer", "failed to unmarshal sync message", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // malformed messages would loop forever on Nack
		return
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	space, err := uow.KnowledgeSpaceRepository().FindOne(ctx, specification.ByID{ID: payload.KnowledgeSpaceId})
	if err != nil {
		cs.logger.Error("consumer", "failed to load space for sync message", map[string]interface{}{
			"space_id": payload.KnowledgeSpaceId.String(),
			"error":    err.Error(),
		})
		msg.Nack()
		return
	}
	if space == nil {
		// Space deleted while the sync was in flight.
		msg.Ack()
		return
	}

	delta := 0
	if payload.Status == string(entity.DocStatusFinished) {
		delta = 1
	}
	if err := uow.KnowledgeSpaceRepository().RecordSync(ctx, space.Id, delta); err != nil {
		cs.logger.Error("consumer", "failed to record space sync", map[string]interface{}{
			"space_id": space.Id.String(),
			"error":    err.Error(),
		})
		msg.Nack()
		return
	}

	if cs.eventPublisher != nil {
		var evt events.Event
		if payload.Status == string(entity.DocStatusFinished) {
			evt = events.NewDocumentSyncedEvent(
				payload.DocId.String(), payload.KnowledgeSpaceId.String(), payload.Status, payload.Message)
		} else {
			evt = events.NewDocumentFailedEvent(
				payload.DocId.String(), payload.KnowledgeSpaceId.String(), payload.Message)
		}
		if err := cs.eventPublisher.Publish(ctx, evt); err != nil {
			cs.logger.Warn("consumer", "failed to publish lifecycle event", map[string]interface{}{
				"doc_id": payload.DocId.String(),
				"error":  err.Error(),
			})
		}
	}

	cs.logger.Info("consumer", "sync outcome recorded", map[string]interface{}{
		"doc_id":   payload.DocId.String(),
		"space_id": payload.KnowledgeSpaceId.String(),
		"status":   payload.Status,
		"chunks":   payload.ChunkCount,
	})
	msg.Ack()
}
