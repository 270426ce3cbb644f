package service

import (
	"context"
	"encoding/json"

	"doc-assembler-be/internal/dto"
	"doc-assembler-be/internal/pkg/logger"
	"doc-assembler-be/pkg/opener"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService opens finalized artifacts for the local user. Failures are
// logged only; a finalize never depends on it.
type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	opener     opener.Opener
	logger     logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	opener opener.Opener,
	logger logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		opener:     opener,
		logger:     logger,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(msg *message.Message) {
	// Best-effort side effect: always Ack, never redeliver.
	defer msg.Ack()

	var payload dto.ArtifactFinalizedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("OPENER", "Failed to unmarshal message", map[string]interface{}{"error": err.Error()})
		return
	}

	if err := cs.opener.Open(payload.Path); err != nil {
		cs.logger.Warn("OPENER", "Failed to open artifact, open it manually", map[string]interface{}{
			"path":  payload.Path,
			"error": err.Error(),
		})
		return
	}

	cs.logger.Info("OPENER", "Artifact opened", map[string]interface{}{"path": payload.Path})
}
