package docevents

import (
	"context"
	"time"

	"doc-assembler-be/internal/pkg/logger"
	pkgEvents "doc-assembler-be/pkg/events"
)

// Sink is the transport events are handed to. *nats.Publisher satisfies it.
type Sink interface {
	Publish(ctx context.Context, event pkgEvents.Event) error
}

// Publisher abstracts lifecycle notifications for assembled documents.
// Publishing is best-effort: failures are logged, never returned.
type Publisher interface {
	PublishDocumentStarted(ctx context.Context, sessionKey, filename string)
	PublishDocumentFinalized(ctx context.Context, sessionKey, filename string, blocks, size int)
	PublishDocumentEvicted(ctx context.Context, sessionKey, filename string, blocks int)
}

// DefaultPublishTimeout bounds a single publish.
const DefaultPublishTimeout = 2 * time.Second

type SinkPublisher struct {
	sink    Sink
	logger  logger.ILogger
	timeout time.Duration
}

// NewPublisher wraps sink. A nil sink yields a publisher that drops events.
func NewPublisher(sink Sink, logger logger.ILogger) *SinkPublisher {
	return &SinkPublisher{
		sink:    sink,
		logger:  logger,
		timeout: DefaultPublishTimeout,
	}
}

// WithTimeout sets how long one publish may take.
func (p *SinkPublisher) WithTimeout(d time.Duration) *SinkPublisher {
	p.timeout = d
	return p
}

func (p *SinkPublisher) PublishDocumentStarted(ctx context.Context, sessionKey, filename string) {
	p.publish(ctx, pkgEvents.TypeDocumentStarted, map[string]interface{}{
		"session_key": sessionKey,
		"filename":    filename,
	})
}

func (p *SinkPublisher) PublishDocumentFinalized(ctx context.Context, sessionKey, filename string, blocks, size int) {
	p.publish(ctx, pkgEvents.TypeDocumentFinalized, map[string]interface{}{
		"session_key": sessionKey,
		"filename":    filename,
		"blocks":      blocks,
		"size_bytes":  size,
	})
}

func (p *SinkPublisher) PublishDocumentEvicted(ctx context.Context, sessionKey, filename string, blocks int) {
	p.publish(ctx, pkgEvents.TypeDocumentEvicted, map[string]interface{}{
		"session_key": sessionKey,
		"filename":    filename,
		"blocks":      blocks,
	})
}

func (p *SinkPublisher) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if p.sink == nil {
		return
	}

	evt := pkgEvents.BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now(),
	}

	// Detached from the caller's cancellation, bounded by p.timeout.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.sink.Publish(ctx, evt); err != nil {
		p.logger.Error("EVENTS", "Failed to publish "+eventType+" event", map[string]interface{}{"error": err.Error()})
	}
}
