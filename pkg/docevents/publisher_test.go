package docevents

import (
	"context"
	"errors"
	"testing"
	"time"

	"doc-assembler-be/internal/pkg/logger"
	pkgEvents "doc-assembler-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	events []pkgEvents.Event
	err    error
}

func (s *recordingSink) Publish(ctx context.Context, event pkgEvents.Event) error {
	s.events = append(s.events, event)
	return s.err
}

func TestPublishDocumentFinalized(t *testing.T) {
	sink := &recordingSink{}
	p := NewPublisher(sink, logger.NewNopLogger())

	p.PublishDocumentFinalized(context.Background(), "abc", "plan.docx", 3, 1024)

	require.Len(t, sink.events, 1)
	evt := sink.events[0]
	assert.Equal(t, pkgEvents.TypeDocumentFinalized, evt.EventType())
	assert.Equal(t, "plan.docx", evt.Payload()["filename"])
	assert.Equal(t, 3, evt.Payload()["blocks"])
	assert.False(t, evt.Timestamp().IsZero())
}

func TestPublishSwallowsSinkErrors(t *testing.T) {
	sink := &recordingSink{err: errors.New("nats down")}
	p := NewPublisher(sink, logger.NewNopLogger())

	assert.NotPanics(t, func() {
		p.PublishDocumentStarted(context.Background(), "abc", "plan.docx")
	})
	assert.Len(t, sink.events, 1)
}

func TestNilSinkDropsEvents(t *testing.T) {
	p := NewPublisher(nil, logger.NewNopLogger())

	assert.NotPanics(t, func() {
		p.PublishDocumentEvicted(context.Background(), "abc", "plan.docx", 1)
	})
}

type blockingSink struct {
	hadDeadline bool
}

func (s *blockingSink) Publish(ctx context.Context, event pkgEvents.Event) error {
	_, s.hadDeadline = ctx.Deadline()
	<-ctx.Done()
	return ctx.Err()
}

func TestPublishIsBoundedByTimeout(t *testing.T) {
	sink := &blockingSink{}
	p := NewPublisher(sink, logger.NewNopLogger()).WithTimeout(30 * time.Millisecond)

	start := time.Now()
	p.PublishDocumentStarted(context.Background(), "abc", "plan.docx")

	assert.True(t, sink.hadDeadline)
	assert.Less(t, time.Since(start), time.Second)
}

type ctxSink struct {
	err error
}

func (s *ctxSink) Publish(ctx context.Context, event pkgEvents.Event) error {
	s.err = ctx.Err()
	return nil
}

func TestPublishIgnoresCallerCancellation(t *testing.T) {
	sink := &ctxSink{}
	p := NewPublisher(sink, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.PublishDocumentFinalized(ctx, "abc", "plan.docx", 1, 10)

	assert.NoError(t, sink.err)
}
