package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"doc-assembler-be/internal/dto"
	"doc-assembler-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanOpener struct {
	paths chan string
	err   error
}

func (o *chanOpener) Open(path string) error {
	o.paths <- path
	return o.err
}

func TestConsumerOpensFinalizedArtifacts(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	opener := &chanOpener{paths: make(chan string, 2), err: errors.New("no launcher")}
	consumer := NewConsumerService(pubSub, "finalized", opener, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, consumer.Consume(ctx))

	publisher := NewPublisherService("finalized", pubSub)
	require.NoError(t, pubSub.Publish("finalized", message.NewMessage(watermill.NewUUID(), []byte("not json"))))
	require.NoError(t, publisher.Publish(ctx, dto.ArtifactFinalizedMessage{SessionKey: "s", Filename: "a.docx", Path: "/tmp/a.docx"}))
	require.NoError(t, publisher.Publish(ctx, dto.ArtifactFinalizedMessage{SessionKey: "s", Filename: "b.docx", Path: "/tmp/b.docx"}))

	for _, want := range []string{"/tmp/a.docx", "/tmp/b.docx"} {
		select {
		case got := <-opener.paths:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("expected %s to be opened", want)
		}
	}
}
