package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"doc-assembler-be/internal/dto"
	"doc-assembler-be/internal/pkg/logger"
	"doc-assembler-be/pkg/dify"

	"github.com/google/uuid"
)

type IGenerationService interface {
	Open(ctx context.Context, req *dto.GenerateRequest) (*Relay, error)
}

type generationService struct {
	client     *dify.Client
	logger     logger.ILogger
	transcript logger.ILogger
	now        func() time.Time
}

// NewGenerationService relays workflow runs. transcript receives one entry
// per finished run with the full generated text.
func NewGenerationService(client *dify.Client, logger logger.ILogger, transcript logger.ILogger) IGenerationService {
	return &generationService{
		client:     client,
		logger:     logger,
		transcript: transcript,
		now:        time.Now,
	}
}

// Open starts the upstream run. Errors returned here happen before any
// frame is sent and can still be answered with a regular error response.
func (s *generationService) Open(ctx context.Context, req *dto.GenerateRequest) (*Relay, error) {
	name := strings.Trim(req.Name, `"`)
	if strings.TrimSpace(name) == "" {
		return nil, &BadInputError{Reason: "name is required"}
	}

	requestID := uuid.NewString()
	user := "user_" + s.now().Format("20060102150405")

	s.logger.Info("GENERATION", "Starting workflow run", map[string]interface{}{
		"request_id": requestID,
		"name":       name,
		"user":       user,
	})

	stream, err := s.client.RunWorkflowStream(ctx, &dify.WorkflowRequest{
		Inputs:       map[string]string{"name": name},
		ResponseMode: dify.ResponseModeStreaming,
		User:         user,
	})
	if err != nil {
		s.logger.Error("GENERATION", "Workflow run rejected", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		return nil, err
	}

	return &Relay{
		stream:     stream,
		requestID:  requestID,
		name:       name,
		logger:     s.logger,
		transcript: s.transcript,
	}, nil
}

// Relay re-frames one upstream run for the client.
type Relay struct {
	stream     *dify.Stream
	requestID  string
	name       string
	logger     logger.ILogger
	transcript logger.ILogger

	fullText strings.Builder
}

// Run forwards frames to emit until the upstream finishes, fails, or emit
// returns an error (client gone). Upstream failures after the first frame
// are reported in-band as an error frame.
func (r *Relay) Run(emit func(frame []byte) error) error {
	frames := 0
	defer func() {
		r.transcript.Info("GENERATION", "Workflow run finished", map[string]interface{}{
			"request_id": r.requestID,
			"name":       r.name,
			"frames":     frames,
			"full_text":  r.fullText.String(),
		})
	}()

	for {
		evt, err := r.stream.Next()
		if err != nil {
			var malformed *dify.MalformedEventError
			switch {
			case errors.Is(err, io.EOF):
				return nil
			case errors.As(err, &malformed):
				r.logger.Warn("GENERATION", "Skipping malformed upstream event", map[string]interface{}{
					"request_id": r.requestID,
					"line":       malformed.Line,
				})
				continue
			}

			r.logger.Error("GENERATION", "Upstream stream failed", map[string]interface{}{
				"request_id": r.requestID,
				"error":      err.Error(),
			})
			frame, encErr := encodeFrame(dto.ErrorFrame{Type: dto.FrameTypeError, Message: err.Error()})
			if encErr == nil {
				_ = emit(frame)
			}
			return err
		}

		frame, err := r.frame(evt)
		if err != nil {
			return err
		}
		if err := emit(frame); err != nil {
			return err
		}
		frames++
	}
}

func (r *Relay) frame(evt *dify.Event) ([]byte, error) {
	if text, ok := evt.Text(); ok {
		r.fullText.WriteString(text)
		return encodeFrame(dto.TextFrame{
			Type:     dto.FrameTypeText,
			Content:  text,
			FullText: r.fullText.String(),
		})
	}
	if evt.Event == dify.EventDone {
		return encodeFrame(dto.DoneFrame{
			Type:     dto.FrameTypeDone,
			FullText: r.fullText.String(),
		})
	}
	return []byte(evt.Raw), nil
}

// FullText is the text accumulated so far.
func (r *Relay) FullText() string {
	return r.fullText.String()
}

func (r *Relay) Close() error {
	return r.stream.Close()
}

// encodeFrame keeps non-ASCII and markup characters literal.
func encodeFrame(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
