// Package dify is a client for the streaming workflow API of a Dify server.
package dify

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

const (
	EventTextChunk = "text_chunk"
	EventDone      = "done"

	ResponseModeStreaming = "streaming"
)

var ErrIdleTimeout = errors.New("upstream stream idle timeout")

// UpstreamError is returned when the workflow API rejects the request.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream API error: %d", e.Status)
}

// Detail returns the upstream response body for diagnostics.
func (e *UpstreamError) Detail() string {
	return e.Body
}

func (e *UpstreamError) HTTPStatus() int {
	return http.StatusInternalServerError
}

// MalformedEventError reports a data line whose payload is not JSON. It is
// not fatal; the stream can continue.
type MalformedEventError struct {
	Line string
	Err  error
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed event %q: %v", e.Line, e.Err)
}

func (e *MalformedEventError) Unwrap() error {
	return e.Err
}

type WorkflowRequest struct {
	Inputs       map[string]string `json:"inputs"`
	ResponseMode string            `json:"response_mode"`
	User         string            `json:"user"`
}

// Event is one decoded "data:" frame of the upstream stream.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`

	// Raw is the full JSON payload of the frame.
	Raw json.RawMessage `json:"-"`
}

// Text returns data.text for text chunk events.
func (e *Event) Text() (string, bool) {
	if e.Event != EventTextChunk || len(e.Data) == 0 {
		return "", false
	}
	var data struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil || data.Text == nil {
		return "", false
	}
	return *data.Text, true
}

type Client struct {
	workflowURL string
	apiKey      string
	idleTimeout time.Duration
	httpClient  *http.Client
}

// NewClient creates a workflow client. idleTimeout bounds the silence
// between two upstream lines; zero disables it.
func NewClient(workflowURL, apiKey string, idleTimeout time.Duration) *Client {
	return &Client{
		workflowURL: workflowURL,
		apiKey:      apiKey,
		idleTimeout: idleTimeout,
		// No overall timeout: streams are bounded by ctx and the idle timer.
		httpClient: &http.Client{},
	}
}

// RunWorkflowStream starts a streaming workflow run. Non-2xx responses are
// returned as *UpstreamError before any event is read.
func (c *Client) RunWorkflowStream(ctx context.Context, req *WorkflowRequest) (*Stream, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.workflowURL, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		defer cancel()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(respBody)}
	}

	s := &Stream{
		body:   resp.Body,
		reader: bufio.NewReader(resp.Body),
		cancel: cancel,
		idle:   c.idleTimeout,
	}
	if s.idle > 0 {
		s.timer = time.AfterFunc(s.idle, func() {
			s.timedOut.Store(true)
			cancel()
		})
	}
	return s, nil
}

// Stream reads events from an open workflow run. It is not safe for
// concurrent use.
type Stream struct {
	body     io.ReadCloser
	reader   *bufio.Reader
	cancel   context.CancelFunc
	idle     time.Duration
	timer    *time.Timer
	timedOut atomic.Bool
}

// Next returns the next event. It returns io.EOF when the upstream closes
// the stream and *MalformedEventError for data lines that are not JSON.
func (s *Stream) Next() (*Event, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if s.timer != nil {
			s.timer.Reset(s.idle)
		}
		if err != nil && (err != io.EOF || line == "") {
			if s.timedOut.Load() {
				return nil, ErrIdleTimeout
			}
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read stream: %w", err)
		}

		line = strings.TrimSpace(line)
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "" {
			continue
		}

		var evt Event
		if err := json.Unmarshal([]byte(payload), &evt); err != nil {
			return nil, &MalformedEventError{Line: payload, Err: err}
		}
		evt.Raw = json.RawMessage(payload)
		return &evt, nil
	}
}

// Close stops the idle timer and tears down the upstream connection.
func (s *Stream) Close() error {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.cancel()
	return s.body.Close()
}
