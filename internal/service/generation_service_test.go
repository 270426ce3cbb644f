package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"doc-assembler-be/internal/dto"
	"doc-assembler-be/internal/pkg/logger"
	"doc-assembler-be/pkg/dify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGenerationService(t *testing.T, handler http.HandlerFunc) IGenerationService {
	return newGenerationServiceWithIdle(t, time.Second, handler)
}

func newGenerationServiceWithIdle(t *testing.T, idle time.Duration, handler http.HandlerFunc) IGenerationService {
	t.Helper()
	upstream := httptest.NewServer(handler)
	t.Cleanup(upstream.Close)

	log := logger.NewNopLogger()
	svc := NewGenerationService(dify.NewClient(upstream.URL, "key", idle), log, log).(*generationService)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC) }
	return svc
}

func collect(t *testing.T, relay *Relay) []map[string]interface{} {
	t.Helper()
	var frames []map[string]interface{}
	err := relay.Run(func(frame []byte) error {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(frame, &m))
		frames = append(frames, m)
		return nil
	})
	require.NoError(t, err)
	return frames
}

func TestRelayForwardsWorkflowRun(t *testing.T) {
	received := make(chan dify.WorkflowRequest, 1)
	svc := newGenerationService(t, func(w http.ResponseWriter, r *http.Request) {
		var req dify.WorkflowRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		received <- req

		fmt.Fprint(w, "data: {\"event\":\"workflow_started\",\"task_id\":\"t1\"}\n\n")
		fmt.Fprint(w, "data: {\"event\":\"text_chunk\",\"data\":{\"text\":\"# 概述\"}}\n\n")
		fmt.Fprint(w, "data: {broken\n\n")
		fmt.Fprint(w, "data: {\"event\":\"text_chunk\",\"data\":{\"text\":\"\\n<b>正文</b>\"}}\n\n")
		fmt.Fprint(w, "data: {\"event\":\"done\"}\n\n")
	})

	relay, err := svc.Open(context.Background(), &dto.GenerateRequest{Name: `"Project X"`})
	require.NoError(t, err)
	defer relay.Close()

	req := <-received
	assert.Equal(t, "Project X", req.Inputs["name"])
	assert.Equal(t, dify.ResponseModeStreaming, req.ResponseMode)
	assert.Equal(t, "user_20240601083000", req.User)

	frames := collect(t, relay)
	require.Len(t, frames, 4)

	assert.Equal(t, "workflow_started", frames[0]["event"])
	assert.Equal(t, "t1", frames[0]["task_id"])

	assert.Equal(t, dto.FrameTypeText, frames[1]["type"])
	assert.Equal(t, "# 概述", frames[1]["content"])
	assert.Equal(t, "# 概述", frames[1]["full_text"])

	assert.Equal(t, "# 概述\n<b>正文</b>", frames[2]["full_text"])

	assert.Equal(t, dto.FrameTypeDone, frames[3]["type"])
	assert.Equal(t, "# 概述\n<b>正文</b>", frames[3]["full_text"])
	assert.Equal(t, "# 概述\n<b>正文</b>", relay.FullText())
}

func TestOpenStripsOnlySurroundingQuotes(t *testing.T) {
	received := make(chan dify.WorkflowRequest, 1)
	svc := newGenerationService(t, func(w http.ResponseWriter, r *http.Request) {
		var req dify.WorkflowRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		received <- req
	})

	relay, err := svc.Open(context.Background(), &dto.GenerateRequest{Name: `""Project "X" Phase""`})
	require.NoError(t, err)
	defer relay.Close()

	req := <-received
	assert.Equal(t, `Project "X" Phase`, req.Inputs["name"])
}

func TestRelayFramesKeepMarkupLiteral(t *testing.T) {
	svc := newGenerationService(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"event\":\"text_chunk\",\"data\":{\"text\":\"<a&b>\"}}\n\n")
	})

	relay, err := svc.Open(context.Background(), &dto.GenerateRequest{Name: "x"})
	require.NoError(t, err)
	defer relay.Close()

	var raw []byte
	require.NoError(t, relay.Run(func(frame []byte) error {
		raw = frame
		return nil
	}))
	assert.Contains(t, string(raw), `"content":"<a&b>"`)
}

func TestOpenRequiresName(t *testing.T) {
	svc := newGenerationService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called")
	})

	for _, name := range []string{"", `""`} {
		_, err := svc.Open(context.Background(), &dto.GenerateRequest{Name: name})
		var badInput *BadInputError
		assert.True(t, errors.As(err, &badInput), name)
	}
}

func TestOpenSurfacesUpstreamError(t *testing.T) {
	svc := newGenerationService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "workflow unavailable")
	})

	_, err := svc.Open(context.Background(), &dto.GenerateRequest{Name: "x"})
	var upstreamErr *dify.UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, "workflow unavailable", upstreamErr.Detail())
}

func TestRelayStopsWhenClientGoesAway(t *testing.T) {
	svc := newGenerationService(t, func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 3; i++ {
			fmt.Fprintf(w, "data: {\"event\":\"text_chunk\",\"data\":{\"text\":\"%d\"}}\n\n", i)
		}
	})

	relay, err := svc.Open(context.Background(), &dto.GenerateRequest{Name: "x"})
	require.NoError(t, err)
	defer relay.Close()

	gone := errors.New("client disconnected")
	calls := 0
	err = relay.Run(func(frame []byte) error {
		calls++
		return gone
	})
	assert.ErrorIs(t, err, gone)
	assert.Equal(t, 1, calls)
}

func TestRelayReportsStreamFailureInBand(t *testing.T) {
	svc := newGenerationServiceWithIdle(t, 200*time.Millisecond, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"event\":\"text_chunk\",\"data\":{\"text\":\"a\"}}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})

	relay, err := svc.Open(context.Background(), &dto.GenerateRequest{Name: "x"})
	require.NoError(t, err)
	defer relay.Close()

	var frames []map[string]interface{}
	err = relay.Run(func(frame []byte) error {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(frame, &m))
		frames = append(frames, m)
		return nil
	})
	assert.ErrorIs(t, err, dify.ErrIdleTimeout)
	require.Len(t, frames, 2)
	assert.Equal(t, dto.FrameTypeError, frames[1]["type"])
}
