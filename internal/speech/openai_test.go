package speech

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mossy-p/voice-broker/config"
	"github.com/mossy-p/voice-broker/internal/agent"
	"github.com/mossy-p/voice-broker/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient("sk-test", srv.URL+"/", srv.Client())
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient("", "http://localhost", nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestTranscriber(t *testing.T) {
	pcm := tone(160, 1000)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))

		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, EncodeWAV(pcm, 16000), data)

		_, _ = w.Write([]byte(`{"text":"I need help with my order"}`))
	})

	text, err := NewTranscriber(c, "whisper-1", 16000).Transcribe(context.Background(), pcm)
	require.NoError(t, err)
	assert.Equal(t, "I need help with my order", text)
}

func TestResponder(t *testing.T) {
	var got chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hi, I'm Remi."}}]}`))
	})

	history := []pipeline.Message{{Role: pipeline.RoleUser, Content: "hello"}}
	reply, err := NewResponder(c, "gpt-4o-mini", "Be kind.").Respond(context.Background(), history, "Say hi.")
	require.NoError(t, err)
	assert.Equal(t, "Hi, I'm Remi.", reply)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, []pipeline.Message{
		{Role: "system", Content: "Be kind."},
		{Role: pipeline.RoleUser, Content: "hello"},
		{Role: "system", Content: "Say hi."},
	}, got.Messages)
}

func TestResponder_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	})

	_, err := NewResponder(c, "gpt-4o-mini", "").Respond(context.Background(), nil, "")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, "rate limited", apiErr.Message)
}

func TestResponder_NoChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	_, err := NewResponder(c, "gpt-4o-mini", "").Respond(context.Background(), nil, "")
	assert.Error(t, err)
}

func TestSynthesizer(t *testing.T) {
	audio := tone(240, 2000)
	var got speechRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write(audio)
	})

	pcm, err := NewSynthesizer(c, "tts-1", "nova", 24000).Synthesize(context.Background(), "Hello there")
	require.NoError(t, err)
	assert.Equal(t, audio, pcm)
	assert.Equal(t, speechRequest{Model: "tts-1", Input: "Hello there", Voice: "nova", ResponseFormat: "pcm"}, got)

	pcm, err = NewSynthesizer(c, "tts-1", "nova", 16000).Synthesize(context.Background(), "Hello there")
	require.NoError(t, err)
	assert.Len(t, pcm, 160*2)
}

func TestBuilders_MissingKeyFailsAssembly(t *testing.T) {
	b := Builders(config.SpeechConfig{SampleRate: 24000}, nil)

	_, err := b.Assemble(agent.Default())
	var ae *pipeline.AssemblyError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "stt", ae.Stage)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestBuilders_NoiseSuppressionIsOptional(t *testing.T) {
	cfg := config.SpeechConfig{APIKey: "sk-test", BaseURL: "http://localhost", SampleRate: 24000}

	stages, err := Builders(cfg, nil).Assemble(agent.Default())
	require.NoError(t, err)
	assert.Nil(t, stages.NoiseFilter)

	cfg.NoiseSuppression = true
	stages, err = Builders(cfg, nil).Assemble(agent.Default())
	require.NoError(t, err)
	assert.NotNil(t, stages.NoiseFilter)
	assert.NoError(t, stages.Close())
}
