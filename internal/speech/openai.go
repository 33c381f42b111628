package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/mossy-p/voice-broker/internal/pipeline"
)

// ErrMissingAPIKey is returned when a client is built without credentials.
var ErrMissingAPIKey = errors.New("speech: API key is not set")

// ttsSampleRate is the rate of the pcm response_format of the speech endpoint.
const ttsSampleRate = 24000

// APIError is a non-2xx response from the speech API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("speech api error %d: %s", e.Status, e.Message)
}

// Client talks to an OpenAI-compatible API. It is safe for concurrent use.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewClient(apiKey, baseURL string, httpClient *http.Client) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}, nil
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, parseError(resp.StatusCode, data)
	}
	return data, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in any) ([]byte, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.post(ctx, path, "application/json", bytes.NewReader(body))
}

func parseError(status int, body []byte) error {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Error.Message != "" {
		msg = payload.Error.Message
	}
	return &APIError{Status: status, Message: msg}
}

// Transcriber uploads each turn as a WAV file to /audio/transcriptions.
type Transcriber struct {
	client     *Client
	model      string
	sampleRate int
}

func NewTranscriber(c *Client, model string, sampleRate int) *Transcriber {
	return &Transcriber{client: c, model: model, sampleRate: sampleRate}
}

func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", "turn.wav")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(EncodeWAV(pcm, t.sampleRate)); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	if err := mw.WriteField("model", t.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("write format field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	data, err := t.client.post(ctx, "/audio/transcriptions", mw.FormDataContentType(), &buf)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("parse transcription: %w", err)
	}
	return out.Text, nil
}

func (t *Transcriber) Close() error { return nil }

// Responder answers through /chat/completions with the agent's
// instructions as the system message.
type Responder struct {
	client       *Client
	model        string
	instructions string
}

func NewResponder(c *Client, model, instructions string) *Responder {
	return &Responder{client: c, model: model, instructions: instructions}
}

type chatRequest struct {
	Model    string             `json:"model"`
	Messages []pipeline.Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message pipeline.Message `json:"message"`
	} `json:"choices"`
}

// Respond sends the conversation so far. A non-empty prompt is appended as a
// trailing system message steering this one reply.
func (r *Responder) Respond(ctx context.Context, history []pipeline.Message, prompt string) (string, error) {
	msgs := make([]pipeline.Message, 0, len(history)+2)
	msgs = append(msgs, pipeline.Message{Role: "system", Content: r.instructions})
	msgs = append(msgs, history...)
	if prompt != "" {
		msgs = append(msgs, pipeline.Message{Role: "system", Content: prompt})
	}

	data, err := r.client.postJSON(ctx, "/chat/completions", chatRequest{Model: r.model, Messages: msgs})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("parse chat completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}
	return out.Choices[0].Message.Content, nil
}

func (r *Responder) Close() error { return nil }

// Synthesizer speaks text through /audio/speech and returns PCM at the
// pipeline's sample rate.
type Synthesizer struct {
	client     *Client
	model      string
	voice      string
	sampleRate int
}

func NewSynthesizer(c *Client, model, voice string, sampleRate int) *Synthesizer {
	return &Synthesizer{client: c, model: model, voice: voice, sampleRate: sampleRate}
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	pcm, err := s.client.postJSON(ctx, "/audio/speech", speechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: "pcm",
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	return Resample(pcm, ttsSampleRate, s.sampleRate), nil
}

func (s *Synthesizer) Close() error { return nil }
