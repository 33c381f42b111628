// Package pipeline wires the speech capabilities of one call together.
//
// Inbound audio flows through the optional noise filter, the VAD and the turn
// detector. Completed turns are transcribed, answered by the responder and
// spoken by the synthesizer:
//
//	audio in → noise filter → VAD → turn detector → STT → LLM → TTS → audio out
package pipeline

import (
	"context"
	"time"
)

// Activity is the VAD classification of one audio frame.
type Activity int

const (
	Silence Activity = iota
	Speech
)

// TurnEvent is a turn boundary reported by a TurnDetector.
type TurnEvent int

const (
	// TurnNone means no boundary at this frame.
	TurnNone TurnEvent = iota
	// TurnStarted means the caller began speaking.
	TurnStarted
	// TurnEnded means the caller finished a turn that should be answered.
	TurnEnded
	// TurnDiscarded means the speech that started was too short to be a turn.
	TurnDiscarded
)

func (e TurnEvent) String() string {
	switch e {
	case TurnNone:
		return "none"
	case TurnStarted:
		return "started"
	case TurnEnded:
		return "ended"
	case TurnDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// VAD classifies 16-bit little-endian mono PCM frames.
type VAD interface {
	Classify(frame []byte) Activity
	Close() error
}

// TurnDetector turns a stream of frame classifications into turn boundaries.
type TurnDetector interface {
	Observe(activity Activity, frameDuration time.Duration) TurnEvent
	Close() error
}

// Transcriber converts one turn of caller audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte) (string, error)
	Close() error
}

// Message is one entry of the conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Responder produces the agent's reply. Its instruction set is fixed when it
// is built; prompt carries extra instructions for a single reply and is
// empty for ordinary turns.
type Responder interface {
	Respond(ctx context.Context, history []Message, prompt string) (string, error)
	Close() error
}

// Synthesizer converts reply text to PCM audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Close() error
}

// NoiseFilter pre-processes inbound frames before voice activity detection.
type NoiseFilter interface {
	Filter(frame []byte) []byte
}
