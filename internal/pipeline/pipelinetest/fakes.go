// Package pipelinetest provides in-memory speech capabilities and a media
// transport for tests.
package pipelinetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mossy-p/voice-broker/internal/models"
	"github.com/mossy-p/voice-broker/internal/pipeline"
)

// SpeechFrame returns a frame the fake VAD classifies as speech.
func SpeechFrame(n int) []byte {
	f := make([]byte, n)
	for i := range f {
		f[i] = 1
	}
	return f
}

// SilenceFrame returns a frame the fake VAD classifies as silence.
func SilenceFrame(n int) []byte { return make([]byte, n) }

type closer struct{ closed atomic.Int32 }

func (c *closer) Close() error {
	c.closed.Add(1)
	return nil
}

// Closed reports whether Close was called at least once.
func (c *closer) Closed() bool { return c.closed.Load() > 0 }

// CloseCount reports how many times Close was called.
func (c *closer) CloseCount() int { return int(c.closed.Load()) }

// VAD treats frames whose first byte is non-zero as speech.
type VAD struct {
	closer
	calls atomic.Int64
}

func (v *VAD) Classify(frame []byte) pipeline.Activity {
	v.calls.Add(1)
	if len(frame) > 0 && frame[0] != 0 {
		return pipeline.Speech
	}
	return pipeline.Silence
}

// Calls reports how many frames were classified.
func (v *VAD) Calls() int { return int(v.calls.Load()) }

// TurnDetector starts a turn on the first speech frame and ends it on the
// first silence frame after it.
type TurnDetector struct {
	closer
	speaking bool
}

func (d *TurnDetector) Observe(a pipeline.Activity, _ time.Duration) pipeline.TurnEvent {
	switch {
	case a == pipeline.Speech && !d.speaking:
		d.speaking = true
		return pipeline.TurnStarted
	case a == pipeline.Silence && d.speaking:
		d.speaking = false
		return pipeline.TurnEnded
	}
	return pipeline.TurnNone
}

// Transcriber returns Text for every turn and records its input.
type Transcriber struct {
	closer
	Text string

	mu     sync.Mutex
	inputs [][]byte
}

func (t *Transcriber) Transcribe(_ context.Context, pcm []byte) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputs = append(t.inputs, append([]byte(nil), pcm...))
	return t.Text, nil
}

// Inputs returns the audio of every transcribed turn.
func (t *Transcriber) Inputs() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.inputs...)
}

// Responder returns Reply and records what it was asked.
type Responder struct {
	closer
	Instructions string
	Reply        string

	mu        sync.Mutex
	prompts   []string
	histories [][]pipeline.Message
}

func (r *Responder) Respond(_ context.Context, history []pipeline.Message, prompt string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, prompt)
	r.histories = append(r.histories, append([]pipeline.Message(nil), history...))
	return r.Reply, nil
}

// Prompts returns the per-reply prompts in call order.
func (r *Responder) Prompts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.prompts...)
}

// Histories returns the history passed to each call.
func (r *Responder) Histories() [][]pipeline.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]pipeline.Message(nil), r.histories...)
}

// Synthesizer returns Audio for every text. When Gate is set each call waits
// for a value on it.
type Synthesizer struct {
	closer
	Audio []byte
	Gate  chan struct{}

	mu    sync.Mutex
	texts []string
}

func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.Gate != nil {
		select {
		case <-s.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return append([]byte(nil), s.Audio...), nil
}

// Texts returns every synthesized text.
func (s *Synthesizer) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

// NoiseFilter passes frames through unchanged and counts them.
type NoiseFilter struct {
	calls atomic.Int64
}

func (n *NoiseFilter) Filter(frame []byte) []byte {
	n.calls.Add(1)
	return frame
}

// Calls reports how many frames were filtered.
func (n *NoiseFilter) Calls() int { return int(n.calls.Load()) }

// Kit is one call's worth of fake capabilities.
type Kit struct {
	VAD          *VAD
	TurnDetector *TurnDetector
	Transcriber  *Transcriber
	Responder    *Responder
	Synthesizer  *Synthesizer
	NoiseFilter  *NoiseFilter

	// Fail maps a stage name (vad, turn, stt, llm, tts, noise) to the error its builder returns.
	Fail map[string]error
}

// NewKit returns a kit whose responder replies with reply and whose
// synthesizer produces audio.
func NewKit(transcript, reply string, audio []byte) *Kit {
	return &Kit{
		VAD:          &VAD{},
		TurnDetector: &TurnDetector{},
		Transcriber:  &Transcriber{Text: transcript},
		Responder:    &Responder{Reply: reply},
		Synthesizer:  &Synthesizer{Audio: audio},
		NoiseFilter:  &NoiseFilter{},
		Fail:         map[string]error{},
	}
}

// ErrBuild is a convenient builder failure.
var ErrBuild = errors.New("capability unavailable")

// Builders returns builders handing out the kit's instances.
func (k *Kit) Builders() pipeline.Builders {
	return pipeline.Builders{
		VAD: func() (pipeline.VAD, error) {
			if err := k.Fail["vad"]; err != nil {
				return nil, err
			}
			return k.VAD, nil
		},
		TurnDetector: func() (pipeline.TurnDetector, error) {
			if err := k.Fail["turn"]; err != nil {
				return nil, err
			}
			return k.TurnDetector, nil
		},
		Transcriber: func() (pipeline.Transcriber, error) {
			if err := k.Fail["stt"]; err != nil {
				return nil, err
			}
			return k.Transcriber, nil
		},
		Responder: func(instructions string) (pipeline.Responder, error) {
			if err := k.Fail["llm"]; err != nil {
				return nil, err
			}
			k.Responder.Instructions = instructions
			return k.Responder, nil
		},
		Synthesizer: func() (pipeline.Synthesizer, error) {
			if err := k.Fail["tts"]; err != nil {
				return nil, err
			}
			return k.Synthesizer, nil
		},
		NoiseFilter: func() (pipeline.NoiseFilter, error) {
			if err := k.Fail["noise"]; err != nil {
				return nil, err
			}
			return k.NoiseFilter, nil
		},
	}
}

// Transport is an in-memory pipeline.Transport.
type Transport struct {
	In chan []byte
	// OnPlay, when set, runs after each chunk is recorded.
	OnPlay func(chunks int)

	mu     sync.Mutex
	played [][]byte
	events []models.Event
}

func NewTransport() *Transport {
	return &Transport{In: make(chan []byte, 64)}
}

func (t *Transport) Inbound() <-chan []byte { return t.In }

func (t *Transport) Play(_ context.Context, pcm []byte) error {
	t.mu.Lock()
	t.played = append(t.played, append([]byte(nil), pcm...))
	n := len(t.played)
	t.mu.Unlock()
	if t.OnPlay != nil {
		t.OnPlay(n)
	}
	return nil
}

func (t *Transport) Publish(ev models.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, ev)
}

// Played returns every played chunk.
func (t *Transport) Played() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.played...)
}

// PlayedBytes returns the total number of bytes played.
func (t *Transport) PlayedBytes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, p := range t.played {
		n += len(p)
	}
	return n
}

// Transcripts returns the text of transcript events for role.
func (t *Transport) Transcripts(role string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, ev := range t.events {
		if ev.Type == models.EventTranscript && ev.Role == role {
			out = append(out, ev.Text)
		}
	}
	return out
}
