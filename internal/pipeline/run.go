package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mossy-p/voice-broker/internal/agent"
	"github.com/mossy-p/voice-broker/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Transport is the media side of a call as seen by the pipeline.
type Transport interface {
	Inbound() <-chan []byte
	Play(ctx context.Context, pcm []byte) error
	Publish(ev models.Event)
}

// Options tune the steady-state loop.
type Options struct {
	// SampleRate of inbound and outbound PCM, in Hz.
	SampleRate int
	// PlaybackChunk is how much audio is played between talk-over checks.
	PlaybackChunk time.Duration
	// TurnQueue is how many completed turns may wait for the responder.
	TurnQueue int
}

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = 24000
	}
	if o.PlaybackChunk <= 0 {
		o.PlaybackChunk = 100 * time.Millisecond
	}
	if o.TurnQueue <= 0 {
		o.TurnQueue = 8
	}
	return o
}

// job is one reply to produce: either a caller turn or an instruction-only
// prompt such as the greeting.
type job struct {
	audio  []byte
	prompt string
}

type runner struct {
	transport Transport
	stages    *Stages
	opts      Options
	log       zerolog.Logger
	room      string

	jobs         chan job
	userSpeaking atomic.Bool
	history      []Message
}

// Run drives the conversation until ctx is cancelled. The greeting for cfg is
// produced before any caller turn. Errors from a single turn are logged and the
// conversation continues.
func Run(ctx context.Context, room string, t Transport, stages *Stages, cfg agent.Config, opts Options, logger zerolog.Logger) error {
	opts = opts.withDefaults()
	r := &runner{
		transport: t,
		stages:    stages,
		opts:      opts,
		log:       logger,
		room:      room,
		jobs:      make(chan job, opts.TurnQueue),
	}
	r.jobs <- job{prompt: agent.Greeting(cfg)}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.listen(ctx) })
	g.Go(func() error { return r.respond(ctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// listen feeds inbound frames through the filter, VAD and turn detector and
// queues every completed turn.
func (r *runner) listen(ctx context.Context) error {
	var turn []byte
	inbound := r.transport.Inbound()

	for {
		var frame []byte
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-inbound:
			if !ok {
				// Media is gone; wait for the call to be cancelled.
				<-ctx.Done()
				return ctx.Err()
			}
			frame = f
		}

		if r.stages.NoiseFilter != nil {
			frame = r.stages.NoiseFilter.Filter(frame)
		}
		activity := r.stages.VAD.Classify(frame)
		event := r.stages.TurnDetector.Observe(activity, r.frameDuration(frame))

		switch event {
		case TurnStarted:
			r.userSpeaking.Store(true)
			turn = append(turn[:0], frame...)
		case TurnEnded:
			turn = append(turn, frame...)
			audio := turn
			turn = nil
			r.userSpeaking.Store(false)
			select {
			case r.jobs <- job{audio: audio}:
			case <-ctx.Done():
				return ctx.Err()
			}
		case TurnDiscarded:
			turn = turn[:0]
			r.userSpeaking.Store(false)
		default:
			if r.userSpeaking.Load() {
				turn = append(turn, frame...)
			}
		}
	}
}

// respond handles queued jobs one at a time so each turn is answered in order.
func (r *runner) respond(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-r.jobs:
			if err := r.handle(ctx, j); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.log.Warn().Err(err).Msg("turn failed")
				r.publishState(models.AgentListening)
			}
		}
	}
}

func (r *runner) handle(ctx context.Context, j job) error {
	if j.audio != nil {
		r.publishState(models.AgentThinking)
		text, err := r.stages.Transcriber.Transcribe(ctx, j.audio)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			r.publishState(models.AgentListening)
			return nil
		}
		r.history = append(r.history, Message{Role: RoleUser, Content: text})
		r.transport.Publish(models.Event{Type: models.EventTranscript, Room: r.room, Role: RoleUser, Text: text})
	}

	reply, err := r.stages.Responder.Respond(ctx, r.history, j.prompt)
	if err != nil {
		return err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		r.publishState(models.AgentListening)
		return nil
	}
	r.history = append(r.history, Message{Role: RoleAssistant, Content: reply})

	audio, err := r.stages.Synthesizer.Synthesize(ctx, reply)
	if err != nil {
		return err
	}

	if err := r.waitForSilence(ctx); err != nil {
		return err
	}
	r.transport.Publish(models.Event{Type: models.EventTranscript, Room: r.room, Role: RoleAssistant, Text: reply})
	r.publishState(models.AgentSpeaking)
	if err := r.play(ctx, audio); err != nil {
		return err
	}
	r.publishState(models.AgentListening)
	return nil
}

// play sends audio in real time, one chunk per PlaybackChunk, and abandons the
// rest of the reply as soon as the caller starts speaking.
func (r *runner) play(ctx context.Context, audio []byte) error {
	chunk := r.bytesFor(r.opts.PlaybackChunk)
	ticker := time.NewTicker(r.opts.PlaybackChunk)
	defer ticker.Stop()

	for first := true; len(audio) > 0; first = false {
		if !first {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
		if r.userSpeaking.Load() {
			r.log.Debug().Int("remaining_bytes", len(audio)).Msg("caller spoke, reply abandoned")
			return nil
		}
		n := min(chunk, len(audio))
		if err := r.transport.Play(ctx, audio[:n]); err != nil {
			return err
		}
		audio = audio[n:]
	}
	return nil
}

// waitForSilence blocks while the caller is speaking.
func (r *runner) waitForSilence(ctx context.Context) error {
	if !r.userSpeaking.Load() {
		return nil
	}
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !r.userSpeaking.Load() {
				return nil
			}
		}
	}
}

func (r *runner) publishState(state string) {
	r.transport.Publish(models.Event{Type: models.EventAgentState, Room: r.room, State: state})
}

func (r *runner) frameDuration(frame []byte) time.Duration {
	samples := len(frame) / 2
	return time.Duration(samples) * time.Second / time.Duration(r.opts.SampleRate)
}

func (r *runner) bytesFor(d time.Duration) int {
	n := int(int64(r.opts.SampleRate) * int64(d) / int64(time.Second) * 2)
	if n < 2 {
		n = 2
	}
	return n
}
