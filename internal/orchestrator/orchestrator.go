// Package orchestrator runs one conversational agent per call: it waits for
// the caller, resolves the agent's personality, assembles the speech pipeline
// and drives it until the media session ends.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mossy-p/voice-broker/internal/agent"
	"github.com/mossy-p/voice-broker/internal/media"
	"github.com/mossy-p/voice-broker/internal/pipeline"
	"github.com/rs/zerolog"
)

// State is a step of a call's lifecycle.
type State int32

const (
	AwaitingParticipant State = iota
	ResolvingPersonality
	PipelineAssembling
	Listening
	Terminated
)

func (s State) String() string {
	switch s {
	case AwaitingParticipant:
		return "awaiting_participant"
	case ResolvingPersonality:
		return "resolving_personality"
	case PipelineAssembling:
		return "pipeline_assembling"
	case Listening:
		return "listening"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}

// Orchestrator owns a single call. It is not reusable: Run may be called once.
type Orchestrator struct {
	callID   string
	defaults agent.Config
	builders pipeline.Builders
	opts     pipeline.Options
	log      zerolog.Logger

	state atomic.Int32

	mu     sync.Mutex
	cfg    agent.Config
	stages *pipeline.Stages

	stop       chan struct{}
	stopOnce   sync.Once
	terminated sync.Once
}

// New creates an orchestrator that falls back to defaults when the caller
// carries no usable personality override.
func New(defaults agent.Config, builders pipeline.Builders, opts pipeline.Options, logger zerolog.Logger) *Orchestrator {
	id := uuid.NewString()
	o := &Orchestrator{
		callID:   id,
		defaults: defaults,
		cfg:      defaults,
		builders: builders,
		opts:     opts,
		log:      logger.With().Str("module", "orchestrator").Str("call_id", id).Logger(),
		stop:     make(chan struct{}),
	}
	o.state.Store(int32(AwaitingParticipant))
	return o
}

func (o *Orchestrator) CallID() string { return o.callID }

func (o *Orchestrator) State() State { return State(o.state.Load()) }

// Config returns the personality in effect. Before resolution it is the
// defaults.
func (o *Orchestrator) Config() agent.Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}

// Run drives the call until sess ends, ctx is cancelled or Stop is called.
// It returns nil when the call ended normally (including when nobody joined),
// a *pipeline.AssemblyError when a capability could not be built and a
// *media.TransportError when the media connection dropped.
func (o *Orchestrator) Run(ctx context.Context, sess media.Session) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer o.terminate()

	go func() {
		select {
		case <-sess.Done():
			cancel()
		case <-o.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	log := o.log.With().Str("room", sess.Name()).Logger()

	p, ok := o.awaitParticipant(ctx, sess)
	if !ok {
		log.Info().Msg("media session ended before anyone joined")
		return nil
	}

	o.setState(ResolvingPersonality)
	cfg := agent.Resolve(p.Metadata, o.defaults)
	o.mu.Lock()
	o.cfg = cfg
	o.mu.Unlock()
	log.Info().
		Str("participant", p.Identity).
		Str("agent", cfg.Name).
		Bool("custom", cfg != o.defaults).
		Msg("personality resolved")

	o.setState(PipelineAssembling)
	stages, err := o.builders.Assemble(cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to assemble pipeline")
		return err
	}
	o.mu.Lock()
	o.stages = stages
	o.mu.Unlock()

	o.setState(Listening)
	log.Info().Msg("agent listening")
	if err := pipeline.Run(ctx, sess.Name(), sess, stages, cfg, o.opts, log); err != nil {
		log.Error().Err(err).Msg("pipeline stopped")
		return err
	}
	return transportErr(sess)
}

// Stop ends the call. It is safe to call at any time and more than once.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.stop) })
}

// awaitParticipant returns the first participant to join. Later joins never
// reach this call.
func (o *Orchestrator) awaitParticipant(ctx context.Context, sess media.Session) (media.Participant, bool) {
	joins, unsubscribe := sess.SubscribeJoins()
	defer unsubscribe()

	select {
	case p, ok := <-joins:
		return p, ok
	case <-ctx.Done():
		return media.Participant{}, false
	}
}

func (o *Orchestrator) terminate() {
	o.terminated.Do(func() {
		o.setState(Terminated)
		o.mu.Lock()
		stages := o.stages
		o.stages = nil
		o.mu.Unlock()
		if err := stages.Close(); err != nil {
			o.log.Warn().Err(err).Msg("failed to release pipeline stages")
		}
		o.log.Info().Msg("call terminated")
	})
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
}

// transportErr returns the session's terminal cause if the media dropped.
func transportErr(sess media.Session) error {
	select {
	case <-sess.Done():
	default:
		return nil
	}
	var te *media.TransportError
	if err := sess.Err(); errors.As(err, &te) {
		return err
	}
	return nil
}
