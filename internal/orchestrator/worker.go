package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/mossy-p/voice-broker/internal/agent"
	"github.com/mossy-p/voice-broker/internal/media"
	"github.com/mossy-p/voice-broker/internal/pipeline"
	"github.com/rs/zerolog"
)

// Worker runs one orchestrator per media session. Calls share nothing but the
// read-only defaults and builders.
type Worker struct {
	defaults agent.Config
	builders pipeline.Builders
	opts     pipeline.Options
	log      zerolog.Logger

	wg    sync.WaitGroup
	mu    sync.Mutex
	calls map[string]*Orchestrator
}

func NewWorker(defaults agent.Config, builders pipeline.Builders, opts pipeline.Options, logger zerolog.Logger) *Worker {
	return &Worker{
		defaults: defaults,
		builders: builders,
		opts:     opts,
		log:      logger.With().Str("module", "worker").Logger(),
		calls:    make(map[string]*Orchestrator),
	}
}

// Dispatch starts a call for sess in the background and returns immediately.
func (w *Worker) Dispatch(ctx context.Context, sess media.Session) {
	o := New(w.defaults, w.builders, w.opts, w.log)

	w.mu.Lock()
	w.calls[o.CallID()] = o
	w.mu.Unlock()

	w.log.Info().Str("room", sess.Name()).Str("call_id", o.CallID()).Msg("call dispatched")

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			delete(w.calls, o.CallID())
			w.mu.Unlock()
		}()

		if err := w.run(ctx, o, sess); err != nil {
			w.log.Error().Err(err).Str("room", sess.Name()).Str("call_id", o.CallID()).Msg("call ended with error")
			return
		}
		w.log.Info().Str("room", sess.Name()).Str("call_id", o.CallID()).Msg("call ended")
	}()
}

// run keeps a panicking call from taking the process down.
func (w *Worker) run(ctx context.Context, o *Orchestrator, sess media.Session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("call panicked: %v", r)
		}
	}()
	return o.Run(ctx, sess)
}

// ActiveCalls reports how many calls are running.
func (w *Worker) ActiveCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.calls)
}

// StopAll ends every running call.
func (w *Worker) StopAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, o := range w.calls {
		o.Stop()
	}
}

// Wait blocks until every dispatched call has ended.
func (w *Worker) Wait() {
	w.wg.Wait()
}
