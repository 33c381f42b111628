package pipeline

import (
	"errors"
	"fmt"

	"github.com/mossy-p/voice-broker/internal/agent"
)

// Builders construct the capabilities of one call. NoiseFilter is optional.
type Builders struct {
	VAD          func() (VAD, error)
	TurnDetector func() (TurnDetector, error)
	Transcriber  func() (Transcriber, error)
	Responder    func(instructions string) (Responder, error)
	Synthesizer  func() (Synthesizer, error)
	NoiseFilter  func() (NoiseFilter, error)
}

// AssemblyError reports a capability that could not be constructed.
type AssemblyError struct {
	Stage string
	Err   error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assemble %s: %v", e.Stage, e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// Stages are the capability instances owned by one call.
type Stages struct {
	VAD          VAD
	TurnDetector TurnDetector
	Transcriber  Transcriber
	Responder    Responder
	Synthesizer  Synthesizer
	NoiseFilter  NoiseFilter
}

// Assemble builds every stage, using cfg's instructions for the responder.
// If any stage fails, the stages already built are closed and an
// *AssemblyError is returned.
func (b Builders) Assemble(cfg agent.Config) (*Stages, error) {
	s := &Stages{}
	var err error

	fail := func(stage string, cause error) (*Stages, error) {
		_ = s.Close()
		return nil, &AssemblyError{Stage: stage, Err: cause}
	}

	if b.VAD == nil {
		return fail("vad", errors.New("no builder"))
	}
	if s.VAD, err = b.VAD(); err != nil {
		return fail("vad", err)
	}
	if b.TurnDetector == nil {
		return fail("turn detector", errors.New("no builder"))
	}
	if s.TurnDetector, err = b.TurnDetector(); err != nil {
		return fail("turn detector", err)
	}
	if b.Transcriber == nil {
		return fail("stt", errors.New("no builder"))
	}
	if s.Transcriber, err = b.Transcriber(); err != nil {
		return fail("stt", err)
	}
	if b.Responder == nil {
		return fail("llm", errors.New("no builder"))
	}
	if s.Responder, err = b.Responder(cfg.Instructions); err != nil {
		return fail("llm", err)
	}
	if b.Synthesizer == nil {
		return fail("tts", errors.New("no builder"))
	}
	if s.Synthesizer, err = b.Synthesizer(); err != nil {
		return fail("tts", err)
	}
	if b.NoiseFilter != nil {
		if s.NoiseFilter, err = b.NoiseFilter(); err != nil {
			return fail("noise filter", err)
		}
	}
	return s, nil
}

// Close releases every constructed stage.
func (s *Stages) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.VAD != nil {
		errs = append(errs, s.VAD.Close())
	}
	if s.TurnDetector != nil {
		errs = append(errs, s.TurnDetector.Close())
	}
	if s.Transcriber != nil {
		errs = append(errs, s.Transcriber.Close())
	}
	if s.Responder != nil {
		errs = append(errs, s.Responder.Close())
	}
	if s.Synthesizer != nil {
		errs = append(errs, s.Synthesizer.Close())
	}
	return errors.Join(errs...)
}
