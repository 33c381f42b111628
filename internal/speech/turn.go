package speech

import (
	"time"

	"github.com/mossy-p/voice-broker/internal/pipeline"
)

const (
	DefaultEndOfTurnSilence = 700 * time.Millisecond
	DefaultMinSpeech        = 200 * time.Millisecond
)

// SilenceTurnDetector ends a turn after a run of silence. Turns with less
// than minSpeech of speech are discarded as noise.
type SilenceTurnDetector struct {
	endSilence time.Duration
	minSpeech  time.Duration

	speaking bool
	speech   time.Duration
	silence  time.Duration
}

func NewSilenceTurnDetector(endSilence, minSpeech time.Duration) *SilenceTurnDetector {
	if endSilence <= 0 {
		endSilence = DefaultEndOfTurnSilence
	}
	if minSpeech < 0 {
		minSpeech = 0
	}
	return &SilenceTurnDetector{endSilence: endSilence, minSpeech: minSpeech}
}

func (d *SilenceTurnDetector) Observe(a pipeline.Activity, frame time.Duration) pipeline.TurnEvent {
	if !d.speaking {
		if a != pipeline.Speech {
			return pipeline.TurnNone
		}
		d.speaking = true
		d.speech = frame
		d.silence = 0
		return pipeline.TurnStarted
	}

	if a == pipeline.Speech {
		d.speech += frame
		d.silence = 0
		return pipeline.TurnNone
	}

	d.silence += frame
	if d.silence < d.endSilence {
		return pipeline.TurnNone
	}
	d.speaking = false
	if d.speech < d.minSpeech {
		return pipeline.TurnDiscarded
	}
	return pipeline.TurnEnded
}

func (d *SilenceTurnDetector) Close() error { return nil }
