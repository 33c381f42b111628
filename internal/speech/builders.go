package speech

import (
	"net/http"

	"github.com/mossy-p/voice-broker/config"
	"github.com/mossy-p/voice-broker/internal/pipeline"
)

// Builders returns pipeline builders backed by this package. Every call gets
// its own VAD, turn detector and noise gate; the API clients share one
// connection pool.
func Builders(cfg config.SpeechConfig, httpClient *http.Client) pipeline.Builders {
	client := func() (*Client, error) {
		return NewClient(cfg.APIKey, cfg.BaseURL, httpClient)
	}

	b := pipeline.Builders{
		VAD: func() (pipeline.VAD, error) {
			return NewEnergyVAD(cfg.VADThreshold), nil
		},
		TurnDetector: func() (pipeline.TurnDetector, error) {
			return NewSilenceTurnDetector(cfg.EndOfTurnSilence, DefaultMinSpeech), nil
		},
		Transcriber: func() (pipeline.Transcriber, error) {
			c, err := client()
			if err != nil {
				return nil, err
			}
			return NewTranscriber(c, cfg.STTModel, cfg.SampleRate), nil
		},
		Responder: func(instructions string) (pipeline.Responder, error) {
			c, err := client()
			if err != nil {
				return nil, err
			}
			return NewResponder(c, cfg.LLMModel, instructions), nil
		},
		Synthesizer: func() (pipeline.Synthesizer, error) {
			c, err := client()
			if err != nil {
				return nil, err
			}
			return NewSynthesizer(c, cfg.TTSModel, cfg.TTSVoice, cfg.SampleRate), nil
		},
	}
	if cfg.NoiseSuppression {
		b.NoiseFilter = func() (pipeline.NoiseFilter, error) {
			return NewNoiseGate(DefaultGateFloor), nil
		}
	}
	return b
}
