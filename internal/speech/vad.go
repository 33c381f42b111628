package speech

import "github.com/mossy-p/voice-broker/internal/pipeline"

// DefaultVADThreshold is the RMS level above which a frame counts as speech.
const DefaultVADThreshold = 0.02

// EnergyVAD classifies frames by their RMS energy.
type EnergyVAD struct {
	threshold float64
}

func NewEnergyVAD(threshold float64) *EnergyVAD {
	if threshold <= 0 {
		threshold = DefaultVADThreshold
	}
	return &EnergyVAD{threshold: threshold}
}

func (v *EnergyVAD) Classify(frame []byte) pipeline.Activity {
	if RMS(frame) >= v.threshold {
		return pipeline.Speech
	}
	return pipeline.Silence
}

func (v *EnergyVAD) Close() error { return nil }
