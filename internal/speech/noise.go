package speech

// DefaultGateFloor is the RMS level below which a frame is muted.
const DefaultGateFloor = 0.008

// NoiseGate mutes frames whose energy is below a floor so background hiss
// never reaches the VAD or the transcriber.
type NoiseGate struct {
	floor float64
}

func NewNoiseGate(floor float64) *NoiseGate {
	if floor <= 0 {
		floor = DefaultGateFloor
	}
	return &NoiseGate{floor: floor}
}

func (g *NoiseGate) Filter(frame []byte) []byte {
	if RMS(frame) >= g.floor {
		return frame
	}
	return make([]byte, len(frame))
}
