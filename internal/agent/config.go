// Package agent resolves the personality a voice agent uses for one call.
package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	DefaultName = "Remi"

	DefaultInstructions = `You are Remi AI, a helpful voice assistant for customer service.
You assist users with their questions in a friendly, professional manner.
You provide concise, clear responses without complex formatting.
You are patient, empathetic, and solution-oriented.
Keep responses natural and conversational.`
)

// Config is the personality of the agent for a single call.
// It is a value type; once resolved for a call it is never modified.
type Config struct {
	Name         string `json:"agentName"`
	Instructions string `json:"agentInstructions"`
}

// Default returns the built-in personality.
func Default() Config {
	return Config{Name: DefaultName, Instructions: DefaultInstructions}
}

// Overrides holds the optional fields a participant may supply in its metadata.
type Overrides struct {
	Name         *string `json:"agentName,omitempty"`
	Instructions *string `json:"agentInstructions,omitempty"`
}

// ParseError reports metadata that could not be read as a personality override.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid agent metadata: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes participant metadata into overrides.
func Parse(raw string) (Overrides, error) {
	var o Overrides
	if strings.TrimSpace(raw) == "" {
		return o, &ParseError{Raw: raw, Err: fmt.Errorf("empty metadata")}
	}
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return Overrides{}, &ParseError{Raw: raw, Err: err}
	}
	return o, nil
}

// Resolve derives the call personality from participant metadata.
// Any field that is missing or blank falls back to defaults, and metadata that
// cannot be parsed yields defaults unchanged. Resolve never fails.
func Resolve(raw string, defaults Config) Config {
	o, err := Parse(raw)
	if err != nil {
		return defaults
	}
	cfg := defaults
	if o.Name != nil && strings.TrimSpace(*o.Name) != "" {
		cfg.Name = strings.TrimSpace(*o.Name)
	}
	if o.Instructions != nil && strings.TrimSpace(*o.Instructions) != "" {
		cfg.Instructions = *o.Instructions
	}
	return cfg
}

// Greeting is the instruction given to the responder for the opening utterance.
func Greeting(cfg Config) string {
	return fmt.Sprintf("Greet the user warmly, introduce yourself as %s, and ask how you can help them today.", cfg.Name)
}

// Metadata encodes cfg as participant metadata understood by Resolve.
func Metadata(cfg Config) string {
	b, err := json.Marshal(cfg)
	if err != nil {
		return ""
	}
	return string(b)
}
