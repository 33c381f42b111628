package models

// EventType is the type of a JSON event sent to media gateway clients
type EventType string

const (
	EventJoined     EventType = "joined"
	EventLeft       EventType = "left"
	EventTranscript EventType = "transcript"
	EventAgentState EventType = "agent_state"
	EventError      EventType = "error"
)

// Agent states carried by EventAgentState
const (
	AgentListening = "listening"
	AgentThinking  = "thinking"
	AgentSpeaking  = "speaking"
)

// Event is a control message on the media gateway. Audio travels separately
// as binary frames.
type Event struct {
	Type  EventType `json:"type"`
	From  string    `json:"from,omitempty"`
	Room  string    `json:"room"`
	Role  string    `json:"role,omitempty"`
	Text  string    `json:"text,omitempty"`
	State string    `json:"state,omitempty"`
	Error string    `json:"error,omitempty"`
}

// ClientMessage is a text frame sent by a media gateway client
type ClientMessage struct {
	Type string `json:"type"`
}
