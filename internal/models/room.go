package models

// SessionRequest is the request body for creating a session
type SessionRequest struct {
	RoomName          string `json:"room_name"`
	ParticipantName   string `json:"participant_name"`
	AgentName         string `json:"agent_name,omitempty"`
	AgentInstructions string `json:"agent_instructions,omitempty"`
}

// SessionResponse is the response for creating a session
type SessionResponse struct {
	Token           string `json:"token"`
	MediaURL        string `json:"media_url"`
	RoomName        string `json:"room_name"`
	ParticipantName string `json:"participant_name"`
	AgentPrompt     string `json:"agent_prompt"`
	Message         string `json:"message"`
}

// AgentConfigRequest sets the agent personality for a room
type AgentConfigRequest struct {
	AgentName         string `json:"agentName" binding:"required"`
	AgentInstructions string `json:"agentInstructions" binding:"required"`
}

// RoomAgentResponse describes the agent a room will get
type RoomAgentResponse struct {
	Room              string `json:"room"`
	AgentName         string `json:"agentName"`
	AgentInstructions string `json:"agentInstructions"`
	Custom            bool   `json:"custom"`
	Live              bool   `json:"live"`
	Participants      int    `json:"participants"`
}
