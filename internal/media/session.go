// Package media is the real-time room layer the agent joins. Rooms are
// created when the first participant connects and torn down when the last
// one leaves.
package media

import (
	"context"
	"fmt"

	"github.com/mossy-p/voice-broker/internal/models"
)

// Participant is a remote party in a room.
type Participant struct {
	ID       string
	Identity string
	Name     string
	// Metadata is the raw metadata carried by the participant's credential.
	Metadata string
}

// Session is one room as seen by the call's agent.
type Session interface {
	Name() string
	// SubscribeJoins delivers participants already in the room followed by
	// every later join. The returned func unsubscribes.
	SubscribeJoins() (<-chan Participant, func())
	// Inbound carries caller audio as 16-bit little-endian mono PCM.
	Inbound() <-chan []byte
	Play(ctx context.Context, pcm []byte) error
	Publish(ev models.Event)
	// Done is closed when the room ends.
	Done() <-chan struct{}
	// Err is nil for a normal end and a *TransportError when the media
	// connection dropped.
	Err() error
}

// TransportError reports a room that ended because its media connection failed.
type TransportError struct {
	Room string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("media transport for room %s: %v", e.Room, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
