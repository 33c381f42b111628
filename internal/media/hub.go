package media

import (
	"context"
	"sync"
	"time"

	"github.com/mossy-p/voice-broker/internal/store"
	"github.com/rs/zerolog"
)

// Hub owns the live rooms of this process.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*Room

	peers    store.Store
	dispatch func(Session)
	log      zerolog.Logger
}

// NewHub creates a hub. dispatch is called once for every new room, after its
// first participant joined; it must not block. peers may be nil.
func NewHub(peers store.Store, dispatch func(Session), logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:    make(map[string]*Room),
		peers:    peers,
		dispatch: dispatch,
		log:      logger.With().Str("module", "media").Logger(),
	}
}

// Join adds p to the named room, creating the room if needed.
func (h *Hub) Join(ctx context.Context, name string, p Participant) (*Peer, error) {
	h.mu.Lock()
	room, ok := h.rooms[name]
	if !ok {
		room = newRoom(name, h, h.log)
		h.rooms[name] = room
		h.log.Info().Str("room", name).Msg("room created")
	}
	peer, err := room.add(p)
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if h.peers != nil {
		if err := h.peers.AddPeer(ctx, name, p.ID); err != nil {
			h.log.Warn().Err(err).Str("room", name).Msg("failed to record peer")
		}
	}
	if !ok && h.dispatch != nil {
		h.dispatch(room)
	}
	return peer, nil
}

// Room returns the live room with the given name.
func (h *Hub) Room(name string) (*Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[name]
	return r, ok
}

// RoomCount reports how many rooms are live.
func (h *Hub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

func (h *Hub) peerLeft(r *Room, p *Peer) {
	if h.peers == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.peers.RemovePeer(ctx, r.name, p.Participant.ID); err != nil {
		h.log.Warn().Err(err).Str("room", r.name).Msg("failed to remove peer record")
	}
}

func (h *Hub) closeIfEmpty(r *Room, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !r.close(err) {
		return
	}
	if h.rooms[r.name] == r {
		delete(h.rooms, r.name)
	}
	h.log.Info().Str("room", r.name).AnErr("cause", err).Msg("room closed")
}
