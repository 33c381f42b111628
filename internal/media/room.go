package media

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/mossy-p/voice-broker/internal/models"
	"github.com/rs/zerolog"
)

// ErrRoomClosed is returned when writing to a room that has ended.
var ErrRoomClosed = errors.New("room closed")

// Outbound is a frame queued for one peer's connection.
type Outbound struct {
	Binary bool
	Data   []byte
}

// Peer is one participant's connection to a room.
type Peer struct {
	Participant Participant

	room *Room
	send chan Outbound
	done chan struct{}
	once sync.Once
}

// Outbound returns the frames to write to the peer.
func (p *Peer) Outbound() <-chan Outbound { return p.send }

// Done is closed when the peer has left the room.
func (p *Peer) Done() <-chan struct{} { return p.done }

// Deliver hands one inbound audio frame to the room. Frames are dropped when
// the agent falls behind.
func (p *Peer) Deliver(frame []byte) {
	p.room.deliver(p, frame)
}

// Leave removes the peer from its room. A non-nil cause marks an abnormal
// disconnect. Leave is safe to call more than once.
func (p *Peer) Leave(cause error) {
	p.once.Do(func() { p.room.remove(p, cause) })
}

// send is never closed, so writers only need to watch done.
func (p *Peer) sendAudio(ctx context.Context, pcm []byte) error {
	select {
	case p.send <- Outbound{Binary: true, Data: pcm}:
		return nil
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sendEvent never blocks; a peer too slow to take events loses them.
func (p *Peer) sendEvent(data []byte, log *zerolog.Logger) {
	select {
	case p.send <- Outbound{Data: data}:
	case <-p.done:
	default:
		log.Warn().Str("peer", p.Participant.ID).Msg("send buffer full, event dropped")
	}
}

// Room is a live media room. It implements Session.
type Room struct {
	name string
	hub  *Hub
	log  zerolog.Logger

	mu      sync.RWMutex
	peers   map[string]*Peer
	order   []*Peer
	subs    map[int]chan Participant
	nextSub int
	closed  bool
	err     error
	inbound chan []byte
	done    chan struct{}
}

func newRoom(name string, hub *Hub, logger zerolog.Logger) *Room {
	return &Room{
		name:    name,
		hub:     hub,
		log:     logger.With().Str("room", name).Logger(),
		peers:   make(map[string]*Peer),
		subs:    make(map[int]chan Participant),
		inbound: make(chan []byte, 256),
		done:    make(chan struct{}),
	}
}

func (r *Room) Name() string { return r.name }

func (r *Room) Inbound() <-chan []byte { return r.inbound }

func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Participants returns the peers in the room in join order.
func (r *Room) Participants() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Participant, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, p.Participant)
	}
	return out
}

func (r *Room) SubscribeJoins() (<-chan Participant, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan Participant, len(r.peers)+8)
	if r.closed {
		close(ch)
		return ch, func() {}
	}
	for _, p := range r.order {
		ch <- p.Participant
	}
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if c, ok := r.subs[id]; ok {
				delete(r.subs, id)
				close(c)
			}
		})
	}
}

// Play sends agent audio to every peer. It blocks while a peer's buffer is
// full, so a slow connection slows playback instead of losing audio.
func (r *Room) Play(ctx context.Context, pcm []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return ErrRoomClosed
	}
	peers := append([]*Peer(nil), r.order...)
	r.mu.RUnlock()

	for _, p := range peers {
		if err := p.sendAudio(ctx, pcm); err != nil {
			return err
		}
	}
	return nil
}

// Publish sends a JSON event to every peer.
func (r *Room) Publish(ev models.Event) {
	if ev.Room == "" {
		ev.Room = r.name
	}
	data, err := json.Marshal(ev)
	if err != nil {
		r.log.Error().Err(err).Msg("failed to marshal event")
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.order {
		p.sendEvent(data, &r.log)
	}
}

// add registers a peer. It fails when the room already ended.
func (r *Room) add(p Participant) (*Peer, error) {
	peer := &Peer{
		Participant: p,
		room:        r,
		send:        make(chan Outbound, 256),
		done:        make(chan struct{}),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRoomClosed
	}
	r.peers[p.ID] = peer
	r.order = append(r.order, peer)
	for _, sub := range r.subs {
		select {
		case sub <- p:
		default:
			r.log.Warn().Str("peer", p.ID).Msg("join subscriber full, event dropped")
		}
	}
	r.mu.Unlock()

	r.log.Info().Str("peer", p.ID).Str("identity", p.Identity).Msg("participant joined")
	r.Publish(models.Event{Type: models.EventJoined, From: p.Identity})
	return peer, nil
}

func (r *Room) remove(p *Peer, cause error) {
	r.mu.Lock()
	delete(r.peers, p.Participant.ID)
	for i, q := range r.order {
		if q == p {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	close(p.done)
	empty := len(r.peers) == 0
	r.mu.Unlock()

	r.log.Info().Str("peer", p.Participant.ID).AnErr("cause", cause).Msg("participant left")
	r.hub.peerLeft(r, p)

	if empty {
		var err error
		if cause != nil {
			err = &TransportError{Room: r.name, Err: cause}
		}
		r.hub.closeIfEmpty(r, err)
		return
	}
	r.Publish(models.Event{Type: models.EventLeft, From: p.Participant.Identity})
}

func (r *Room) deliver(p *Peer, frame []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.inbound <- frame:
	default:
		r.log.Debug().Str("peer", p.Participant.ID).Msg("inbound buffer full, audio dropped")
	}
}

// close ends the room. Callers hold the hub lock.
func (r *Room) close(err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || len(r.peers) > 0 {
		return false
	}
	r.closed = true
	r.err = err
	for id, sub := range r.subs {
		close(sub)
		delete(r.subs, id)
	}
	close(r.done)
	return true
}
