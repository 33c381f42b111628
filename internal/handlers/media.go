package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mossy-p/voice-broker/internal/media"
	"github.com/mossy-p/voice-broker/internal/middleware"
	"github.com/mossy-p/voice-broker/internal/models"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	// maxFrameSize bounds one inbound audio frame (1s of 48kHz PCM).
	maxFrameSize = 96000
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// Media connects an authenticated participant to a media room. Binary frames
// carry PCM audio in both directions; text frames carry JSON events.
func Media(hub *media.Hub, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("module", "gateway").Logger()
	return func(c *gin.Context) {
		room := c.Param("room")
		p := media.Participant{
			ID:       uuid.New().String(),
			Identity: c.GetString(middleware.IdentityKey),
			Name:     c.GetString(middleware.NameKey),
			Metadata: c.GetString(middleware.MetadataKey),
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Str("room", room).Msg("failed to upgrade connection")
			return
		}

		peer, err := hub.Join(c.Request.Context(), room, p)
		if err != nil {
			log.Warn().Err(err).Str("room", room).Msg("failed to join room")
			data, _ := json.Marshal(models.Event{Type: models.EventError, Room: room, Error: "failed to join room"})
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.TextMessage, data)
			conn.Close()
			return
		}

		go writePump(conn, peer, log)
		go readPump(conn, peer, log)
	}
}

// readPump forwards audio to the room until the connection ends. A close
// frame or a leave message is a normal departure; anything else drops the
// peer abnormally.
func readPump(conn *websocket.Conn, peer *media.Peer, log zerolog.Logger) {
	var cause error
	defer func() {
		peer.Leave(cause)
		conn.Close()
	}()

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				cause = err
				log.Warn().Err(err).Str("peer", peer.Participant.ID).Msg("media connection dropped")
			}
			return
		}

		switch kind {
		case websocket.BinaryMessage:
			peer.Deliver(message)
		case websocket.TextMessage:
			var msg models.ClientMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				log.Debug().Err(err).Msg("failed to parse client message")
				continue
			}
			if msg.Type == "leave" {
				return
			}
			log.Debug().Str("type", msg.Type).Msg("unknown client message")
		}
	}
}

func writePump(conn *websocket.Conn, peer *media.Peer, log zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-peer.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case out := <-peer.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			kind := websocket.TextMessage
			if out.Binary {
				kind = websocket.BinaryMessage
			}
			if err := conn.WriteMessage(kind, out.Data); err != nil {
				log.Debug().Err(err).Str("peer", peer.Participant.ID).Msg("failed to write frame")
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
