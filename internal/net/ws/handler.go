package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"blast-arena/server"
)

// Handler coordinates a websocket session for one joined player.
type Handler struct {
	manager *server.Manager
	logger  *log.Logger
}

// NewHandler constructs a websocket session handler over the room manager.
func NewHandler(manager *server.Manager, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{manager: manager, logger: logger}
}

// Serve runs the read loop for a connected session until it disconnects.
// Any exit path is an implicit Leave.
func (h *Handler) Serve(roomID, sessionID string, conn *websocket.Conn) {
	if h == nil || h.manager == nil || conn == nil {
		return
	}

	room, ok := h.manager.Lookup(roomID)
	if !ok {
		closeUnknown(conn, "unknown room")
		return
	}

	sub, ok := room.Subscribe(sessionID, wsConn{conn: conn})
	if !ok {
		closeUnknown(conn, "unknown player")
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			room.Leave(sessionID)
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", sessionID, err)
			continue
		}

		switch msg.Type {
		case "move":
			room.Move(sessionID, msg.X, msg.Y)
		case "player_shoot":
			room.Shoot(sessionID, msg.StartX, msg.StartY, msg.DirectionX, msg.DirectionY)
		case "player_hit":
			if msg.TargetID == "" {
				continue
			}
			room.Hit(msg.TargetID)
		case "update_name":
			room.UpdateName(sessionID, msg.Name)
		case "heartbeat":
			now := time.Now()
			rtt, ok := room.UpdateHeartbeat(sessionID, now, msg.SentAt)
			if !ok {
				continue
			}
			ack := heartbeatAckMessage{
				Ver:        server.ProtocolVersion,
				Type:       server.MsgHeartbeat,
				ServerTime: now.UnixMilli(),
				ClientTime: msg.SentAt,
				RTTMillis:  rtt.Milliseconds(),
			}
			data, err := json.Marshal(ack)
			if err != nil {
				h.logger.Printf("failed to marshal heartbeat ack for %s: %v", sessionID, err)
				continue
			}
			if err := sub.Send(data); err != nil {
				room.Leave(sessionID)
				return
			}
		default:
			h.logger.Printf("unknown message type %q from %s", msg.Type, sessionID)
		}
	}
}

func closeUnknown(conn *websocket.Conn, reason string) {
	message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	conn.WriteMessage(websocket.CloseMessage, message)
	conn.Close()
}
