package ws

import (
	"time"

	"github.com/gorilla/websocket"
)

// clientMessage is the single inbound envelope. The transport validates the
// JSON shape; field preconditions stay with the room.
type clientMessage struct {
	Ver        int     `json:"ver,omitempty"`
	Type       string  `json:"type"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	StartX     float64 `json:"startX"`
	StartY     float64 `json:"startY"`
	DirectionX float64 `json:"directionX"`
	DirectionY float64 `json:"directionY"`
	TargetID   string  `json:"targetId"`
	Name       string  `json:"name"`
	SentAt     int64   `json:"sentAt"`
}

type heartbeatAckMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}

// wsConn adapts a gorilla connection to the room's SubscriberConn. Frames are
// always text; write serialization lives in the room's Subscriber.
type wsConn struct {
	conn *websocket.Conn
}

func (c wsConn) Write(data []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c wsConn) SetWriteDeadline(deadline time.Time) error {
	return c.conn.SetWriteDeadline(deadline)
}

func (c wsConn) Close() error {
	return c.conn.Close()
}
