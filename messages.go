package server

// Server-to-client wire messages. Every frame carries Ver and Type so clients
// can dispatch without sniffing payload shapes.

// Wire type tags.
const (
	MsgState          = "state"
	MsgPlayerMoved    = "player_moved"
	MsgPlayerShoot    = "player_shoot"
	MsgPlayerRespawn  = "player_respawn"
	MsgPlayerGameOver = "player_game_over"
	MsgHeartbeat      = "heartbeat"
)

// JoinResponse answers a successful join request with the session id and the
// full snapshot the client seeds its mirror from.
type JoinResponse struct {
	Ver      int      `json:"ver"`
	ID       string   `json:"id"`
	RoomID   string   `json:"roomId"`
	Players  []Player `json:"players"`
	Capacity int      `json:"capacity"`
}

// StateMessage is the replication frame: a full snapshot when Resync is set
// (delivered once per subscription, before any delta) and a patch batch
// otherwise. Sequence increases per room so clients can drop stale frames.
type StateMessage struct {
	Ver        int      `json:"ver"`
	Type       string   `json:"type"`
	Players    []Player `json:"players,omitempty"`
	Patches    []Patch  `json:"patches,omitempty"`
	Sequence   uint64   `json:"sequence"`
	Resync     bool     `json:"resync,omitempty"`
	ServerTime int64    `json:"serverTime"`
}

// PlayerMovedMessage is fanned out to every session except the mover.
type PlayerMovedMessage struct {
	Ver       int     `json:"ver"`
	Type      string  `json:"type"`
	SessionID string  `json:"sessionId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// PlayerShootMessage relays a shot verbatim to every session except the
// shooter. The server never simulates the bullet.
type PlayerShootMessage struct {
	Ver        int     `json:"ver"`
	Type       string  `json:"type"`
	SessionID  string  `json:"sessionId"`
	StartX     float64 `json:"startX"`
	StartY     float64 `json:"startY"`
	DirectionX float64 `json:"directionX"`
	DirectionY float64 `json:"directionY"`
}

// PlayerRespawnMessage announces a death below the limit and the fresh spawn.
type PlayerRespawnMessage struct {
	Ver        int     `json:"ver"`
	Type       string  `json:"type"`
	SessionID  string  `json:"sessionId"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	DeathCount int     `json:"deathCount"`
}

// PlayerGameOverMessage announces a terminal death. Clients whose own session
// id matches show their game-over screen.
type PlayerGameOverMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	SessionID  string `json:"sessionId"`
	DeathCount int    `json:"deathCount"`
}

// DiagnosticsPlayer exposes heartbeat data for the diagnostics endpoint.
type DiagnosticsPlayer struct {
	ID            string `json:"id"`
	Room          string `json:"room"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
	RTTMillis     int64  `json:"rttMillis"`
}
