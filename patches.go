package server

// PatchKind identifies the type of diff entry.
type PatchKind string

const (
	// PatchPlayerAdded inserts a full player record into the client mirror.
	PatchPlayerAdded PatchKind = "player_added"
	// PatchPlayerRemoved signals that a player has left the room.
	PatchPlayerRemoved PatchKind = "player_removed"
	// PatchPlayerPos updates a player's position.
	PatchPlayerPos PatchKind = "player_pos"
	// PatchPlayerName updates a player's display name.
	PatchPlayerName PatchKind = "player_name"
	// PatchPlayerHealth updates a player's health pool.
	PatchPlayerHealth PatchKind = "player_health"
	// PatchPlayerDeath updates a player's death count and alive flag together.
	PatchPlayerDeath PatchKind = "player_death"
)

// Patch represents a diff entry that can be applied to the client state. All
// fields of one mutation travel in a single patch so clients never observe a
// half-applied record.
type Patch struct {
	Kind     PatchKind `json:"kind"`
	EntityID string    `json:"entityId"`
	Payload  any       `json:"payload,omitempty"`
}

// PlayerAddedPayload carries the full record for a newly joined player.
type PlayerAddedPayload struct {
	Player Player `json:"player"`
}

// PlayerPosPayload captures the coordinates for a player position patch.
type PlayerPosPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PlayerNamePayload captures the display name for a player name patch.
type PlayerNamePayload struct {
	Name string `json:"name"`
}

// PlayerHealthPayload captures the health for a player health patch.
type PlayerHealthPayload struct {
	Health int `json:"health"`
}

// PlayerDeathPayload captures a death transition. Alive false is terminal.
type PlayerDeathPayload struct {
	DeathCount int  `json:"deathCount"`
	Alive      bool `json:"isAlive"`
}
