package server

import "time"

const (
	ProtocolVersion = 1

	writeWait         = 10 * time.Second
	heartbeatInterval = 2 * time.Second
	disconnectAfter   = 3 * heartbeatInterval
	janitorInterval   = heartbeatInterval

	// RoomCapacity is the maximum number of concurrently joined sessions per room.
	RoomCapacity = 4

	// MaxDeaths is the terminal death count; a player whose deathCount reaches
	// it stays dead for the rest of the room's life.
	MaxDeaths = 3

	playerMaxHealth = 10

	// spawnExtent bounds the random placement on create and respawn. Movement
	// after spawn is not clamped to it.
	spawnExtent = 400

	maxNameLength = 32

	// DefaultRoomID is used when a join request names no room.
	DefaultRoomID = "default"
)
