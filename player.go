package server

import (
	"fmt"
	"math/rand"
	"time"
)

// Player is the broadcast-facing record replicated to every client.
type Player struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Health     int     `json:"health"`
	DeathCount int     `json:"deathCount"`
	Alive      bool    `json:"isAlive"`
}

type playerState struct {
	Player
	joinOrdinal   int
	lastHeartbeat time.Time
	lastRTT       time.Duration
}

func (s *playerState) snapshot() Player {
	return s.Player
}

// newPlayerState builds a freshly spawned player for the given join ordinal.
func newPlayerState(sessionID string, ordinal int, rng *rand.Rand, now time.Time) *playerState {
	x, y := randomSpawn(rng)
	return &playerState{
		Player: Player{
			ID:         sessionID,
			Name:       fmt.Sprintf("Player %d", ordinal),
			X:          x,
			Y:          y,
			Health:     playerMaxHealth,
			DeathCount: 0,
			Alive:      true,
		},
		joinOrdinal:   ordinal,
		lastHeartbeat: now,
	}
}

func randomSpawn(rng *rand.Rand) (float64, float64) {
	return float64(rng.Intn(spawnExtent)), float64(rng.Intn(spawnExtent))
}
