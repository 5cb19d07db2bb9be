package server

import "math/rand"

// hitOutcome classifies what a resolved hit did to the target.
type hitOutcome int

const (
	// outcomeDamaged means the target lost health but stayed up.
	outcomeDamaged hitOutcome = iota
	// outcomeRespawn means the target died below the death limit and respawned.
	outcomeRespawn
	// outcomeGameOver means the target reached the death limit and is out.
	outcomeGameOver
)

// hitResult carries the field values the room writes back after a hit. The
// resolver computes, it never mutates.
type hitResult struct {
	Outcome    hitOutcome
	Health     int
	DeathCount int
	Alive      bool
	X, Y       float64
}

// resolveHit applies one point of damage to a living target and decides
// between damage, respawn, and game over. Callers must not invoke it for a
// target that is already out; the room checks Alive first.
func resolveHit(health, deathCount int, rng *rand.Rand) hitResult {
	health--
	if health > 0 {
		return hitResult{Outcome: outcomeDamaged, Health: health, DeathCount: deathCount, Alive: true}
	}

	deathCount++
	if deathCount >= MaxDeaths {
		// Terminal: health stays wherever it landed, nothing resets.
		return hitResult{Outcome: outcomeGameOver, Health: health, DeathCount: deathCount, Alive: false}
	}

	x, y := randomSpawn(rng)
	return hitResult{
		Outcome:    outcomeRespawn,
		Health:     playerMaxHealth,
		DeathCount: deathCount,
		Alive:      true,
		X:          x,
		Y:          y,
	}
}
