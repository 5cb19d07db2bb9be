package server

import (
	"math/rand"
	"testing"
)

func TestResolveHitDamagesUntilZero(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	health := playerMaxHealth
	for expected := 9; expected >= 1; expected-- {
		result := resolveHit(health, 0, rng)
		if result.Outcome != outcomeDamaged {
			t.Fatalf("expected damage outcome at health %d, got %v", health, result.Outcome)
		}
		if result.Health != expected {
			t.Fatalf("expected health %d, got %d", expected, result.Health)
		}
		if result.DeathCount != 0 || !result.Alive {
			t.Fatalf("damage outcome mutated death state: %+v", result)
		}
		health = result.Health
	}
}

func TestResolveHitRespawnsBelowDeathLimit(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for deathCount := 0; deathCount < MaxDeaths-1; deathCount++ {
		result := resolveHit(1, deathCount, rng)
		if result.Outcome != outcomeRespawn {
			t.Fatalf("expected respawn at death count %d, got %v", deathCount, result.Outcome)
		}
		if result.Health != playerMaxHealth {
			t.Fatalf("respawn did not restore health: %d", result.Health)
		}
		if result.DeathCount != deathCount+1 {
			t.Fatalf("expected death count %d, got %d", deathCount+1, result.DeathCount)
		}
		if !result.Alive {
			t.Fatalf("respawned player not alive")
		}
		if result.X < 0 || result.X >= 400 || result.Y < 0 || result.Y >= 400 {
			t.Fatalf("respawn position out of range: (%v, %v)", result.X, result.Y)
		}
	}
}

func TestResolveHitTerminalAtDeathLimit(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	result := resolveHit(1, MaxDeaths-1, rng)
	if result.Outcome != outcomeGameOver {
		t.Fatalf("expected game over, got %v", result.Outcome)
	}
	if result.Alive {
		t.Fatalf("terminal player still alive")
	}
	if result.DeathCount != MaxDeaths {
		t.Fatalf("expected death count %d, got %d", MaxDeaths, result.DeathCount)
	}
	if result.Health != 0 {
		t.Fatalf("terminal death should not reset health, got %d", result.Health)
	}
}
