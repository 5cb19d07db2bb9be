// Package mirror maintains a client-side replica of the authoritative player
// set: snapshots seed it, deltas and events keep it converged, and remote
// motion is smoothed instead of teleported.
package mirror

import (
	"encoding/json"

	"blast-arena/server"
)

// smoothing is the per-update convergence factor for remote positions.
const smoothing = 0.5

// defaultStep is how far the predicted local player advances per frame of
// held input.
const defaultStep = 4.0

// respawnHealth matches the server's post-respawn health pool.
const respawnHealth = 10

// Entity is one mirrored player. Auth coordinates are the server's latest
// word; Render coordinates converge toward them one update at a time.
type Entity struct {
	ID         string
	Name       string
	AuthX      float64
	AuthY      float64
	RenderX    float64
	RenderY    float64
	Health     int
	DeathCount int
	Alive      bool
}

// World is the local replica owned by a single client session.
type World struct {
	sessionID string
	entities  map[string]*Entity
	lastSeq   uint64

	predictedX float64
	predictedY float64
	step       float64

	gameOver bool
}

// New creates an empty replica for the given local session.
func New(sessionID string) *World {
	return &World{
		sessionID: sessionID,
		entities:  make(map[string]*Entity),
		step:      defaultStep,
	}
}

// ApplyState consumes one replication frame. Keyframes replace the replica
// wholesale; patch frames mutate it. Frames older than the newest one seen
// are discarded, which is safe because every patch carries absolute values.
func (w *World) ApplyState(msg server.StateMessage) {
	if msg.Sequence != 0 && msg.Sequence <= w.lastSeq && !msg.Resync {
		return
	}
	w.lastSeq = msg.Sequence

	if msg.Resync {
		w.applySnapshot(msg.Players)
		return
	}
	for _, patch := range msg.Patches {
		w.applyPatch(patch)
	}
}

// applySnapshot seeds the replica. First sightings land directly at the
// authoritative position; there is nothing sensible to smooth from.
func (w *World) applySnapshot(players []server.Player) {
	next := make(map[string]*Entity, len(players))
	for _, p := range players {
		next[p.ID] = &Entity{
			ID:         p.ID,
			Name:       p.Name,
			AuthX:      p.X,
			AuthY:      p.Y,
			RenderX:    p.X,
			RenderY:    p.Y,
			Health:     p.Health,
			DeathCount: p.DeathCount,
			Alive:      p.Alive,
		}
		if p.ID == w.sessionID {
			w.predictedX = p.X
			w.predictedY = p.Y
			if !p.Alive {
				w.gameOver = true
			}
		}
	}
	w.entities = next
}

func (w *World) applyPatch(patch server.Patch) {
	switch patch.Kind {
	case server.PatchPlayerAdded:
		payload, ok := payloadAs[server.PlayerAddedPayload](patch.Payload)
		if !ok {
			return
		}
		p := payload.Player
		w.entities[p.ID] = &Entity{
			ID:         p.ID,
			Name:       p.Name,
			AuthX:      p.X,
			AuthY:      p.Y,
			RenderX:    p.X,
			RenderY:    p.Y,
			Health:     p.Health,
			DeathCount: p.DeathCount,
			Alive:      p.Alive,
		}
	case server.PatchPlayerRemoved:
		delete(w.entities, patch.EntityID)
	case server.PatchPlayerPos:
		payload, ok := payloadAs[server.PlayerPosPayload](patch.Payload)
		if !ok {
			return
		}
		w.moveEntity(patch.EntityID, payload.X, payload.Y)
	case server.PatchPlayerName:
		payload, ok := payloadAs[server.PlayerNamePayload](patch.Payload)
		if !ok {
			return
		}
		if entity, ok := w.entities[patch.EntityID]; ok {
			entity.Name = payload.Name
		}
	case server.PatchPlayerHealth:
		payload, ok := payloadAs[server.PlayerHealthPayload](patch.Payload)
		if !ok {
			return
		}
		if entity, ok := w.entities[patch.EntityID]; ok {
			entity.Health = payload.Health
		}
	case server.PatchPlayerDeath:
		payload, ok := payloadAs[server.PlayerDeathPayload](patch.Payload)
		if !ok {
			return
		}
		entity, ok := w.entities[patch.EntityID]
		if !ok {
			return
		}
		entity.DeathCount = payload.DeathCount
		entity.Alive = payload.Alive
		if !payload.Alive && patch.EntityID == w.sessionID {
			w.gameOver = true
		}
	}
}

// ApplyMoved folds a movement event into the replica. Movement events never
// name the local session; the server does not echo moves to their sender.
func (w *World) ApplyMoved(msg server.PlayerMovedMessage) {
	w.moveEntity(msg.SessionID, msg.X, msg.Y)
}

// ApplyRespawn teleports the named player to its fresh spawn and restores its
// health in the same step. Respawns are the one mid-life teleport.
func (w *World) ApplyRespawn(msg server.PlayerRespawnMessage) {
	entity, ok := w.entities[msg.SessionID]
	if !ok {
		return
	}
	entity.AuthX = msg.X
	entity.AuthY = msg.Y
	entity.RenderX = msg.X
	entity.RenderY = msg.Y
	entity.Health = respawnHealth
	entity.DeathCount = msg.DeathCount
	if msg.SessionID == w.sessionID {
		w.predictedX = msg.X
		w.predictedY = msg.Y
	}
}

// ApplyGameOver marks the named player terminal; if it is the local session
// the replica flags its own game over.
func (w *World) ApplyGameOver(msg server.PlayerGameOverMessage) {
	if entity, ok := w.entities[msg.SessionID]; ok {
		entity.DeathCount = msg.DeathCount
		entity.Alive = false
	}
	if msg.SessionID == w.sessionID {
		w.gameOver = true
	}
}

// moveEntity updates the authoritative position and glides the rendered one
// halfway toward it. The local session's predicted position is never touched
// by movement updates.
func (w *World) moveEntity(id string, x, y float64) {
	entity, ok := w.entities[id]
	if !ok {
		return
	}
	entity.AuthX = x
	entity.AuthY = y
	if id == w.sessionID {
		return
	}
	entity.RenderX += smoothing * (x - entity.RenderX)
	entity.RenderY += smoothing * (y - entity.RenderY)
}

// StepLocal advances the predicted local position one frame in the given
// input direction and returns the coordinates to report in a move request.
func (w *World) StepLocal(dirX, dirY float64) (float64, float64) {
	w.predictedX += dirX * w.step
	w.predictedY += dirY * w.step
	return w.predictedX, w.predictedY
}

// Predicted returns the locally predicted position.
func (w *World) Predicted() (float64, float64) {
	return w.predictedX, w.predictedY
}

// Entity returns the mirrored player for id, if known.
func (w *World) Entity(id string) (*Entity, bool) {
	entity, ok := w.entities[id]
	return entity, ok
}

// Entities returns the mirrored players.
func (w *World) Entities() map[string]*Entity {
	return w.entities
}

// GameOver reports whether the local session has reached its terminal death.
func (w *World) GameOver() bool {
	return w.gameOver
}

// payloadAs recovers a typed patch payload. In-process patches arrive typed;
// frames decoded from the wire carry generic maps and take one JSON
// round-trip.
func payloadAs[T any](value any) (T, bool) {
	switch v := value.(type) {
	case T:
		return v, true
	case *T:
		if v == nil {
			var zero T
			return zero, false
		}
		return *v, true
	}
	data, err := json.Marshal(value)
	if err != nil {
		var zero T
		return zero, false
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		var zero T
		return zero, false
	}
	return out, true
}
