package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"blast-arena/server/logging"
)

// ErrRoomFull rejects a join once a room holds its capacity of sessions.
// Capacity is the only gameplay failure surfaced to the caller; everything
// else is dropped silently per the best-effort protocol.
var ErrRoomFull = errors.New("room is full")

// SubscriberConn is the write half of a session's transport connection. The
// websocket layer provides the real implementation; tests substitute
// recording fakes.
type SubscriberConn interface {
	Write(data []byte) error
	SetWriteDeadline(deadline time.Time) error
	Close() error
}

// Subscriber serializes writes to one session's connection.
type Subscriber struct {
	conn SubscriberConn
	mu   sync.Mutex
}

// Send writes a single frame with the shared write deadline.
func (s *Subscriber) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.Write(data)
}

func (s *Subscriber) close() {
	s.conn.Close()
}

// outboundFrame is one marshalled wire frame with its recipients resolved at
// enqueue time, while the room lock still holds. Resolving early keeps the
// per-subscriber delivery order equal to the mutation order and guarantees a
// fresh subscriber never sees a delta that predates its keyframe.
type outboundFrame struct {
	data       []byte
	recipients []*roomMember
}

type roomMember struct {
	id  string
	sub *Subscriber
}

// Room owns the authoritative player map for one arena and is its single
// mutation point. Every operation holds mu for its whole critical section;
// broadcast fan-out runs on the room's worker goroutine so no operation
// blocks on the network.
type Room struct {
	id string

	mu          sync.Mutex
	players     map[string]*playerState
	subscribers map[string]*roomMember
	seq         uint64
	rng         *rand.Rand

	outbox chan outboundFrame
	quit   chan struct{}
	once   sync.Once

	publisher logging.Publisher
	telemetry *TelemetryCounters

	// onEmpty fires after the last session leaves; the manager uses it to
	// tear the room down.
	onEmpty func(id string)
}

// RoomConfig carries the collaborators a room needs; zero values fall back to
// no-op implementations.
type RoomConfig struct {
	Publisher logging.Publisher
	Telemetry *TelemetryCounters
	OnEmpty   func(id string)
	Seed      int64
}

// NewRoom constructs a room. The caller is expected to start its worker with
// Run and stop it with Stop.
func NewRoom(id string, cfg RoomConfig) *Room {
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher{}
	}
	telemetry := cfg.Telemetry
	if telemetry == nil {
		telemetry = NewTelemetryCounters()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Room{
		id:          id,
		players:     make(map[string]*playerState),
		subscribers: make(map[string]*roomMember),
		rng:         rand.New(rand.NewSource(seed)),
		outbox:      make(chan outboundFrame, 256),
		quit:        make(chan struct{}),
		publisher:   publisher,
		telemetry:   telemetry,
		onEmpty:     cfg.OnEmpty,
	}
}

// ID returns the room identifier.
func (r *Room) ID() string { return r.id }

// Run drives the room worker: ordered broadcast fan-out plus the heartbeat
// janitor. It returns when Stop is called.
func (r *Room) Run() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.quit:
			return
		case frame := <-r.outbox:
			r.deliver(frame)
		case now := <-ticker.C:
			r.PruneStale(now)
		}
	}
}

// Stop terminates the worker. Pending frames are discarded.
func (r *Room) Stop() {
	r.once.Do(func() { close(r.quit) })
}

// Join admits a session, spawning its player at a random point. The returned
// snapshot is the full player set for the new client's mirror seed. Existing
// clients learn of the newcomer through a player_added delta, not a join
// event.
func (r *Room) Join(sessionID string) (Player, []Player, error) {
	r.mu.Lock()
	if len(r.players) >= RoomCapacity {
		r.mu.Unlock()
		return Player{}, nil, ErrRoomFull
	}

	state := newPlayerState(sessionID, len(r.players), r.rng, time.Now())
	r.players[sessionID] = state

	player := state.snapshot()
	snapshot := r.snapshotLocked()
	r.enqueueLocked(r.recipientsLocked(sessionID),
		r.stateFrameLocked([]Patch{{
			Kind:     PatchPlayerAdded,
			EntityID: sessionID,
			Payload:  PlayerAddedPayload{Player: player},
		}}))
	r.mu.Unlock()

	r.publish(logging.EventLifecycleJoin, sessionID, player)
	return player, snapshot, nil
}

// Leave removes a session and its player. Calling it for an unknown session
// is a no-op, so a disconnect racing a prune is harmless.
func (r *Room) Leave(sessionID string) {
	r.mu.Lock()
	member, hadSub := r.subscribers[sessionID]
	delete(r.subscribers, sessionID)

	_, hadPlayer := r.players[sessionID]
	if hadPlayer {
		delete(r.players, sessionID)
		r.enqueueLocked(r.recipientsLocked(""),
			r.stateFrameLocked([]Patch{{Kind: PatchPlayerRemoved, EntityID: sessionID}}))
	}
	empty := hadPlayer && len(r.players) == 0
	r.mu.Unlock()

	if hadSub {
		member.sub.close()
	}
	if hadPlayer {
		r.publish(logging.EventLifecycleLeave, sessionID, nil)
	}
	if empty && r.onEmpty != nil {
		r.onEmpty(r.id)
	}
}

// Subscribe attaches a connection to an already-joined session and queues the
// initial keyframe ahead of any future delta. A second subscription for the
// same session replaces the first.
func (r *Room) Subscribe(sessionID string, conn SubscriberConn) (*Subscriber, bool) {
	r.mu.Lock()
	state, ok := r.players[sessionID]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}
	state.lastHeartbeat = time.Now()

	var stale *Subscriber
	if existing, ok := r.subscribers[sessionID]; ok {
		stale = existing.sub
	}
	member := &roomMember{id: sessionID, sub: &Subscriber{conn: conn}}
	r.subscribers[sessionID] = member

	r.seq++
	keyframe := StateMessage{
		Ver:        ProtocolVersion,
		Type:       MsgState,
		Players:    r.snapshotLocked(),
		Sequence:   r.seq,
		Resync:     true,
		ServerTime: time.Now().UnixMilli(),
	}
	r.enqueueLocked([]*roomMember{member}, marshalFrame(keyframe))
	r.mu.Unlock()

	if stale != nil {
		stale.close()
	}
	return member.sub, true
}

// Move overwrites the sender's position and tells everyone else. Unknown or
// dead senders are dropped silently; positions are not clamped after spawn.
func (r *Room) Move(sessionID string, x, y float64) {
	r.mu.Lock()
	state, ok := r.players[sessionID]
	if !ok || !state.Alive {
		r.mu.Unlock()
		return
	}
	state.X = x
	state.Y = y

	recipients := r.recipientsLocked(sessionID)
	r.enqueueLocked(recipients, marshalFrame(PlayerMovedMessage{
		Ver:       ProtocolVersion,
		Type:      MsgPlayerMoved,
		SessionID: sessionID,
		X:         x,
		Y:         y,
	}))
	r.enqueueLocked(recipients, r.stateFrameLocked([]Patch{{
		Kind:     PatchPlayerPos,
		EntityID: sessionID,
		Payload:  PlayerPosPayload{X: x, Y: y},
	}}))
	r.mu.Unlock()
}

// Shoot relays a shot to every other session. The server does not simulate
// bullet travel; hits come back as explicit reports.
func (r *Room) Shoot(sessionID string, startX, startY, dirX, dirY float64) {
	r.mu.Lock()
	state, ok := r.players[sessionID]
	if !ok || !state.Alive {
		r.mu.Unlock()
		return
	}
	r.enqueueLocked(r.recipientsLocked(sessionID), marshalFrame(PlayerShootMessage{
		Ver:        ProtocolVersion,
		Type:       MsgPlayerShoot,
		SessionID:  sessionID,
		StartX:     startX,
		StartY:     startY,
		DirectionX: dirX,
		DirectionY: dirY,
	}))
	r.mu.Unlock()
}

// Hit applies one point of damage to the target. Non-lethal damage replicates
// as a health delta only; a death broadcasts player_respawn or
// player_game_over to every session alongside the matching deltas. Hits on
// absent or already-out targets are dropped silently.
func (r *Room) Hit(targetSessionID string) {
	r.mu.Lock()
	state, ok := r.players[targetSessionID]
	if !ok || !state.Alive {
		r.mu.Unlock()
		return
	}

	result := resolveHit(state.Health, state.DeathCount, r.rng)
	state.Health = result.Health
	state.DeathCount = result.DeathCount
	state.Alive = result.Alive

	all := r.recipientsLocked("")
	switch result.Outcome {
	case outcomeDamaged:
		r.enqueueLocked(all, r.stateFrameLocked([]Patch{{
			Kind:     PatchPlayerHealth,
			EntityID: targetSessionID,
			Payload:  PlayerHealthPayload{Health: result.Health},
		}}))
	case outcomeRespawn:
		state.X = result.X
		state.Y = result.Y
		r.enqueueLocked(all, marshalFrame(PlayerRespawnMessage{
			Ver:        ProtocolVersion,
			Type:       MsgPlayerRespawn,
			SessionID:  targetSessionID,
			X:          result.X,
			Y:          result.Y,
			DeathCount: result.DeathCount,
		}))
		r.enqueueLocked(all, r.stateFrameLocked([]Patch{
			{Kind: PatchPlayerPos, EntityID: targetSessionID, Payload: PlayerPosPayload{X: result.X, Y: result.Y}},
			{Kind: PatchPlayerHealth, EntityID: targetSessionID, Payload: PlayerHealthPayload{Health: result.Health}},
			{Kind: PatchPlayerDeath, EntityID: targetSessionID, Payload: PlayerDeathPayload{DeathCount: result.DeathCount, Alive: true}},
		}))
	case outcomeGameOver:
		r.enqueueLocked(all, marshalFrame(PlayerGameOverMessage{
			Ver:        ProtocolVersion,
			Type:       MsgPlayerGameOver,
			SessionID:  targetSessionID,
			DeathCount: result.DeathCount,
		}))
		r.enqueueLocked(all, r.stateFrameLocked([]Patch{
			{Kind: PatchPlayerHealth, EntityID: targetSessionID, Payload: PlayerHealthPayload{Health: result.Health}},
			{Kind: PatchPlayerDeath, EntityID: targetSessionID, Payload: PlayerDeathPayload{DeathCount: result.DeathCount, Alive: false}},
		}))
	}
	r.mu.Unlock()

	switch result.Outcome {
	case outcomeDamaged:
		r.publish(logging.EventCombatHit, targetSessionID, PlayerHealthPayload{Health: result.Health})
	case outcomeRespawn:
		r.publish(logging.EventCombatRespawn, targetSessionID, PlayerDeathPayload{DeathCount: result.DeathCount, Alive: true})
	case outcomeGameOver:
		r.publish(logging.EventCombatGameOver, targetSessionID, PlayerDeathPayload{DeathCount: result.DeathCount, Alive: false})
	}
}

// UpdateName overwrites the sender's display name. The name is NFC-normalized
// and capped; an empty result keeps the current name. Replication is a plain
// delta, there is no name event.
func (r *Room) UpdateName(sessionID, name string) {
	name = normalizeName(name)
	if name == "" {
		return
	}

	r.mu.Lock()
	state, ok := r.players[sessionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	state.Name = name
	r.enqueueLocked(r.recipientsLocked(sessionID), r.stateFrameLocked([]Patch{{
		Kind:     PatchPlayerName,
		EntityID: sessionID,
		Payload:  PlayerNamePayload{Name: name},
	}}))
	r.mu.Unlock()
}

// UpdateHeartbeat records the most recent heartbeat time and RTT for a session.
func (r *Room) UpdateHeartbeat(sessionID string, receivedAt time.Time, clientSent int64) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.players[sessionID]
	if !ok {
		return 0, false
	}
	state.lastHeartbeat = receivedAt

	if clientSent > 0 {
		rtt := receivedAt.Sub(time.UnixMilli(clientSent))
		if rtt < 0 {
			rtt = 0
		}
		// Skewed clocks can report absurd round trips; keep those for
		// liveness but do not record them.
		if rtt <= 5*time.Second {
			state.lastRTT = rtt
		}
	}
	return state.lastRTT, true
}

// PruneStale drops every session whose last heartbeat is older than the
// disconnect window. Each removal behaves exactly like a Leave.
func (r *Room) PruneStale(now time.Time) {
	r.mu.Lock()
	var stale []string
	for id, state := range r.players {
		if now.Sub(state.lastHeartbeat) > disconnectAfter {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	for _, id := range stale {
		r.publish(logging.EventNetworkTimeout, id, nil)
		r.Leave(id)
	}
}

// Snapshot returns a copy of the current player set.
func (r *Room) Snapshot() []Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// MemberCount reports the number of joined sessions.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// DiagnosticsSnapshot exposes heartbeat data for the diagnostics endpoint.
func (r *Room) DiagnosticsSnapshot() []DiagnosticsPlayer {
	r.mu.Lock()
	defer r.mu.Unlock()

	players := make([]DiagnosticsPlayer, 0, len(r.players))
	for _, state := range r.players {
		players = append(players, DiagnosticsPlayer{
			ID:            state.ID,
			Room:          r.id,
			LastHeartbeat: state.lastHeartbeat.UnixMilli(),
			RTTMillis:     state.lastRTT.Milliseconds(),
		})
	}
	return players
}

func (r *Room) snapshotLocked() []Player {
	players := make([]Player, 0, len(r.players))
	for _, state := range r.players {
		players = append(players, state.snapshot())
	}
	return players
}

// recipientsLocked copies the subscriber set, optionally excluding one session.
func (r *Room) recipientsLocked(exclude string) []*roomMember {
	members := make([]*roomMember, 0, len(r.subscribers))
	for id, member := range r.subscribers {
		if id == exclude {
			continue
		}
		members = append(members, member)
	}
	return members
}

// stateFrameLocked wraps patches in a sequenced state message. The sequence
// is stamped under the room lock so clients can discard stale frames.
func (r *Room) stateFrameLocked(patches []Patch) []byte {
	r.seq++
	return marshalFrame(StateMessage{
		Ver:        ProtocolVersion,
		Type:       MsgState,
		Patches:    patches,
		Sequence:   r.seq,
		ServerTime: time.Now().UnixMilli(),
	})
}

// enqueueLocked hands a frame to the worker without ever blocking the room.
// A full outbox drops the frame and counts it; clients recover through the
// next keyframe on resubscribe.
func (r *Room) enqueueLocked(recipients []*roomMember, data []byte) {
	if len(recipients) == 0 || data == nil {
		return
	}
	select {
	case r.outbox <- outboundFrame{data: data, recipients: recipients}:
	default:
		r.telemetry.RecordDroppedFrame()
		r.publish(logging.EventNetworkFrameDropped, "", nil)
	}
}

// deliver fans one frame out to its recipients. Failed writes disconnect the
// session the same way a read error would.
func (r *Room) deliver(frame outboundFrame) {
	var failed []string
	for _, member := range frame.recipients {
		if err := member.sub.Send(frame.data); err != nil {
			failed = append(failed, member.id)
			continue
		}
		r.telemetry.RecordBroadcast(len(frame.data))
	}
	for _, id := range failed {
		r.telemetry.RecordSendFailure()
		r.publish(logging.EventNetworkSendFailed, id, nil)
		r.Leave(id)
	}
}

func (r *Room) publish(eventType logging.EventType, sessionID string, payload any) {
	event := logging.Event{
		Type:     eventType,
		Severity: logging.SeverityInfo,
		Actor:    logging.EntityRef{ID: sessionID, Kind: logging.EntityKindPlayer},
		Payload:  payload,
		Extra:    map[string]any{"room": r.id},
	}
	r.publisher.Publish(context.Background(), event)
}

func marshalFrame(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("failed to marshal wire frame: %v", err)
		return nil
	}
	return data
}

// normalizeName canonicalizes a client-supplied display name. The cap cuts on
// a rune boundary so a multibyte character straddling it never leaves an
// invalid UTF-8 tail.
func normalizeName(name string) string {
	name = strings.TrimSpace(norm.NFC.String(name))
	if len(name) > maxNameLength {
		cut := maxNameLength
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	return name
}
