package server

import (
	"sync"

	"blast-arena/server/logging"
)

// RoomInfo is returned by the lobby listing endpoint.
type RoomInfo struct {
	ID       string `json:"id"`
	Players  int    `json:"players"`
	Capacity int    `json:"capacity"`
}

// Manager holds the live rooms keyed by id. Rooms are created on first join
// and torn down when their last session leaves; different rooms never share
// state and run their workers independently.
type Manager struct {
	mu        sync.RWMutex
	rooms     map[string]*Room
	publisher logging.Publisher
	telemetry *TelemetryCounters
}

// NewManager constructs an empty manager. The publisher and counters are
// shared across all rooms it creates.
func NewManager(publisher logging.Publisher, telemetry *TelemetryCounters) *Manager {
	if publisher == nil {
		publisher = logging.NopPublisher{}
	}
	if telemetry == nil {
		telemetry = NewTelemetryCounters()
	}
	return &Manager{
		rooms:     make(map[string]*Room),
		publisher: publisher,
		telemetry: telemetry,
	}
}

// GetOrCreate returns the room for the given id, creating and starting it if
// needed. An empty id maps to the default room.
func (m *Manager) GetOrCreate(id string) *Room {
	if id == "" {
		id = DefaultRoomID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[id]; ok {
		return room
	}
	room := NewRoom(id, RoomConfig{
		Publisher: m.publisher,
		Telemetry: m.telemetry,
		OnEmpty:   m.remove,
	})
	m.rooms[id] = room
	go room.Run()
	return room
}

// Lookup returns the room for the given id without creating it.
func (m *Manager) Lookup(id string) (*Room, bool) {
	if id == "" {
		id = DefaultRoomID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	return room, ok
}

// List reports every active room with its occupancy.
func (m *Manager) List() []RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]RoomInfo, 0, len(m.rooms))
	for id, room := range m.rooms {
		infos = append(infos, RoomInfo{ID: id, Players: room.MemberCount(), Capacity: RoomCapacity})
	}
	return infos
}

// DiagnosticsSnapshot aggregates heartbeat data across all rooms.
func (m *Manager) DiagnosticsSnapshot() []DiagnosticsPlayer {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.mu.RUnlock()

	var players []DiagnosticsPlayer
	for _, room := range rooms {
		players = append(players, room.DiagnosticsSnapshot()...)
	}
	return players
}

// Telemetry returns the shared counters.
func (m *Manager) Telemetry() *TelemetryCounters { return m.telemetry }

// Shutdown stops every room worker.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, room := range m.rooms {
		room.Stop()
		delete(m.rooms, id)
	}
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[id]; ok {
		room.Stop()
		delete(m.rooms, id)
	}
}
