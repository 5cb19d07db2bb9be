package net

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	nethttp "net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"blast-arena/server"
	"blast-arena/server/internal/net/ws"
)

// HTTPHandlerConfig configures the public HTTP surface.
type HTTPHandlerConfig struct {
	Logger *log.Logger
}

type joinRequest struct {
	RoomID string `json:"roomId"`
}

// NewHTTPHandler wires the join, websocket, lobby, and diagnostics endpoints
// over the room manager.
func NewHTTPHandler(manager *server.Manager, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	wsHandler := ws.NewHandler(manager, logger)

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/join", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		var req joinRequest
		if r.Body != nil {
			defer r.Body.Close()
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
				httpError(w, "invalid payload", nethttp.StatusBadRequest)
				return
			}
		}

		room := manager.GetOrCreate(req.RoomID)
		sessionID := uuid.NewString()

		player, snapshot, err := room.Join(sessionID)
		if err != nil {
			if errors.Is(err, server.ErrRoomFull) {
				httpError(w, "room is full", nethttp.StatusConflict)
				return
			}
			httpError(w, "join failed", nethttp.StatusInternalServerError)
			return
		}

		response := server.JoinResponse{
			Ver:      server.ProtocolVersion,
			ID:       player.ID,
			RoomID:   room.ID(),
			Players:  snapshot,
			Capacity: server.RoomCapacity,
		}
		data, err := json.Marshal(response)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/rooms", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		data, err := json.Marshal(manager.List())
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string `json:"status"`
			ServerTime int64  `json:"serverTime"`
			Players    any    `json:"players"`
			Telemetry  any    `json:"telemetry"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Players:    manager.DiagnosticsSnapshot(),
			Telemetry:  manager.Telemetry().Snapshot(),
		}
		data, err := json.Marshal(payload)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	mux.HandleFunc("/ws", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		sessionID := r.URL.Query().Get("id")
		if sessionID == "" {
			httpError(w, "missing id", nethttp.StatusBadRequest)
			return
		}
		roomID := r.URL.Query().Get("room")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Printf("upgrade failed for %s: %v", sessionID, err)
			return
		}

		wsHandler.Serve(roomID, sessionID, conn)
	})

	return mux
}

func httpError(w nethttp.ResponseWriter, message string, code int) {
	nethttp.Error(w, message, code)
}
