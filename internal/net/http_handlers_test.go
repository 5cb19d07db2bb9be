package net

import (
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"blast-arena/server"
)

func newTestHandler(t *testing.T) (nethttp.Handler, *server.Manager) {
	t.Helper()
	manager := server.NewManager(nil, server.NewTelemetryCounters())
	t.Cleanup(manager.Shutdown)
	return NewHTTPHandler(manager, HTTPHandlerConfig{}), manager
}

func postJoin(t *testing.T, handler nethttp.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(nethttp.MethodPost, "/join", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeJoin(t *testing.T, rec *httptest.ResponseRecorder) server.JoinResponse {
	t.Helper()
	var resp server.JoinResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode join response: %v", err)
	}
	return resp
}

func TestJoinAssignsSessionAndSnapshot(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := postJoin(t, handler, `{"roomId":"alpha"}`)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeJoin(t, rec)
	if resp.Ver != server.ProtocolVersion {
		t.Fatalf("unexpected protocol version %d", resp.Ver)
	}
	if resp.ID == "" {
		t.Fatalf("no session id assigned")
	}
	if resp.RoomID != "alpha" {
		t.Fatalf("unexpected room id %q", resp.RoomID)
	}
	if resp.Capacity != server.RoomCapacity {
		t.Fatalf("unexpected capacity %d", resp.Capacity)
	}
	if len(resp.Players) != 1 || resp.Players[0].Name != "Player 0" {
		t.Fatalf("unexpected snapshot %+v", resp.Players)
	}
}

func TestJoinDefaultsRoomID(t *testing.T) {
	handler, _ := newTestHandler(t)

	resp := decodeJoin(t, postJoin(t, handler, `{}`))
	if resp.RoomID != server.DefaultRoomID {
		t.Fatalf("unexpected room id %q", resp.RoomID)
	}
}

func TestJoinRejectsFullRoom(t *testing.T) {
	handler, _ := newTestHandler(t)

	for i := 0; i < server.RoomCapacity; i++ {
		if rec := postJoin(t, handler, `{"roomId":"full"}`); rec.Code != nethttp.StatusOK {
			t.Fatalf("join %d failed with %d", i, rec.Code)
		}
	}

	rec := postJoin(t, handler, `{"roomId":"full"}`)
	if rec.Code != nethttp.StatusConflict {
		t.Fatalf("expected 409 for full room, got %d", rec.Code)
	}
}

func TestJoinRejectsWrongMethod(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(nethttp.MethodGet, "/join", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != nethttp.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestJoinRejectsMalformedPayload(t *testing.T) {
	handler, _ := newTestHandler(t)

	if rec := postJoin(t, handler, `{"roomId":`); rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRoomsListsActiveRooms(t *testing.T) {
	handler, _ := newTestHandler(t)

	postJoin(t, handler, `{"roomId":"alpha"}`)
	postJoin(t, handler, `{"roomId":"alpha"}`)

	req := httptest.NewRequest(nethttp.MethodGet, "/rooms", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	var rooms []server.RoomInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &rooms); err != nil {
		t.Fatalf("decode rooms: %v", err)
	}
	if len(rooms) != 1 {
		t.Fatalf("expected one room, got %+v", rooms)
	}
	if rooms[0].ID != "alpha" || rooms[0].Players != 2 || rooms[0].Capacity != server.RoomCapacity {
		t.Fatalf("unexpected room info %+v", rooms[0])
	}
}

func TestDiagnosticsReportsStatus(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(nethttp.MethodGet, "/diagnostics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	var payload struct {
		Status    string `json:"status"`
		Telemetry struct {
			FramesSent uint64 `json:"framesSent"`
		} `json:"telemetry"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode diagnostics: %v", err)
	}
	if payload.Status != "ok" {
		t.Fatalf("unexpected status %q", payload.Status)
	}
}

func TestHealth(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(nethttp.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != nethttp.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
}

// dialSession joins a room over HTTP and opens the websocket for the assigned
// session, mirroring the real client handshake.
func dialSession(t *testing.T, srv *httptest.Server, roomID string) (string, *websocket.Conn) {
	t.Helper()

	body := strings.NewReader(`{"roomId":"` + roomID + `"}`)
	resp, err := nethttp.Post(srv.URL+"/join", "application/json", body)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	defer resp.Body.Close()
	var join server.JoinResponse
	if err := json.NewDecoder(resp.Body).Decode(&join); err != nil {
		t.Fatalf("decode join: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?id=" + join.ID + "&room=" + roomID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return join.ID, conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(payload, &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return frame
}

func TestWebsocketHandshakeDeliversKeyframe(t *testing.T) {
	handler, _ := newTestHandler(t)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	_, conn := dialSession(t, srv, "alpha")

	frame := readFrame(t, conn)
	if frame["type"] != server.MsgState {
		t.Fatalf("expected state keyframe, got %v", frame["type"])
	}
	if frame["resync"] != true {
		t.Fatalf("first frame is not a resync: %v", frame)
	}
}

func TestWebsocketMoveRelaysToOtherSessions(t *testing.T) {
	handler, _ := newTestHandler(t)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	_, receiver := dialSession(t, srv, "alpha")
	readFrame(t, receiver)

	moverID, mover := dialSession(t, srv, "alpha")
	readFrame(t, mover)

	// The mover's join reaches the receiver as an added-player patch.
	readFrame(t, receiver)

	move := map[string]any{"ver": server.ProtocolVersion, "type": "move", "x": 42.0, "y": 24.0}
	if err := mover.WriteJSON(move); err != nil {
		t.Fatalf("write move: %v", err)
	}

	frame := readFrame(t, receiver)
	if frame["type"] != server.MsgPlayerMoved {
		t.Fatalf("expected player_moved, got %v", frame["type"])
	}
	if frame["sessionId"] != moverID || frame["x"] != 42.0 {
		t.Fatalf("unexpected move relay %v", frame)
	}

	// The mover never hears its own movement; the next frame it could see is
	// the positional patch addressed to others only, so nothing arrives.
	mover.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := mover.ReadMessage(); err == nil {
		t.Fatalf("mover received an echoed frame")
	}
}

func TestWebsocketRejectsUnknownRoom(t *testing.T) {
	handler, _ := newTestHandler(t)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?id=ghost&room=nowhere"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected close for unknown room")
	}
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestWebsocketHeartbeatAck(t *testing.T) {
	handler, _ := newTestHandler(t)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	_, conn := dialSession(t, srv, "alpha")
	readFrame(t, conn)

	sentAt := time.Now().UnixMilli()
	ping := map[string]any{"ver": server.ProtocolVersion, "type": "heartbeat", "sentAt": sentAt}
	if err := conn.WriteJSON(ping); err != nil {
		t.Fatalf("write heartbeat: %v", err)
	}

	frame := readFrame(t, conn)
	if frame["type"] != server.MsgHeartbeat {
		t.Fatalf("expected heartbeat ack, got %v", frame["type"])
	}
	if frame["clientTime"] != float64(sentAt) {
		t.Fatalf("ack does not echo client time: %v", frame)
	}
}
