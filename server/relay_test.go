package server

import (
	"encoding/json"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/arenaserver/config"
	"github.com/wfunc/arenaserver/logger"
	"github.com/wfunc/arenaserver/models"
	"github.com/wfunc/arenaserver/network"
	"github.com/wfunc/arenaserver/persistence"
	"github.com/wfunc/arenaserver/session"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type recordedEvent struct {
	Name    string
	Payload interface{}
}

// MockConnection records everything sent to it.
type MockConnection struct {
	mutex sync.Mutex
	sent  []recordedEvent
}

func (m *MockConnection) Send(event string, payload interface{}) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sent = append(m.sent, recordedEvent{Name: event, Payload: payload})
	return nil
}

func (m *MockConnection) ReadEvent() (*network.Event, error)  { return nil, nil }
func (m *MockConnection) Close() error                        { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration) {}

func (m *MockConnection) count(name string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	n := 0
	for _, evt := range m.sent {
		if evt.Name == name {
			n++
		}
	}
	return n
}

func (m *MockConnection) last(name string) (recordedEvent, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Name == name {
			return m.sent[i], true
		}
	}
	return recordedEvent{}, false
}

func newTestServer() (*GameServer, persistence.Store) {
	store := persistence.NewMemory()
	cfg := &config.Config{
		Game: config.GameConfig{MaxPlayers: 2, StartHealth: 100, RoomCodeLength: 6},
	}
	return NewGameServer(cfg, store, nil), store
}

func marshalEvent(t *testing.T, name string, payload interface{}) *network.Event {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}
	return &network.Event{Name: name, Data: data}
}

// connect identifies a fresh mock connection as the given user.
func connect(t *testing.T, srv *GameServer, userID, username string) (*session.Session, *MockConnection) {
	t.Helper()
	conn := &MockConnection{}
	sess := session.NewSession("sess-"+userID, conn)
	srv.sessions.Add(sess)

	srv.handleEvent(sess, marshalEvent(t, network.EvtIdentify, identifyPayload{UserID: userID, Username: username}))
	if _, ok := conn.last(network.EvtAuthenticated); !ok {
		t.Fatal("identify should be acknowledged with an authenticated event")
	}
	return sess, conn
}

func joinRoom(t *testing.T, srv *GameServer, sess *session.Session, roomID string) {
	t.Helper()
	srv.handleEvent(sess, marshalEvent(t, network.EvtRoomJoin, roomPayload{RoomID: roomID}))
}

func TestIdentify_BindsUserDirectory(t *testing.T) {
	srv, _ := newTestServer()
	sess, _ := connect(t, srv, "u1", "alice")

	found, online := srv.sessions.GetByUserID("u1")
	if !online || found.GetID() != sess.GetID() {
		t.Fatal("identify should register the session in the user directory")
	}
}

func TestRoomJoin_RequiresIdentify(t *testing.T) {
	srv, _ := newTestServer()
	conn := &MockConnection{}
	sess := session.NewSession("anon", conn)
	srv.sessions.Add(sess)

	srv.handleEvent(sess, marshalEvent(t, network.EvtRoomJoin, roomPayload{RoomID: "whatever"}))
	if _, ok := conn.last(network.EvtError); !ok {
		t.Error("joining before identify should produce an error event")
	}
}

func TestRoomJoin_InlineIdentity(t *testing.T) {
	srv, _ := newTestServer()
	conn := &MockConnection{}
	sess := session.NewSession("fresh", conn)
	srv.sessions.Add(sess)

	room, _ := srv.registry.CreateRoom("Arena", "u1", "alice")
	srv.handleEvent(sess, marshalEvent(t, network.EvtRoomJoin, roomPayload{
		RoomID: room.ID, UserID: "u2", Username: "bob",
	}))

	if _, ok := conn.last(network.EvtRoomState); !ok {
		t.Fatal("a join carrying the identity inline should succeed")
	}
	if _, online := srv.sessions.GetByUserID("u2"); !online {
		t.Error("the inline identity should be bound to the connection")
	}
}

func TestRoomJoin_NotifiesOthersAndSendsState(t *testing.T) {
	srv, _ := newTestServer()
	alice, aliceConn := connect(t, srv, "u1", "alice")
	bob, bobConn := connect(t, srv, "u2", "bob")

	room, _ := srv.registry.CreateRoom("Arena", "u1", "alice")
	joinRoom(t, srv, alice, room.ID)

	state, ok := aliceConn.last(network.EvtRoomState)
	if !ok {
		t.Fatal("joiner should receive the room state")
	}
	if state.Payload.(roomStateEvent).Room.ID != room.ID {
		t.Error("room state should describe the joined room")
	}

	joinRoom(t, srv, bob, room.ID)

	joined, ok := aliceConn.last(network.EvtPlayerJoined)
	if !ok {
		t.Fatal("existing members should be told about the new player")
	}
	payload := joined.Payload.(playerJoinedEvent)
	if payload.UserID != "u2" || len(payload.Players) != 2 {
		t.Errorf("Unexpected player:joined payload: %+v", payload)
	}
	if bobConn.count(network.EvtPlayerJoined) != 0 {
		t.Error("the joiner should not be told about their own join")
	}
}

func TestRoomJoin_FullRoom(t *testing.T) {
	srv, _ := newTestServer()
	alice, _ := connect(t, srv, "u1", "alice")
	bob, _ := connect(t, srv, "u2", "bob")
	carol, carolConn := connect(t, srv, "u3", "carol")

	room, _ := srv.registry.CreateRoom("Arena", "u1", "alice")
	joinRoom(t, srv, alice, room.ID)
	joinRoom(t, srv, bob, room.ID)
	joinRoom(t, srv, carol, room.ID)

	evt, ok := carolConn.last(network.EvtError)
	if !ok {
		t.Fatal("joining a full room should produce an error event")
	}
	if evt.Payload.(errorEvent).Message != "room is full" {
		t.Errorf("Unexpected error message: %+v", evt.Payload)
	}
}

// fullLobby wires two identified players into one room and returns it.
func fullLobby(t *testing.T, srv *GameServer) (room models.Room, alice, bob *session.Session, aliceConn, bobConn *MockConnection) {
	t.Helper()
	alice, aliceConn = connect(t, srv, "u1", "alice")
	bob, bobConn = connect(t, srv, "u2", "bob")

	room, _ = srv.registry.CreateRoom("Arena", "u1", "alice")
	joinRoom(t, srv, alice, room.ID)
	joinRoom(t, srv, bob, room.ID)
	return room, alice, bob, aliceConn, bobConn
}

func TestReadyFlow_RoomReadyWhenAllFlagged(t *testing.T) {
	srv, _ := newTestServer()
	_, alice, bob, aliceConn, bobConn := fullLobby(t, srv)

	srv.handleEvent(alice, marshalEvent(t, network.EvtPlayerReady, readyPayload{Ready: true}))
	if bobConn.count(network.EvtRoomReady) != 0 {
		t.Fatal("room:ready must not fire before everyone is ready")
	}

	srv.handleEvent(bob, marshalEvent(t, network.EvtPlayerReady, readyPayload{Ready: true}))

	for _, conn := range []*MockConnection{aliceConn, bobConn} {
		if conn.count(network.EvtPlayerReady) != 2 {
			t.Errorf("Expected 2 player:ready events, got %d", conn.count(network.EvtPlayerReady))
		}
		evt, ok := conn.last(network.EvtRoomReady)
		if !ok {
			t.Fatal("room:ready should reach every member")
		}
		if evt.Payload.(roomReadyEvent).Room.Status != models.StatusReady {
			t.Error("room:ready should carry the ready room")
		}
	}
}

func TestGameStart_NonHostRejected(t *testing.T) {
	srv, _ := newTestServer()
	_, alice, bob, _, bobConn := fullLobby(t, srv)

	srv.handleEvent(alice, marshalEvent(t, network.EvtPlayerReady, readyPayload{Ready: true}))
	srv.handleEvent(bob, marshalEvent(t, network.EvtPlayerReady, readyPayload{Ready: true}))

	srv.handleEvent(bob, marshalEvent(t, network.EvtGameStart, struct{}{}))

	evt, ok := bobConn.last(network.EvtError)
	if !ok {
		t.Fatal("non-host start should produce an error event")
	}
	if evt.Payload.(errorEvent).Message != "only host can start the game" {
		t.Errorf("Unexpected error: %+v", evt.Payload)
	}
	if bobConn.count(network.EvtGameStart) != 0 {
		t.Error("a rejected start must not begin the game")
	}
}

func TestGameStart_NotAllReady(t *testing.T) {
	srv, _ := newTestServer()
	_, alice, _, aliceConn, _ := fullLobby(t, srv)

	srv.handleEvent(alice, marshalEvent(t, network.EvtPlayerReady, readyPayload{Ready: true}))
	srv.handleEvent(alice, marshalEvent(t, network.EvtGameStart, struct{}{}))

	evt, ok := aliceConn.last(network.EvtError)
	if !ok {
		t.Fatal("start before everyone is ready should produce an error event")
	}
	if evt.Payload.(errorEvent).Message != "not all players are ready" {
		t.Errorf("Unexpected error: %+v", evt.Payload)
	}
}

// startMatch drives a full lobby through ready and start.
func startMatch(t *testing.T, srv *GameServer) (room models.Room, alice, bob *session.Session, aliceConn, bobConn *MockConnection) {
	t.Helper()
	room, alice, bob, aliceConn, bobConn = fullLobby(t, srv)
	srv.handleEvent(alice, marshalEvent(t, network.EvtPlayerReady, readyPayload{Ready: true}))
	srv.handleEvent(bob, marshalEvent(t, network.EvtPlayerReady, readyPayload{Ready: true}))
	srv.handleEvent(alice, marshalEvent(t, network.EvtGameStart, struct{}{}))
	return room, alice, bob, aliceConn, bobConn
}

func TestGameStart_BroadcastsSession(t *testing.T) {
	srv, _ := newTestServer()
	room, _, _, aliceConn, bobConn := startMatch(t, srv)

	for _, conn := range []*MockConnection{aliceConn, bobConn} {
		evt, ok := conn.last(network.EvtGameStart)
		if !ok {
			t.Fatal("game:start should reach every member")
		}
		sess := evt.Payload.(gameStartEvent).GameSession
		if sess.RoomID != room.ID || len(sess.Players) != 2 {
			t.Errorf("Unexpected game session: %+v", sess)
		}
		for _, p := range sess.Players {
			if p.Health != 100 {
				t.Errorf("Player %s should start at full health, got %d", p.ID, p.Health)
			}
		}
	}

	got, err := srv.registry.GetRoom(room.ID)
	if err != nil || got.Status != models.StatusPlaying {
		t.Errorf("Room should be playing after start, got %v %v", got.Status, err)
	}
}

func TestMoveRelay_SkipsSender(t *testing.T) {
	srv, _ := newTestServer()
	_, alice, _, aliceConn, bobConn := startMatch(t, srv)

	srv.handleEvent(alice, marshalEvent(t, network.EvtPlayerMove, movePayload{
		Position: models.Position{X: 10, Y: 20}, Facing: "left", State: "running",
	}))

	evt, ok := bobConn.last(network.EvtPlayerMove)
	if !ok {
		t.Fatal("movement should be relayed to the other player")
	}
	payload := evt.Payload.(playerMoveEvent)
	if payload.UserID != "u1" || payload.Position.X != 10 || payload.Facing != "left" {
		t.Errorf("Unexpected move payload: %+v", payload)
	}
	if aliceConn.count(network.EvtPlayerMove) != 0 {
		t.Error("movement must not echo back to the sender")
	}
}

func TestAttackRelay_SkipsSender(t *testing.T) {
	srv, _ := newTestServer()
	_, alice, _, aliceConn, bobConn := startMatch(t, srv)

	srv.handleEvent(alice, marshalEvent(t, network.EvtPlayerAttack, attackPayload{AttackType: "melee"}))

	evt, ok := bobConn.last(network.EvtPlayerAttack)
	if !ok {
		t.Fatal("attacks should be relayed to the other player")
	}
	if evt.Payload.(playerAttackEvent).AttackType != "melee" {
		t.Errorf("Unexpected attack payload: %+v", evt.Payload)
	}
	if aliceConn.count(network.EvtPlayerAttack) != 0 {
		t.Error("attacks must not echo back to the sender")
	}
}

func TestHit_DamageAndGameOver(t *testing.T) {
	srv, store := newTestServer()
	room, _, bob, aliceConn, bobConn := startMatch(t, srv)

	srv.handleEvent(bob, marshalEvent(t, network.EvtPlayerHit, hitPayload{TargetID: "u1", Damage: 30}))

	evt, ok := aliceConn.last(network.EvtPlayerDamaged)
	if !ok {
		t.Fatal("a hit should broadcast player:damaged")
	}
	damaged := evt.Payload.(playerDamagedEvent)
	if damaged.TargetID != "u1" || damaged.Health != 70 {
		t.Errorf("Unexpected damage payload: %+v", damaged)
	}

	srv.handleEvent(bob, marshalEvent(t, network.EvtPlayerHit, hitPayload{TargetID: "u1", Damage: 80}))

	for _, conn := range []*MockConnection{aliceConn, bobConn} {
		evt, ok := conn.last(network.EvtGameOver)
		if !ok {
			t.Fatal("game:over should reach every member")
		}
		over := evt.Payload.(gameOverEvent)
		if over.Winner.ID != "u2" || over.Loser.ID != "u1" {
			t.Errorf("Unexpected outcome: %+v", over)
		}
	}

	if _, active := srv.table.Get(room.ID); active {
		t.Error("the match session must be released when the game ends")
	}
	got, _ := srv.registry.GetRoom(room.ID)
	if got.Status != models.StatusFinished {
		t.Errorf("Room should be finished, got %v", got.Status)
	}

	stats, err := store.GetPlayerStats("u2")
	if err != nil || stats.Wins != 1 {
		t.Errorf("The winner's record should be persisted, got %+v %v", stats, err)
	}
}

func TestHit_IgnoredOutsideMatch(t *testing.T) {
	srv, _ := newTestServer()
	_, alice, _, _, bobConn := fullLobby(t, srv)

	srv.handleEvent(alice, marshalEvent(t, network.EvtPlayerHit, hitPayload{TargetID: "u2", Damage: 30}))
	if bobConn.count(network.EvtPlayerDamaged) != 0 {
		t.Error("a hit outside a running match must be ignored")
	}
}

func TestCharacterSelect_Broadcast(t *testing.T) {
	srv, _ := newTestServer()
	room, alice, _, _, bobConn := fullLobby(t, srv)

	srv.handleEvent(alice, marshalEvent(t, network.EvtPlayerCharacter, characterPayload{Character: "knight"}))

	evt, ok := bobConn.last(network.EvtPlayerCharacter)
	if !ok {
		t.Fatal("character picks should be broadcast")
	}
	if evt.Payload.(playerCharacterEvent).Character != "knight" {
		t.Errorf("Unexpected character payload: %+v", evt.Payload)
	}

	got, _ := srv.registry.GetRoom(room.ID)
	if got.Players[0].Character == nil || *got.Players[0].Character != "knight" {
		t.Error("the pick should be recorded on the roster")
	}
}

func TestLeave_HostTransfer(t *testing.T) {
	srv, _ := newTestServer()
	room, alice, _, _, bobConn := fullLobby(t, srv)

	srv.handleEvent(alice, marshalEvent(t, network.EvtRoomLeave, struct{}{}))

	if _, ok := bobConn.last(network.EvtPlayerLeft); !ok {
		t.Fatal("the remaining player should be told about the departure")
	}
	evt, ok := bobConn.last(network.EvtHostChanged)
	if !ok {
		t.Fatal("a departing host should trigger host:changed")
	}
	if evt.Payload.(hostChangedEvent).NewHost.ID != "u2" {
		t.Errorf("Unexpected new host: %+v", evt.Payload)
	}

	got, _ := srv.registry.GetRoom(room.ID)
	if got.HostID != "u2" {
		t.Errorf("Host should have transferred to u2, got %s", got.HostID)
	}

	if _, _, roomID := alice.Binding(); roomID != "" {
		t.Error("leaving should clear the session's room binding")
	}
}

func TestLeave_LastPlayerDeletesRoom(t *testing.T) {
	srv, _ := newTestServer()
	alice, _ := connect(t, srv, "u1", "alice")
	room, _ := srv.registry.CreateRoom("Arena", "u1", "alice")
	joinRoom(t, srv, alice, room.ID)

	srv.handleEvent(alice, marshalEvent(t, network.EvtRoomLeave, struct{}{}))

	if _, err := srv.registry.GetRoom(room.ID); err == nil {
		t.Error("an emptied room should be gone from lookups")
	}
}

func TestDisconnect_AbandonsMatch(t *testing.T) {
	srv, _ := newTestServer()
	room, alice, bob, _, bobConn := startMatch(t, srv)

	// A dropped connection is an implicit leave.
	srv.playerLeave(alice)
	srv.sessions.Remove(alice.GetID())

	if _, ok := bobConn.last(network.EvtPlayerLeft); !ok {
		t.Fatal("the opponent should be told about the disconnect")
	}

	// Bob leaving afterwards empties the room and releases the session.
	srv.playerLeave(bob)
	if _, active := srv.table.Get(room.ID); active {
		t.Error("an abandoned match session must be discarded")
	}
}
