// server/relay.go
package server

import (
	"encoding/json"
	"time"

	"github.com/wfunc/arenaserver/logger"
	"github.com/wfunc/arenaserver/models"
	"github.com/wfunc/arenaserver/network"
	"github.com/wfunc/arenaserver/session"
)

// Inbound payloads. Field names mirror the client contract.

type identifyPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type roomPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type readyPayload struct {
	RoomID string `json:"roomId"`
	Ready  bool   `json:"ready"`
}

type characterPayload struct {
	RoomID    string `json:"roomId"`
	Character string `json:"character"`
}

type movePayload struct {
	RoomID   string          `json:"roomId"`
	Position models.Position `json:"position"`
	Facing   string          `json:"facing"`
	State    string          `json:"state"`
}

type attackPayload struct {
	RoomID     string          `json:"roomId"`
	AttackType string          `json:"attackType"`
	Position   models.Position `json:"position"`
}

type hitPayload struct {
	RoomID   string `json:"roomId"`
	TargetID string `json:"targetId"`
	Damage   int    `json:"damage"`
}

// Outbound payloads.

type authenticatedEvent struct {
	Success bool `json:"success"`
}

type roomStateEvent struct {
	Room models.Room `json:"room"`
}

type playerJoinedEvent struct {
	UserID   string          `json:"userId"`
	Username string          `json:"username"`
	Players  []models.Player `json:"players"`
}

type playerLeftEvent struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type hostChangedEvent struct {
	NewHost models.Player `json:"newHost"`
}

type playerReadyEvent struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Ready    bool   `json:"ready"`
}

type roomReadyEvent struct {
	Room models.Room `json:"room"`
}

type playerCharacterEvent struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Character string `json:"character"`
}

type gameStartEvent struct {
	GameSession models.GameSession `json:"gameSession"`
}

type playerMoveEvent struct {
	UserID   string          `json:"userId"`
	Position models.Position `json:"position"`
	Facing   string          `json:"facing"`
	State    string          `json:"state"`
}

type playerAttackEvent struct {
	UserID     string          `json:"userId"`
	AttackType string          `json:"attackType"`
	Position   models.Position `json:"position"`
	Timestamp  int64           `json:"timestamp"`
}

type playerDamagedEvent struct {
	TargetID string `json:"targetId"`
	Damage   int    `json:"damage"`
	Health   int    `json:"health"`
}

type playerRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type gameOverEvent struct {
	Winner playerRef `json:"winner"`
	Loser  playerRef `json:"loser"`
}

type errorEvent struct {
	Message string `json:"message"`
}

// handleEvent dispatches one inbound event. Unknown event names are logged
// and dropped; a malformed payload gets an error event back, never a
// disconnect.
func (s *GameServer) handleEvent(sess *session.Session, evt *network.Event) {
	start := time.Now()
	s.monitor.IncEventsReceived()
	defer func() {
		s.monitor.ObserveEventLatency(time.Since(start))
	}()

	switch evt.Name {
	case network.EvtIdentify:
		s.handleIdentify(sess, evt.Data)
	case network.EvtRoomJoin:
		s.handleRoomJoin(sess, evt.Data)
	case network.EvtRoomLeave:
		s.playerLeave(sess)
	case network.EvtPlayerReady:
		s.handlePlayerReady(sess, evt.Data)
	case network.EvtPlayerCharacter:
		s.handlePlayerCharacter(sess, evt.Data)
	case network.EvtGameStart:
		s.handleGameStart(sess)
	case network.EvtPlayerMove:
		s.handlePlayerMove(sess, evt.Data)
	case network.EvtPlayerAttack:
		s.handlePlayerAttack(sess, evt.Data)
	case network.EvtPlayerHit:
		s.handlePlayerHit(sess, evt.Data)
	default:
		logger.Log.Warnf("Unknown event %q from session %s", evt.Name, sess.GetID())
	}
}

func (s *GameServer) handleIdentify(sess *session.Session, data json.RawMessage) {
	var payload identifyPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.UserID == "" {
		sess.Send(network.EvtError, errorEvent{Message: "invalid identify payload"})
		return
	}

	s.sessions.Bind(sess, payload.UserID, payload.Username)
	logger.Log.Infof("Session %s identified as %s (%s)", sess.GetID(), payload.Username, payload.UserID)
	sess.Send(network.EvtAuthenticated, authenticatedEvent{Success: true})
}

// handleRoomJoin subscribes the connection to the room's event group. The
// membership itself is ensured idempotently, so a client that already
// joined over HTTP lands in the same place as one that didn't.
func (s *GameServer) handleRoomJoin(sess *session.Session, data json.RawMessage) {
	var payload roomPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.RoomID == "" {
		sess.Send(network.EvtError, errorEvent{Message: "invalid join payload"})
		return
	}

	userID, username, _ := sess.Binding()
	if userID == "" && payload.UserID != "" {
		// The join may carry the identity inline instead of a prior
		// identify event.
		s.sessions.Bind(sess, payload.UserID, payload.Username)
		userID, username = payload.UserID, payload.Username
	}
	if userID == "" {
		sess.Send(network.EvtError, errorEvent{Message: "identify first"})
		return
	}

	room, err := s.registry.Join(payload.RoomID, userID, username)
	if err != nil {
		sess.Send(network.EvtError, errorEvent{Message: err.Error()})
		return
	}

	sess.EnterRoom(room.ID)

	s.broadcaster.BroadcastToRoomExcept(room.ID, userID, network.EvtPlayerJoined, playerJoinedEvent{
		UserID:   userID,
		Username: username,
		Players:  room.Players,
	})
	sess.Send(network.EvtRoomState, roomStateEvent{Room: room})
	s.refreshGauges()
}

// playerLeave handles both an explicit room:leave and a disconnect. The
// leaver is already off the roster when the notifications go out, so the
// broadcast reaches exactly the players who stay behind.
func (s *GameServer) playerLeave(sess *session.Session) {
	userID, username, roomID := sess.Binding()
	if roomID == "" {
		return
	}

	sess.ExitRoom()
	s.leaveAndNotify(roomID, userID, username)
}

func (s *GameServer) leaveAndNotify(roomID, userID, username string) {
	result := s.coordinator.Leave(roomID, userID)
	if !result.Found || !result.Removed {
		return
	}

	if result.RoomDeleted {
		logger.Log.Infof("Room %s emptied and soft-deleted", roomID)
	} else {
		s.broadcaster.BroadcastToRoom(roomID, network.EvtPlayerLeft, playerLeftEvent{
			UserID:   userID,
			Username: username,
		})
		if result.HostChanged {
			s.broadcaster.BroadcastToRoom(roomID, network.EvtHostChanged, hostChangedEvent{
				NewHost: result.NewHost,
			})
		}
	}
	s.refreshGauges()
}

func (s *GameServer) handlePlayerReady(sess *session.Session, data json.RawMessage) {
	userID, username, roomID := sess.Binding()
	if roomID == "" {
		return
	}

	var payload readyPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		sess.Send(network.EvtError, errorEvent{Message: "invalid ready payload"})
		return
	}

	result := s.coordinator.SetReady(roomID, userID, payload.Ready)
	if !result.Found {
		return
	}

	s.broadcaster.BroadcastToRoom(roomID, network.EvtPlayerReady, playerReadyEvent{
		UserID:   userID,
		Username: username,
		Ready:    payload.Ready,
	})
	if result.AllReady {
		s.broadcaster.BroadcastToRoom(roomID, network.EvtRoomReady, roomReadyEvent{Room: result.Room})
	}
}

func (s *GameServer) handlePlayerCharacter(sess *session.Session, data json.RawMessage) {
	userID, username, roomID := sess.Binding()
	if roomID == "" {
		return
	}

	var payload characterPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Character == "" {
		sess.Send(network.EvtError, errorEvent{Message: "invalid character payload"})
		return
	}

	if _, found := s.coordinator.SelectCharacter(roomID, userID, payload.Character); !found {
		return
	}

	s.broadcaster.BroadcastToRoom(roomID, network.EvtPlayerCharacter, playerCharacterEvent{
		UserID:    userID,
		Username:  username,
		Character: payload.Character,
	})
}

func (s *GameServer) handleGameStart(sess *session.Session) {
	userID, _, roomID := sess.Binding()
	if roomID == "" {
		return
	}

	gameSess, err := s.coordinator.StartGame(roomID, userID)
	if err != nil {
		sess.Send(network.EvtError, errorEvent{Message: err.Error()})
		return
	}

	logger.Log.Infof("Game started in room %s", roomID)
	s.broadcaster.BroadcastToRoom(roomID, network.EvtGameStart, gameStartEvent{GameSession: gameSess})
	s.refreshGauges()
}

// Movement is advisory: relayed to the other players without validation
// and without touching server state.
func (s *GameServer) handlePlayerMove(sess *session.Session, data json.RawMessage) {
	userID, _, roomID := sess.Binding()
	if roomID == "" {
		return
	}

	var payload movePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}

	s.broadcaster.BroadcastToRoomExcept(roomID, userID, network.EvtPlayerMove, playerMoveEvent{
		UserID:   userID,
		Position: payload.Position,
		Facing:   payload.Facing,
		State:    payload.State,
	})
}

func (s *GameServer) handlePlayerAttack(sess *session.Session, data json.RawMessage) {
	userID, _, roomID := sess.Binding()
	if roomID == "" {
		return
	}

	var payload attackPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}

	s.broadcaster.BroadcastToRoomExcept(roomID, userID, network.EvtPlayerAttack, playerAttackEvent{
		UserID:     userID,
		AttackType: payload.AttackType,
		Position:   payload.Position,
		Timestamp:  time.Now().UnixMilli(),
	})
}

// handlePlayerHit applies client-reported damage. Amounts are trusted as
// reported; only health bookkeeping and the match outcome are validated.
func (s *GameServer) handlePlayerHit(sess *session.Session, data json.RawMessage) {
	_, _, roomID := sess.Binding()
	if roomID == "" {
		return
	}

	var payload hitPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.TargetID == "" {
		return
	}

	outcome := s.coordinator.ApplyDamage(roomID, payload.TargetID, payload.Damage)
	if !outcome.Applied {
		return
	}

	s.broadcaster.BroadcastToRoom(roomID, network.EvtPlayerDamaged, playerDamagedEvent{
		TargetID: outcome.Result.TargetID,
		Damage:   outcome.Result.Damage,
		Health:   outcome.Result.Health,
	})

	if outcome.Result.MatchOver {
		winner := outcome.Result.Winner
		loser := outcome.Result.Loser
		logger.Log.Infof("Match over in room %s, winner %s", roomID, winner.Username)

		s.broadcaster.BroadcastToRoom(roomID, network.EvtGameOver, gameOverEvent{
			Winner: playerRef{ID: winner.ID, Username: winner.Username},
			Loser:  playerRef{ID: loser.ID, Username: loser.Username},
		})
		s.saveMatchRecord(roomID, outcome.Result.StartedAt, winner, loser)
		s.refreshGauges()
	}
}

func (s *GameServer) saveMatchRecord(roomID string, startedAt time.Time, winner, loser models.SessionPlayer) {
	record := &models.MatchRecord{
		RoomID:     roomID,
		WinnerID:   winner.ID,
		WinnerName: winner.Username,
		LoserID:    loser.ID,
		LoserName:  loser.Username,
		Duration:   int(time.Since(startedAt).Seconds()),
		CreatedAt:  time.Now(),
	}
	if err := s.store.SaveMatchRecord(record); err != nil {
		logger.Log.Errorf("Failed to save match record for room %s: %v", roomID, err)
	}
}
