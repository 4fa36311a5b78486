// coordinator/coordinator.go
package coordinator

import (
	"sync"

	"github.com/wfunc/arenaserver/apperr"
	"github.com/wfunc/arenaserver/game"
	"github.com/wfunc/arenaserver/logger"
	"github.com/wfunc/arenaserver/models"
	"github.com/wfunc/arenaserver/registry"
)

// transitions 房间状态转换表
//
// waiting -> ready    all players flagged ready and the room is full
// ready   -> waiting  any ready flag toggled back off
// ready   -> playing  host-initiated start
// playing -> finished a player's health reached zero
//
// Soft deletion on empty membership is handled by the registry and
// overrides this table from any state.
var transitions = map[models.RoomStatus][]models.RoomStatus{
	models.StatusWaiting: {models.StatusReady},
	models.StatusReady:   {models.StatusWaiting, models.StatusPlaying},
	models.StatusPlaying: {models.StatusFinished},
}

// Coordinator drives a room through its lifecycle. Mutating operations are
// serialized under one mutex so read-check-act sequences across the
// registry and the session table cannot interleave per room.
type Coordinator struct {
	registry *registry.Registry
	table    *game.Table
	mutex    sync.Mutex
}

// ReadyResult is the outcome of a ready toggle.
type ReadyResult struct {
	Found    bool
	Room     models.Room
	AllReady bool
}

// DamageOutcome is the outcome of a damage event.
type DamageOutcome struct {
	Applied bool
	Result  game.DamageResult
	Room    models.Room
}

// New 创建生命周期协调器
func New(reg *registry.Registry, table *game.Table) *Coordinator {
	return &Coordinator{registry: reg, table: table}
}

// SetReady flips the player's ready flag and recomputes the derived
// waiting/ready status. The all-ready bit is always recomputed from the
// room, never cached. Stale room or player ids are absorbed as no-ops.
func (c *Coordinator) SetReady(roomID, userID string, ready bool) ReadyResult {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	room, found := c.registry.SetReady(roomID, userID, ready)
	if !found {
		return ReadyResult{}
	}

	result := ReadyResult{Found: true, Room: room, AllReady: allReady(room)}

	switch {
	case result.AllReady && room.Status == models.StatusWaiting:
		result.Room = c.advance(room, models.StatusReady)
	case !result.AllReady && room.Status == models.StatusReady:
		result.Room = c.advance(room, models.StatusWaiting)
	}
	return result
}

// SelectCharacter records the player's character pick.
func (c *Coordinator) SelectCharacter(roomID, userID, character string) (models.Room, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.registry.SelectCharacter(roomID, userID, character)
}

// StartGame validates the ready gate and allocates the match session. Only
// the host may start; everyone must be ready and the room full.
func (c *Coordinator) StartGame(roomID, userID string) (models.GameSession, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	room, err := c.registry.GetRoom(roomID)
	if err != nil {
		return models.GameSession{}, err
	}

	if room.HostID != userID {
		return models.GameSession{}, apperr.Forbiddenf("only host can start the game")
	}
	if room.Status == models.StatusPlaying {
		return models.GameSession{}, apperr.PreconditionFailedf("game already started")
	}
	if !allReady(room) {
		return models.GameSession{}, apperr.PreconditionFailedf("not all players are ready")
	}
	// Ready flags survive a finished match, so the gate alone does not
	// stop a repeat start. Validate the transition before allocating the
	// session; otherwise a finished room would end up with a live session
	// it can never release.
	if !canTransition(room.Status, models.StatusPlaying) {
		return models.GameSession{}, apperr.PreconditionFailedf("room is not ready to start")
	}

	sess := c.table.StartSession(room)
	c.advance(room, models.StatusPlaying)
	return sess, nil
}

// ApplyDamage forwards a client-reported hit to the match engine and, on a
// finishing blow, advances the room to finished and releases the session.
// Damage amounts are trusted as reported; the server validates only health
// bookkeeping and match outcome.
func (c *Coordinator) ApplyDamage(roomID, targetID string, damage int) DamageOutcome {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	result, ok := c.table.ApplyDamage(roomID, targetID, damage)
	if !ok {
		return DamageOutcome{}
	}

	outcome := DamageOutcome{Applied: true, Result: result}
	if result.MatchOver {
		if room, err := c.registry.GetRoom(roomID); err == nil {
			outcome.Room = c.advance(room, models.StatusFinished)
		}
	}
	return outcome
}

// Leave removes the player from the room, handling host transfer and, when
// the room empties, soft deletion plus discarding any in-flight session —
// including mid-match abandonment.
func (c *Coordinator) Leave(roomID, userID string) registry.LeaveResult {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	result := c.registry.Leave(roomID, userID)
	if result.RoomDeleted {
		c.table.Discard(roomID)
	}
	return result
}

// advance moves the room to the requested status if the transition table
// allows it. A disallowed transition is an internal invariant violation:
// it is logged and the room is left untouched, never crashed on.
func (c *Coordinator) advance(room models.Room, to models.RoomStatus) models.Room {
	if !canTransition(room.Status, to) {
		if logger.Log != nil {
			logger.Log.Errorw("illegal room status transition",
				"room", room.ID, "from", room.Status, "to", to)
		}
		return room
	}
	updated, found := c.registry.SetStatus(room.ID, to)
	if !found {
		return room
	}
	return updated
}

func canTransition(from, to models.RoomStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// allReady is the derived ready gate: every player flagged ready and the
// room at capacity. Recomputed from room data on every call.
func allReady(room models.Room) bool {
	if len(room.Players) != room.MaxPlayers {
		return false
	}
	for _, p := range room.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}
