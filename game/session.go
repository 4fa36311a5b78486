// game/session.go
package game

import (
	"sync"
	"time"

	"github.com/wfunc/arenaserver/models"
)

// defaultSpawn 默认出生点
var defaultSpawn = models.Position{X: 0, Y: 0}

// DamageResult reports the outcome of one damage application.
type DamageResult struct {
	TargetID  string
	Damage    int
	Health    int
	MatchOver bool
	Winner    models.SessionPlayer
	Loser     models.SessionPlayer
	StartedAt time.Time
}

// Table 管理所有进行中的对局，按房间ID索引
//
// Health bookkeeping is the only state the server is authoritative for;
// movement and attacks are relayed without validation.
type Table struct {
	sessions    map[string]*models.GameSession
	startHealth int
	mutex       sync.RWMutex
}

// NewTable 创建对局表
func NewTable(startHealth int) *Table {
	return &Table{
		sessions:    make(map[string]*models.GameSession),
		startHealth: startHealth,
	}
}

// StartSession snapshots the room's players into a fresh session. Everyone
// starts at full health on the default spawn in the idle state.
func (t *Table) StartSession(room models.Room) models.GameSession {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	sess := &models.GameSession{
		RoomID:    room.ID,
		Players:   make([]models.SessionPlayer, 0, len(room.Players)),
		StartedAt: time.Now(),
	}
	for _, p := range room.Players {
		sess.Players = append(sess.Players, models.SessionPlayer{
			ID:        p.ID,
			Username:  p.Username,
			Character: p.Character,
			Health:    t.startHealth,
			Position:  defaultSpawn,
			State:     "idle",
		})
	}

	t.sessions[room.ID] = sess
	return snapshot(sess)
}

// Get 获取对局快照
func (t *Table) Get(roomID string) (models.GameSession, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	sess, exists := t.sessions[roomID]
	if !exists {
		return models.GameSession{}, false
	}
	return snapshot(sess), true
}

// ApplyDamage subtracts damage from the target's health, floored at zero.
// Over-damage is absorbed, never carried. When health hits zero the match
// is over, the winner is the other player and the session is released.
// Missing session or target is reported with ok=false and otherwise
// ignored.
func (t *Table) ApplyDamage(roomID, targetID string, damage int) (DamageResult, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	sess, exists := t.sessions[roomID]
	if !exists {
		return DamageResult{}, false
	}

	targetIdx := -1
	for i := range sess.Players {
		if sess.Players[i].ID == targetID {
			targetIdx = i
			break
		}
	}
	if targetIdx < 0 {
		return DamageResult{}, false
	}

	if damage < 0 {
		// A hit never heals.
		damage = 0
	}

	target := &sess.Players[targetIdx]
	target.Health -= damage
	if target.Health < 0 {
		target.Health = 0
	}

	result := DamageResult{
		TargetID:  targetID,
		Damage:    damage,
		Health:    target.Health,
		StartedAt: sess.StartedAt,
	}

	if target.Health == 0 {
		result.MatchOver = true
		result.Loser = *target
		// Fixed 2-player rule: the winner is whoever is not the target.
		for i := range sess.Players {
			if sess.Players[i].ID != targetID {
				result.Winner = sess.Players[i]
				break
			}
		}
		delete(t.sessions, roomID)
	}

	return result, true
}

// Discard drops the session for an abandoned room.
func (t *Table) Discard(roomID string) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if _, exists := t.sessions[roomID]; !exists {
		return false
	}
	delete(t.sessions, roomID)
	return true
}

// Count returns the number of in-progress sessions.
func (t *Table) Count() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return len(t.sessions)
}

func snapshot(sess *models.GameSession) models.GameSession {
	copied := *sess
	copied.Players = make([]models.SessionPlayer, len(sess.Players))
	copy(copied.Players, sess.Players)
	return copied
}
