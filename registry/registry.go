// registry/registry.go
package registry

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/arenaserver/apperr"
	"github.com/wfunc/arenaserver/models"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Registry 管理所有房间
//
// The registry is the only owner of room data. Callers get snapshots;
// every mutation goes through a registry method under the write lock.
type Registry struct {
	rooms      map[string]*models.Room
	order      []string // creation order, drives ListActive
	maxPlayers int
	codeLength int
	mutex      sync.RWMutex
}

// LeaveResult describes what a Leave call did to the room.
type LeaveResult struct {
	Found       bool
	Removed     bool
	RoomDeleted bool
	HostChanged bool
	NewHost     models.Player
	Room        models.Room
}

// New 创建一个新的房间注册表
func New(maxPlayers, codeLength int) *Registry {
	return &Registry{
		rooms:      make(map[string]*models.Room),
		maxPlayers: maxPlayers,
		codeLength: codeLength,
	}
}

// CreateRoom creates a room with the creator as sole player and host.
// The join code is short and human-typeable; collisions are tolerated.
func (r *Registry) CreateRoom(name, hostID, hostName string) (models.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Room{}, apperr.Validationf("room name is required")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	room := &models.Room{
		ID:     uuid.New().String(),
		Name:   name,
		Code:   r.generateCode(),
		Host:   hostName,
		HostID: hostID,
		Players: []models.Player{
			{ID: hostID, Username: hostName},
		},
		MaxPlayers: r.maxPlayers,
		Status:     models.StatusWaiting,
		CreatedAt:  time.Now(),
	}

	r.rooms[room.ID] = room
	r.order = append(r.order, room.ID)
	return snapshot(room), nil
}

// ListActive returns non-deleted rooms in creation order, projected to
// summaries.
func (r *Registry) ListActive() []models.RoomSummary {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	summaries := make([]models.RoomSummary, 0, len(r.order))
	for _, id := range r.order {
		room, exists := r.rooms[id]
		if !exists || room.Deleted {
			continue
		}
		summaries = append(summaries, models.RoomSummary{
			ID:         room.ID,
			Name:       room.Name,
			Code:       room.Code,
			Host:       room.Host,
			Players:    len(room.Players),
			MaxPlayers: room.MaxPlayers,
			Status:     room.Status,
			CreatedAt:  room.CreatedAt,
		})
	}
	return summaries
}

// GetRoom 获取单个房间快照
func (r *Registry) GetRoom(id string) (models.Room, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	room, exists := r.rooms[id]
	if !exists || room.Deleted {
		return models.Room{}, apperr.NotFoundf("room not found")
	}
	return snapshot(room), nil
}

// Join adds the user to the room. Joining a room you are already in is a
// no-op that returns the current room, so duplicate join requests are
// harmless.
func (r *Registry) Join(id, userID, username string) (models.Room, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	room, exists := r.rooms[id]
	if !exists || room.Deleted {
		return models.Room{}, apperr.NotFoundf("room not found")
	}

	if room.HasPlayer(userID) {
		return snapshot(room), nil
	}

	if len(room.Players) >= room.MaxPlayers {
		return models.Room{}, apperr.Conflictf("room is full")
	}

	room.Players = append(room.Players, models.Player{ID: userID, Username: username})
	return snapshot(room), nil
}

// Leave removes the player. An empty room is soft-deleted; a departing
// host hands the room to the remaining player at index 0. Missing room or
// non-member calls are tolerated as no-ops.
func (r *Registry) Leave(id, userID string) LeaveResult {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	room, exists := r.rooms[id]
	if !exists || room.Deleted {
		return LeaveResult{}
	}

	result := LeaveResult{Found: true}

	remaining := room.Players[:0]
	for _, p := range room.Players {
		if p.ID == userID {
			result.Removed = true
			continue
		}
		remaining = append(remaining, p)
	}
	room.Players = remaining

	if !result.Removed {
		result.Room = snapshot(room)
		return result
	}

	if len(room.Players) == 0 {
		room.Deleted = true
		result.RoomDeleted = true
	} else if room.HostID == userID {
		room.Host = room.Players[0].Username
		room.HostID = room.Players[0].ID
		result.HostChanged = true
		result.NewHost = room.Players[0]
	}

	result.Room = snapshot(room)
	return result
}

// SetReady flips the player's ready flag. Tolerant of stale ids: returns
// found=false instead of an error.
func (r *Registry) SetReady(id, userID string, ready bool) (models.Room, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	room, exists := r.rooms[id]
	if !exists || room.Deleted {
		return models.Room{}, false
	}

	for i := range room.Players {
		if room.Players[i].ID == userID {
			room.Players[i].Ready = ready
			return snapshot(room), true
		}
	}
	return models.Room{}, false
}

// SelectCharacter records the player's character choice.
func (r *Registry) SelectCharacter(id, userID, character string) (models.Room, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	room, exists := r.rooms[id]
	if !exists || room.Deleted {
		return models.Room{}, false
	}

	for i := range room.Players {
		if room.Players[i].ID == userID {
			room.Players[i].Character = &character
			return snapshot(room), true
		}
	}
	return models.Room{}, false
}

// SetStatus 设置房间状态
func (r *Registry) SetStatus(id string, status models.RoomStatus) (models.Room, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	room, exists := r.rooms[id]
	if !exists || room.Deleted {
		return models.Room{}, false
	}
	room.Status = status
	return snapshot(room), true
}

// CountActive returns the number of non-deleted rooms.
func (r *Registry) CountActive() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	count := 0
	for _, room := range r.rooms {
		if !room.Deleted {
			count++
		}
	}
	return count
}

// Purge drops soft-deleted rooms from the table and returns their ids so
// the caller can release any lingering match state.
func (r *Registry) Purge() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var purged []string
	order := r.order[:0]
	for _, id := range r.order {
		room, exists := r.rooms[id]
		if !exists {
			continue
		}
		if room.Deleted {
			delete(r.rooms, id)
			purged = append(purged, id)
			continue
		}
		order = append(order, id)
	}
	r.order = order
	return purged
}

func (r *Registry) generateCode() string {
	code := make([]byte, r.codeLength)
	for i := range code {
		code[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(code)
}

// snapshot deep-copies a room so callers never share the registry's slice.
func snapshot(room *models.Room) models.Room {
	copied := *room
	copied.Players = make([]models.Player, len(room.Players))
	copy(copied.Players, room.Players)
	return copied
}
