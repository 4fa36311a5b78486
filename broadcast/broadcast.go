// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/arenaserver/registry"
	"github.com/wfunc/arenaserver/session"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrUserOffline  = errors.New("user has no live session")
)

// 广播接口
type Broadcaster interface {
	BroadcastToRoom(roomID, event string, payload interface{}) error
	BroadcastToRoomExcept(roomID, exceptUserID, event string, payload interface{}) error
	SendToUser(userID, event string, payload interface{}) error
}

// RoomBroadcaster fans events out to the live sessions of a room's
// members. Room membership comes from the registry, connections from the
// session manager.
type RoomBroadcaster struct {
	registry *registry.Registry
	sessions *session.Manager
}

func NewRoomBroadcaster(reg *registry.Registry, sessions *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		registry: reg,
		sessions: sessions,
	}
}

// BroadcastToRoom 广播给房间内所有玩家
func (b *RoomBroadcaster) BroadcastToRoom(roomID, event string, payload interface{}) error {
	return b.broadcast(roomID, "", event, payload)
}

// BroadcastToRoomExcept 广播给除指定用户外的房间玩家
func (b *RoomBroadcaster) BroadcastToRoomExcept(roomID, exceptUserID, event string, payload interface{}) error {
	return b.broadcast(roomID, exceptUserID, event, payload)
}

func (b *RoomBroadcaster) broadcast(roomID, exceptUserID, event string, payload interface{}) error {
	room, err := b.registry.GetRoom(roomID)
	if err != nil {
		return ErrRoomNotFound
	}

	for _, player := range room.Players {
		if player.ID == exceptUserID {
			continue
		}
		sess, exists := b.sessions.GetByUserID(player.ID)
		if !exists {
			continue
		}
		if err := sess.Send(event, payload); err != nil {
			// A dead connection is cleaned up by its own read loop.
			continue
		}
	}
	return nil
}

// SendToUser 发送给单个在线用户
func (b *RoomBroadcaster) SendToUser(userID, event string, payload interface{}) error {
	sess, exists := b.sessions.GetByUserID(userID)
	if !exists {
		return ErrUserOffline
	}
	return sess.Send(event, payload)
}
