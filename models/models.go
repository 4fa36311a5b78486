// models/models.go
package models

import (
	"time"
)

// RoomStatus 房间状态
type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusReady    RoomStatus = "ready"
	StatusPlaying  RoomStatus = "playing"
	StatusFinished RoomStatus = "finished"
)

// User 用户数据模型
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Player is a room member. Character stays nil until the player picks one;
// Ready is only ever cleared by an explicit toggle, never automatically.
type Player struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	Character *string `json:"character"`
	Ready     bool    `json:"ready"`
}

// Room 房间数据模型
//
// Players keeps join order; host transfer always promotes the player at
// index 0 of what remains.
type Room struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Code       string     `json:"code"`
	Host       string     `json:"host"`
	HostID     string     `json:"hostId"`
	Players    []Player   `json:"players"`
	MaxPlayers int        `json:"maxPlayers"`
	Status     RoomStatus `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	Deleted    bool       `json:"-"`
}

// HasPlayer reports whether the user is a member of the room.
func (r *Room) HasPlayer(userID string) bool {
	for i := range r.Players {
		if r.Players[i].ID == userID {
			return true
		}
	}
	return false
}

// RoomSummary 房间列表投影（不含玩家详情）
type RoomSummary struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Code       string     `json:"code"`
	Host       string     `json:"host"`
	Players    int        `json:"players"`
	MaxPlayers int        `json:"maxPlayers"`
	Status     RoomStatus `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Position 玩家坐标
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SessionPlayer 对局中的玩家快照
type SessionPlayer struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Character *string  `json:"character"`
	Health    int      `json:"health"`
	Position  Position `json:"position"`
	State     string   `json:"state"`
}

// GameSession 对局状态，按房间ID索引
type GameSession struct {
	RoomID    string          `json:"roomId"`
	Players   []SessionPlayer `json:"players"`
	StartedAt time.Time       `json:"startedAt"`
}

// MatchRecord 对局结果记录
type MatchRecord struct {
	RoomID     string    `json:"roomId"`
	WinnerID   string    `json:"winnerId"`
	WinnerName string    `json:"winnerName"`
	LoserID    string    `json:"loserId"`
	LoserName  string    `json:"loserName"`
	Duration   int       `json:"duration"` // 对局时长(秒)
	CreatedAt  time.Time `json:"createdAt"`
}

// PlayerStats 玩家统计信息
type PlayerStats struct {
	TotalMatches int `json:"total_matches"`
	Wins         int `json:"wins"`
	Losses       int `json:"losses"`
}
