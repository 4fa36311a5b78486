// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// GormUser 用户账号模型
type GormUser struct {
	gorm.Model
	UserID       string `gorm:"uniqueIndex;not null"`
	Username     string `gorm:"uniqueIndex;not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
}

// GormMatchRecord 对局记录模型
type GormMatchRecord struct {
	gorm.Model
	RoomID     string `gorm:"index;not null"`
	WinnerID   string `gorm:"index;not null"`
	WinnerName string `gorm:"not null"`
	LoserID    string `gorm:"index;not null"`
	LoserName  string `gorm:"not null"`
	Duration   int    `gorm:"default:0"` // 对局时长(秒)
}
