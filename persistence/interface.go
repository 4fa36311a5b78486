// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/wfunc/arenaserver/models"
)

// Store 数据库接口
//
// Only account data and finished-match records are persisted. Rooms and
// live sessions are process-lifetime in-memory state and are lost on
// restart by design.
type Store interface {
	CreateUser(user *models.User, passwordHash string) error
	GetUserByUsername(username string) (*models.User, string, error)
	SaveMatchRecord(record *models.MatchRecord) error
	GetPlayerStats(userID string) (*models.PlayerStats, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
	ErrDuplicateUser  = fmt.Errorf("username or email already exists")
)
