// persistence/memory.go
package persistence

import (
	"sync"

	"github.com/wfunc/arenaserver/models"
)

// Memory is an in-process Store for tests and database-less runs.
type Memory struct {
	users   map[string]memoryUser // username -> user
	records []models.MatchRecord
	mutex   sync.RWMutex
}

type memoryUser struct {
	user models.User
	hash string
}

func NewMemory() *Memory {
	return &Memory{
		users: make(map[string]memoryUser),
	}
}

func (m *Memory) CreateUser(user *models.User, passwordHash string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.users[user.Username]; exists {
		return ErrDuplicateUser
	}
	for _, existing := range m.users {
		if existing.user.Email == user.Email {
			return ErrDuplicateUser
		}
	}

	m.users[user.Username] = memoryUser{user: *user, hash: passwordHash}
	return nil
}

func (m *Memory) GetUserByUsername(username string) (*models.User, string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	entry, exists := m.users[username]
	if !exists {
		return nil, "", ErrRecordNotFound
	}
	user := entry.user
	return &user, entry.hash, nil
}

func (m *Memory) SaveMatchRecord(record *models.MatchRecord) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.records = append(m.records, *record)
	return nil
}

func (m *Memory) GetPlayerStats(userID string) (*models.PlayerStats, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	stats := &models.PlayerStats{}
	for _, record := range m.records {
		if record.WinnerID == userID {
			stats.TotalMatches++
			stats.Wins++
		} else if record.LoserID == userID {
			stats.TotalMatches++
			stats.Losses++
		}
	}
	return stats, nil
}

func (m *Memory) Close() error {
	return nil
}
