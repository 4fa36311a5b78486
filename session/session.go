// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/arenaserver/network"
)

// Session is one live connection and its binding: at most one user and at
// most one room at a time. The pair is the authority for who an event is
// from and where it relays to.
type Session struct {
	ID         string
	Conn       network.Connection
	UserID     string
	Username   string
	RoomID     string
	CreatedAt  time.Time
	LastActive time.Time
	mutex      sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
	}
}

// Identify binds the connection to a verified user.
func (s *Session) Identify(userID, username string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.UserID = userID
	s.Username = username
}

// EnterRoom 绑定房间
func (s *Session) EnterRoom(roomID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.RoomID = roomID
}

// ExitRoom 清除房间绑定
func (s *Session) ExitRoom() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.RoomID = ""
}

// Binding returns the (userID, roomID) pair atomically.
func (s *Session) Binding() (userID, username, roomID string) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.UserID, s.Username, s.RoomID
}

// Send is called from other connections' goroutines during room
// broadcasts, so the activity timestamp is written under the lock.
func (s *Session) Send(event string, payload interface{}) error {
	s.mutex.Lock()
	s.LastActive = time.Now()
	s.mutex.Unlock()
	return s.Conn.Send(event, payload)
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Manager 连接会话管理器，兼作用户在线目录
//
// byUser maps a user id to its live session; identify upserts, disconnect
// deletes. No business logic lives here.
type Manager struct {
	sessions map[string]*Session
	byUser   map[string]string // userID -> sessionID
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		byUser:   make(map[string]string),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

// Bind registers the session under the user id, replacing any previous
// connection for the same user.
func (m *Manager) Bind(session *Session, userID, username string) {
	session.Identify(userID, username)

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.byUser[userID] = session.ID
}

// Remove drops the session and its user binding in one step.
func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return
	}
	if session.UserID != "" && m.byUser[session.UserID] == sessionID {
		delete(m.byUser, session.UserID)
	}
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

// GetByUserID 按用户ID查找在线会话
func (m *Manager) GetByUserID(userID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	sessionID, exists := m.byUser[userID]
	if !exists {
		return nil, false
	}
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}
