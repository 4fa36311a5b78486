// services/user_service.go
package services

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/wfunc/arenaserver/apperr"
	"github.com/wfunc/arenaserver/models"
	"github.com/wfunc/arenaserver/persistence"
)

// UserService is the auth collaborator: it verifies credentials and hands
// the core a trusted (userId, displayName) pair. The core itself never
// touches passwords or tokens.
type UserService struct {
	store  persistence.Store
	tokens map[string]models.User // bearer token -> user
	mutex  sync.RWMutex
}

func NewUserService(store persistence.Store) *UserService {
	return &UserService{
		store:  store,
		tokens: make(map[string]models.User),
	}
}

// Signup 注册新用户，返回用户与访问令牌
func (s *UserService) Signup(username, email, password string) (*models.User, string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, "", apperr.Validationf("all fields are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	user := &models.User{
		ID:        "user_" + uuid.New().String(),
		Username:  username,
		Email:     email,
		CreatedAt: time.Now(),
	}

	if err := s.store.CreateUser(user, string(hash)); err != nil {
		if err == persistence.ErrDuplicateUser {
			return nil, "", apperr.Conflictf("username or email already exists")
		}
		return nil, "", err
	}

	return user, s.issueToken(*user), nil
}

// Login 校验用户名密码，返回用户与访问令牌
func (s *UserService) Login(username, password string) (*models.User, string, error) {
	if username == "" || password == "" {
		return nil, "", apperr.Validationf("username and password are required")
	}

	user, hash, err := s.store.GetUserByUsername(username)
	if err != nil {
		if err == persistence.ErrRecordNotFound {
			return nil, "", apperr.Unauthorizedf("invalid credentials")
		}
		return nil, "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, "", apperr.Unauthorizedf("invalid credentials")
	}

	return user, s.issueToken(*user), nil
}

// Authenticate resolves a bearer token to the user it was issued for.
func (s *UserService) Authenticate(token string) (*models.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	user, exists := s.tokens[token]
	if !exists {
		return nil, apperr.Unauthorizedf("invalid or expired token")
	}
	return &user, nil
}

// Logout revokes the token.
func (s *UserService) Logout(token string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.tokens, token)
}

// Stats 查询玩家战绩
func (s *UserService) Stats(userID string) (*models.PlayerStats, error) {
	return s.store.GetPlayerStats(userID)
}

// Opaque tokens held in memory; a restart invalidates every token, which
// matches the no-persistence rule for live state.
func (s *UserService) issueToken(user models.User) string {
	token := uuid.New().String()
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.tokens[token] = user
	return token
}
