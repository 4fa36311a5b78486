// server/api.go
package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wfunc/arenaserver/apperr"
	"github.com/wfunc/arenaserver/logger"
	"github.com/wfunc/arenaserver/models"
	"github.com/wfunc/arenaserver/network"
)

// envelope 统一的REST响应格式
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, data interface{}, message string) {
	writeJSON(w, status, envelope{Success: true, Data: data, Message: message})
}

// writeError translates a tagged error into its status code. Internal
// errors are logged and masked.
func writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Log.Errorf("Internal error on REST surface: %v", err)
		message = "internal server error"
	}
	writeJSON(w, status, envelope{Success: false, Error: message})
}

type authHandler func(w http.ResponseWriter, r *http.Request, user *models.User)

// requireAuth resolves the bearer token before the handler runs.
func (s *GameServer) requireAuth(next authHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, apperr.Unauthorizedf("missing bearer token"))
			return
		}
		user, err := s.users.Authenticate(token)
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r, user)
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

type credentialsRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func (s *GameServer) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validationf("invalid request body"))
		return
	}

	user, token, err := s.users.Signup(req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, authResponse{User: user, Token: token})
}

func (s *GameServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validationf("invalid request body"))
		return
	}

	user, token, err := s.users.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, authResponse{User: user, Token: token})
}

func (s *GameServer) handleMe(w http.ResponseWriter, r *http.Request, user *models.User) {
	writeSuccess(w, http.StatusOK, user)
}

func (s *GameServer) handleLogout(w http.ResponseWriter, r *http.Request, user *models.User) {
	s.users.Logout(bearerToken(r))
	writeMessage(w, http.StatusOK, nil, "Logged out")
}

func (s *GameServer) handleListRooms(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, s.registry.ListActive())
}

type createRoomRequest struct {
	Name string `json:"name"`
}

func (s *GameServer) handleCreateRoom(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validationf("invalid request body"))
		return
	}

	room, err := s.registry.CreateRoom(req.Name, user.ID, user.Username)
	if err != nil {
		writeError(w, err)
		return
	}

	logger.Log.Infof("Room %s (%s) created by %s", room.ID, room.Name, user.Username)
	s.refreshGauges()
	writeSuccess(w, http.StatusCreated, room)
}

func (s *GameServer) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.registry.GetRoom(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, room)
}

func (s *GameServer) handleJoinRoom(w http.ResponseWriter, r *http.Request, user *models.User) {
	roomID := mux.Vars(r)["id"]

	if room, err := s.registry.GetRoom(roomID); err == nil && room.HasPlayer(user.ID) {
		writeMessage(w, http.StatusOK, room, "Already in room")
		return
	}

	room, err := s.registry.Join(roomID, user.ID, user.Username)
	if err != nil {
		writeError(w, err)
		return
	}

	// The joiner may already have a live connection in the room group.
	s.broadcaster.BroadcastToRoomExcept(room.ID, user.ID, network.EvtPlayerJoined, playerJoinedEvent{
		UserID:   user.ID,
		Username: user.Username,
		Players:  room.Players,
	})
	writeSuccess(w, http.StatusOK, room)
}

func (s *GameServer) handleLeaveRoom(w http.ResponseWriter, r *http.Request, user *models.User) {
	roomID := mux.Vars(r)["id"]

	if _, err := s.registry.GetRoom(roomID); err != nil {
		writeError(w, err)
		return
	}

	// Clear the realtime binding too, so a later disconnect doesn't
	// replay the leave.
	if sess, online := s.sessions.GetByUserID(user.ID); online {
		_, _, bound := sess.Binding()
		if bound == roomID {
			sess.ExitRoom()
		}
	}

	s.leaveAndNotify(roomID, user.ID, user.Username)
	writeMessage(w, http.StatusOK, nil, "Left room")
}
