package server

import (
	"net/http"
	netrpc "net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wfunc/arenaserver/broadcast"
	"github.com/wfunc/arenaserver/config"
	"github.com/wfunc/arenaserver/coordinator"
	"github.com/wfunc/arenaserver/game"
	"github.com/wfunc/arenaserver/logger"
	"github.com/wfunc/arenaserver/monitor"
	"github.com/wfunc/arenaserver/network"
	"github.com/wfunc/arenaserver/persistence"
	"github.com/wfunc/arenaserver/registry"
	arenarpc "github.com/wfunc/arenaserver/rpc"
	"github.com/wfunc/arenaserver/services"
	"github.com/wfunc/arenaserver/session"
	"github.com/wfunc/arenaserver/timer"
)

// purgeInterval controls how often soft-deleted rooms are swept out.
const purgeInterval = time.Minute

type GameServer struct {
	httpAddr string
	rpcAddr  string

	upgrader websocket.Upgrader

	registry    *registry.Registry
	table       *game.Table
	coordinator *coordinator.Coordinator
	sessions    *session.Manager
	users       *services.UserService
	broadcaster broadcast.Broadcaster
	store       persistence.Store
	monitor     *monitor.Monitor

	rpcServer    *arenarpc.Server
	timers       *timer.Manager
	shutdownChan chan struct{}
}

func NewGameServer(cfg *config.Config, store persistence.Store, mon *monitor.Monitor) *GameServer {
	reg := registry.New(cfg.Game.MaxPlayers, cfg.Game.RoomCodeLength)
	table := game.NewTable(cfg.Game.StartHealth)
	sessions := session.NewManager()

	s := &GameServer{
		httpAddr:     cfg.Server.HTTPAddress,
		rpcAddr:      cfg.Server.RPCAddress,
		registry:     reg,
		table:        table,
		coordinator:  coordinator.New(reg, table),
		sessions:     sessions,
		users:        services.NewUserService(store),
		broadcaster:  broadcast.NewRoomBroadcaster(reg, sessions),
		store:        store,
		monitor:      mon,
		shutdownChan: make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	return s
}

func (s *GameServer) Start() error {
	rpcServer, err := arenarpc.NewServer(s.rpcAddr)
	if err != nil {
		return err
	}
	s.rpcServer = rpcServer
	netrpc.Register(arenarpc.NewAdminService(s.registry, s.sessions, s.table, s.users))
	go s.rpcServer.Start()

	s.timers = timer.NewManager()
	s.timers.AddTimer(purgeInterval, purgeInterval, s.purgeRooms)

	logger.Log.Infof("Game server listening on %s", s.httpAddr)
	return http.ListenAndServe(s.httpAddr, s.Router())
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	if s.rpcServer != nil {
		s.rpcServer.Stop()
	}
	if s.timers != nil {
		s.timers.Stop()
	}
}

// Router wires the websocket endpoint and the REST surface.
func (s *GameServer) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebSocket)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/signup", s.handleSignup).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", s.requireAuth(s.handleMe)).Methods(http.MethodGet)
	api.HandleFunc("/auth/logout", s.requireAuth(s.handleLogout)).Methods(http.MethodPost)

	api.HandleFunc("/rooms", s.handleListRooms).Methods(http.MethodGet)
	api.HandleFunc("/rooms", s.requireAuth(s.handleCreateRoom)).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}", s.handleGetRoom).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}/join", s.requireAuth(s.handleJoinRoom)).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/leave", s.requireAuth(s.handleLeaveRoom)).Methods(http.MethodDelete)

	return r
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(network.NewWSConnection(conn))
}

func (s *GameServer) handleConnection(conn network.Connection) {
	sess := session.NewSession(uuid.New().String(), conn)
	s.sessions.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", conn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", conn.RemoteAddr(), sess.GetID())
		// A disconnect is an implicit room:leave.
		s.playerLeave(sess)
		s.sessions.Remove(sess.GetID())
		s.monitor.DecOnlinePlayers()
		conn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			evt, err := conn.ReadEvent()
			if err != nil {
				return
			}
			s.handleEvent(sess, evt)
		}
	}
}

// purgeRooms drops soft-deleted rooms and any match state still keyed to
// them.
func (s *GameServer) purgeRooms() {
	purged := s.registry.Purge()
	for _, roomID := range purged {
		if s.table.Discard(roomID) {
			logger.Log.Warnf("Discarded lingering session for purged room %s", roomID)
		}
	}
	if len(purged) > 0 {
		logger.Log.Infof("Purged %d deleted rooms", len(purged))
	}
	s.refreshGauges()
}

func (s *GameServer) refreshGauges() {
	s.monitor.SetActiveRooms(s.registry.CountActive())
	s.monitor.SetActiveSessions(s.table.Count())
}
