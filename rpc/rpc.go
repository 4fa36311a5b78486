package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/arenaserver/game"
	"github.com/wfunc/arenaserver/logger"
	"github.com/wfunc/arenaserver/models"
	"github.com/wfunc/arenaserver/registry"
	"github.com/wfunc/arenaserver/services"
	"github.com/wfunc/arenaserver/session"
)

// Server manages the RPC listener for operator tooling.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes read-only operator queries over net/rpc.
type AdminService struct {
	registry *registry.Registry
	sessions *session.Manager
	table    *game.Table
	users    *services.UserService
}

func NewAdminService(reg *registry.Registry, sessions *session.Manager, table *game.Table, users *services.UserService) *AdminService {
	return &AdminService{
		registry: reg,
		sessions: sessions,
		table:    table,
		users:    users,
	}
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Rooms []models.RoomSummary
}

func (a *AdminService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	reply.Rooms = a.registry.ListActive()
	return nil
}

type StatsArgs struct{}

type StatsReply struct {
	OnlinePlayers  int
	ActiveRooms    int
	ActiveSessions int
}

func (a *AdminService) Stats(args *StatsArgs, reply *StatsReply) error {
	reply.OnlinePlayers = a.sessions.Count()
	reply.ActiveRooms = a.registry.CountActive()
	reply.ActiveSessions = a.table.Count()
	return nil
}

type PlayerStatsArgs struct {
	UserID string
}

type PlayerStatsReply struct {
	Stats *models.PlayerStats
}

func (a *AdminService) PlayerStats(args *PlayerStatsArgs, reply *PlayerStatsReply) error {
	stats, err := a.users.Stats(args.UserID)
	if err != nil {
		return err
	}
	reply.Stats = stats
	return nil
}
