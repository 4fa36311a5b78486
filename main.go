// main.go
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/wfunc/arenaserver/config"
	"github.com/wfunc/arenaserver/logger"
	"github.com/wfunc/arenaserver/monitor"
	"github.com/wfunc/arenaserver/persistence"
	"github.com/wfunc/arenaserver/server"
)

func main() {
	logger.Init()
	defer logger.Sync()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load config: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		logger.Log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	mon := monitor.NewMonitor("arenaserver")
	mon.StartServer(cfg.Server.MetricsAddress)

	srv := server.NewGameServer(cfg, store, mon)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Log.Info("Shutting down...")
		srv.Shutdown()
		logger.Sync()
		os.Exit(0)
	}()

	if err := srv.Start(); err != nil {
		logger.Log.Fatalf("Server exited: %v", err)
	}
}

// openStore picks the persistence backend from the config. gorm is the
// default Postgres path; pq keeps the raw database/sql variant; memory
// runs without a database.
func openStore(cfg *config.Config) (persistence.Store, error) {
	pg := cfg.Database.Postgres
	switch cfg.Database.Driver {
	case "gorm", "postgres":
		return persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case "pq", "raw":
		return persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	default:
		logger.Log.Info("No database configured, using the in-memory store")
		return persistence.NewMemory(), nil
	}
}
