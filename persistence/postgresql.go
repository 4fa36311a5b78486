// persistence/postgresql.go
package persistence

import (
	"database/sql"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/wfunc/arenaserver/models"
)

// PostgreSQL 基于database/sql的实现，不依赖ORM
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建PostgreSQL数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(100)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	store := &PostgreSQL{db: db}
	if err := store.createTables(); err != nil {
		return nil, err
	}
	return store, nil
}

func (p *PostgreSQL) createTables() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            user_id TEXT UNIQUE NOT NULL,
            username TEXT UNIQUE NOT NULL,
            email TEXT UNIQUE NOT NULL,
            password_hash TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS match_records (
            id SERIAL PRIMARY KEY,
            room_id TEXT NOT NULL,
            winner_id TEXT NOT NULL,
            winner_name TEXT NOT NULL,
            loser_id TEXT NOT NULL,
            loser_name TEXT NOT NULL,
            duration INT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_match_records_winner ON match_records (winner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_match_records_loser ON match_records (loser_id)`,
	}

	for _, stmt := range statements {
		if _, err := p.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// CreateUser 创建用户账号
func (p *PostgreSQL) CreateUser(user *models.User, passwordHash string) error {
	var exists bool
	err := p.db.QueryRow(
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`,
		user.Username, user.Email,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateUser
	}

	_, err = p.db.Exec(
		`INSERT INTO users (user_id, username, email, password_hash, created_at)
         VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Username, user.Email, passwordHash, user.CreatedAt,
	)
	return err
}

// GetUserByUsername 按用户名查找账号
func (p *PostgreSQL) GetUserByUsername(username string) (*models.User, string, error) {
	var user models.User
	var hash string

	err := p.db.QueryRow(
		`SELECT user_id, username, email, password_hash, created_at
         FROM users WHERE username = $1`,
		username,
	).Scan(&user.ID, &user.Username, &user.Email, &hash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, "", ErrRecordNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return &user, hash, nil
}

// SaveMatchRecord 保存对局记录
func (p *PostgreSQL) SaveMatchRecord(record *models.MatchRecord) error {
	_, err := p.db.Exec(
		`INSERT INTO match_records (room_id, winner_id, winner_name, loser_id, loser_name, duration)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		record.RoomID, record.WinnerID, record.WinnerName,
		record.LoserID, record.LoserName, record.Duration,
	)
	return err
}

// GetPlayerStats 统计玩家胜负场次
func (p *PostgreSQL) GetPlayerStats(userID string) (*models.PlayerStats, error) {
	var stats models.PlayerStats

	err := p.db.QueryRow(
		`SELECT
            COUNT(*),
            COALESCE(SUM(CASE WHEN winner_id = $1 THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN loser_id = $1 THEN 1 ELSE 0 END), 0)
         FROM match_records
         WHERE winner_id = $1 OR loser_id = $1`,
		userID,
	).Scan(&stats.TotalMatches, &stats.Wins, &stats.Losses)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
