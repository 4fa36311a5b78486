// persistence/gorm_postgresql.go
package persistence

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/arenaserver/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.GormUser{}, &models.GormMatchRecord{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// CreateUser 创建用户账号
func (p *GormPostgreSQL) CreateUser(user *models.User, passwordHash string) error {
	record := models.GormUser{
		UserID:       user.ID,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: passwordHash,
	}
	if err := p.db.Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateUser
		}
		return err
	}
	return nil
}

// GetUserByUsername 按用户名查找账号，返回账号与密码哈希
func (p *GormPostgreSQL) GetUserByUsername(username string) (*models.User, string, error) {
	var record models.GormUser
	if err := p.db.Where("username = ?", username).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrRecordNotFound
		}
		return nil, "", err
	}

	return &models.User{
		ID:        record.UserID,
		Username:  record.Username,
		Email:     record.Email,
		CreatedAt: record.CreatedAt,
	}, record.PasswordHash, nil
}

// SaveMatchRecord 保存对局记录
func (p *GormPostgreSQL) SaveMatchRecord(record *models.MatchRecord) error {
	row := models.GormMatchRecord{
		RoomID:     record.RoomID,
		WinnerID:   record.WinnerID,
		WinnerName: record.WinnerName,
		LoserID:    record.LoserID,
		LoserName:  record.LoserName,
		Duration:   record.Duration,
	}
	return p.db.Create(&row).Error
}

// GetPlayerStats 统计玩家胜负场次
func (p *GormPostgreSQL) GetPlayerStats(userID string) (*models.PlayerStats, error) {
	var stats models.PlayerStats

	err := p.db.Raw(
		`
        SELECT
            COUNT(*) as total_matches,
            SUM(CASE WHEN winner_id = ? THEN 1 ELSE 0 END) as wins,
            SUM(CASE WHEN loser_id = ? THEN 1 ELSE 0 END) as losses
        FROM gorm_match_records
        WHERE winner_id = ? OR loser_id = ?`,
		userID, userID, userID, userID,
	).Scan(&stats).Error
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
