package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Game     GameConfig     `mapstructure:"game"`
	Database DatabaseConfig `mapstructure:"database"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

// GameConfig 游戏规则配置
type GameConfig struct {
	MaxPlayers     int `mapstructure:"max_players"`
	StartHealth    int `mapstructure:"start_health"`
	RoomCodeLength int `mapstructure:"room_code_length"`
}

type DatabaseConfig struct {
	// Driver selects the persistence backend: gorm, pq or memory.
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_address", ":8080")
	viper.SetDefault("server.rpc_address", ":8081")
	viper.SetDefault("server.metrics_address", ":9090")
	viper.SetDefault("game.max_players", 2)
	viper.SetDefault("game.start_health", 100)
	viper.SetDefault("game.room_code_length", 6)
	viper.SetDefault("database.driver", "memory")

	viper.AutomaticEnv()

	if err = viper.ReadInConfig(); err != nil {
		// Defaults are enough to run without a config file.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	err = viper.Unmarshal(&config)
	return
}
