package config

import (
	"errors"
	"time"
)

// Config 应用配置根结构
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Store   StoreConfig   `mapstructure:"store"`
	NLU     NLUConfig     `mapstructure:"nlu"`
	Session SessionConfig `mapstructure:"session"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig 日志配置 (Zerolog)
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	TimeFormat string `mapstructure:"time_format"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
	MinPoolSize uint64 `mapstructure:"min_pool_size"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// StoreConfig 存储后端配置
type StoreConfig struct {
	Type     string `mapstructure:"type"`      // mongo, bolt, memory
	BoltPath string `mapstructure:"bolt_path"` // bolt 数据文件路径
}

// NLUConfig NLU webhook 配置
type NLUConfig struct {
	BaseURL         string          `mapstructure:"base_url"`
	Timeout         time.Duration   `mapstructure:"timeout"`
	FallbackMessage string          `mapstructure:"fallback_message"`
	Assistant       AssistantConfig `mapstructure:"assistant"`
}

// AssistantConfig 对话中 AI 参与者的身份
type AssistantConfig struct {
	ID      string `mapstructure:"id"`
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// SessionConfig 聊天历史分组配置
type SessionConfig struct {
	Gap      time.Duration `mapstructure:"gap"`
	Timezone string        `mapstructure:"timezone"`
}

// Location 解析分组使用的时区，空值使用本地时区
func (c SessionConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Validate 验证配置有效性
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return errors.New("invalid server mode, must be debug/release/test")
	}

	switch c.Store.Type {
	case "mongo":
		if c.Mongo.URI == "" {
			return errors.New("mongo.uri is required for mongo store")
		}
	case "bolt":
		if c.Store.BoltPath == "" {
			return errors.New("store.bolt_path is required for bolt store")
		}
	case "memory":
	default:
		return errors.New("invalid store type, must be mongo/bolt/memory")
	}

	if c.NLU.Timeout <= 0 {
		return errors.New("nlu.timeout must be positive")
	}

	if c.Session.Gap <= 0 {
		return errors.New("session.gap must be positive")
	}
	if _, err := c.Session.Location(); err != nil {
		return errors.New("invalid session.timezone")
	}

	return nil
}
