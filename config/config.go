package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	API      APIConfig      `yaml:"api"`
	Session  SessionConfig  `yaml:"session"`
	Flow     FlowConfig     `yaml:"flow"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	Log      LogConfig      `yaml:"log"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig 憑證儲存位置，Store 可為 file、redis、memory
type SessionConfig struct {
	Store    string `yaml:"store"`
	FilePath string `yaml:"file_path"`
	RedisKey string `yaml:"redis_key"`
	Token    string `yaml:"token"`
}

type FlowConfig struct {
	SeriesID       string `yaml:"series_id"`
	ConfirmPayment bool   `yaml:"confirm_payment"`
	MinorUnits     int32  `yaml:"minor_units"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"db_name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SandboxConfig 本地模擬後端；Backend 為 memory 或 postgres
type SandboxConfig struct {
	Addr    string   `yaml:"addr"`
	Backend string   `yaml:"backend"`
	Tokens  []string `yaml:"tokens"`
	Seed    bool     `yaml:"seed"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

var AppConfig *Config

// unsetMinorUnits 標記未設定，與明確設定的 0（如日圓）區分
const unsetMinorUnits int32 = math.MinInt32

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{Flow: FlowConfig{MinorUnits: unsetMinorUnits}}
	if path := os.Getenv("BLINDBOX_CONFIG"); path != "" {
		fileCfg, err := LoadYAML(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	cfg.API = GetAPIConfig(cfg.API)
	cfg.Session = GetSessionConfig(cfg.Session)
	flowConfig, err := GetFlowConfig(cfg.Flow)
	if err != nil {
		return nil, err
	}
	cfg.Flow = flowConfig
	cfg.Database = GetDatabaseConfig(cfg.Database)
	redisConfig, err := GetRedisConfig(cfg.Redis)
	if err != nil {
		return nil, err
	}
	cfg.Redis = redisConfig
	cfg.Sandbox = GetSandboxConfig(cfg.Sandbox)
	cfg.Log = LogConfig{
		Level: getEnv("LOG_LEVEL", orDefault(cfg.Log.Level, "info")),
		File:  getEnv("LOG_FILE", orDefault(cfg.Log.File, "blindbox.log")),
	}

	AppConfig = cfg
	return AppConfig, nil
}

// LoadYAML 讀取 YAML 設定檔，環境變數會再覆蓋其中的值
func LoadYAML(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	cfg := Config{Flow: FlowConfig{MinorUnits: unsetMinorUnits}}
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadTestConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8081",
			Timeout: 2 * time.Second,
		},
		Session: SessionConfig{
			Store:    "memory",
			RedisKey: "blindbox:test:token",
		},
		Flow: FlowConfig{
			SeriesID:   "1",
			MinorUnits: 2,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5433", // 測試 DB 用 5433 port
			User:     "postgres",
			Password: "postgres",
			DBName:   "test_db",
			SSLMode:  "disable",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: "6380", // 測試 Redis 用 6380 port
			DB:   1,
		},
		Sandbox: SandboxConfig{
			Addr:    ":8081",
			Backend: "memory",
			Tokens:  []string{"test-token"},
			Seed:    true,
		},
	}
}

func GetAPIConfig(base APIConfig) APIConfig {
	timeout := base.Timeout
	if v := os.Getenv("API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			timeout = d
		}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return APIConfig{
		BaseURL: getEnv("API_BASE_URL", orDefault(base.BaseURL, "http://localhost:8081")),
		Timeout: timeout,
	}
}

func GetSessionConfig(base SessionConfig) SessionConfig {
	return SessionConfig{
		Store:    getEnv("SESSION_STORE", orDefault(base.Store, "file")),
		FilePath: getEnv("SESSION_FILE", orDefault(base.FilePath, ".blindbox_token")),
		RedisKey: getEnv("SESSION_REDIS_KEY", orDefault(base.RedisKey, "blindbox:session:token")),
		Token:    getEnv("BLINDBOX_TOKEN", base.Token),
	}
}

func GetFlowConfig(base FlowConfig) (FlowConfig, error) {
	confirm := base.ConfirmPayment
	if v := os.Getenv("FLOW_CONFIRM_PAYMENT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			confirm = b
		}
	}
	minor := base.MinorUnits
	if v := os.Getenv("FLOW_MINOR_UNITS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return FlowConfig{}, fmt.Errorf("FLOW_MINOR_UNITS: %w", err)
		}
		minor = int32(n)
	}
	if minor == unsetMinorUnits {
		minor = 2
	}
	if minor < 0 {
		return FlowConfig{}, fmt.Errorf("minor units must not be negative: %d", minor)
	}
	return FlowConfig{
		SeriesID:       getEnv("FLOW_SERIES_ID", orDefault(base.SeriesID, "1")),
		ConfirmPayment: confirm,
		MinorUnits:     minor,
	}, nil
}

func GetDatabaseConfig(base DatabaseConfig) DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("DB_HOST", orDefault(base.Host, "localhost")),
		Port:     getEnv("DB_PORT", orDefault(base.Port, "5432")),
		User:     getEnv("DB_USER", orDefault(base.User, "postgres")),
		Password: getEnv("DB_PASSWORD", orDefault(base.Password, "postgres")),
		DBName:   getEnv("DB_NAME", orDefault(base.DBName, "postgres")),
		SSLMode:  getEnv("DB_SSL_MODE", orDefault(base.SSLMode, "disable")),
	}
}

func GetRedisConfig(base RedisConfig) (RedisConfig, error) {
	db := base.DB
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return RedisConfig{}, err
		}
		db = n
	}

	return RedisConfig{
		Host:     getEnv("REDIS_HOST", orDefault(base.Host, "localhost")),
		Port:     getEnv("REDIS_PORT", orDefault(base.Port, "6379")),
		Password: getEnv("REDIS_PASSWORD", base.Password),
		DB:       db,
	}, nil
}

func GetSandboxConfig(base SandboxConfig) SandboxConfig {
	tokens := base.Tokens
	if v := os.Getenv("SANDBOX_TOKENS"); v != "" {
		tokens = splitList(v)
	}
	seed := base.Seed
	if v := os.Getenv("SANDBOX_SEED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			seed = b
		}
	}
	return SandboxConfig{
		Addr:    getEnv("SANDBOX_ADDR", orDefault(base.Addr, ":8081")),
		Backend: getEnv("SANDBOX_BACKEND", orDefault(base.Backend, "memory")),
		Tokens:  tokens,
		Seed:    seed,
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
