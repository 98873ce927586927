package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

// Config holds all server configuration
type Config struct {
	MySQL        MySQLConfig
	Redis        RedisConfig
	HTTPAddr     string
	Secret       string
	FilesDir     string
	FileSizeCap  int64
	LLM          LLMConfig
	Orchestrator OrchestratorConfig
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	DSN string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LLMConfig holds language-model API configuration
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OrchestratorConfig holds orchestration loop configuration
type OrchestratorConfig struct {
	MaxRounds           int
	HistoryWindow       int
	PollIntervalSec     int
	GlobalTimeoutSec    int
	OfflineThresholdSec int
	OutputCap           int
}

// Load loads server configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		MySQL: MySQLConfig{
			DSN: getEnv("MYSQL_DSN", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASS", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		Secret:      os.Getenv("APP_SECRET"),
		FilesDir:    getEnv("FILES_DIR", "data/files"),
		FileSizeCap: int64(getEnvInt("FILE_SIZE_CAP_MB", 16)) << 20,
		LLM: LLMConfig{
			APIKey:  os.Getenv("LLM_API_KEY"),
			BaseURL: getEnv("LLM_BASE_URL", "https://api.deepseek.com"),
			Model:   getEnv("LLM_MODEL", "deepseek-chat"),
		},
		Orchestrator: OrchestratorConfig{
			MaxRounds:           getEnvInt("ORCH_MAX_ROUNDS", 5),
			HistoryWindow:       getEnvInt("ORCH_HISTORY_WINDOW", 30),
			PollIntervalSec:     getEnvInt("ORCH_POLL_INTERVAL_SEC", 1),
			GlobalTimeoutSec:    getEnvInt("ORCH_GLOBAL_TIMEOUT_SEC", 120),
			OfflineThresholdSec: getEnvInt("ORCH_OFFLINE_THRESHOLD_SEC", 15),
			OutputCap:           getEnvInt("ORCH_OUTPUT_CAP", 4000),
		},
	}

	// Validate required fields
	if cfg.MySQL.DSN == "" {
		return nil, fmt.Errorf("MYSQL_DSN is required")
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("APP_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// AgentConfig holds the member-machine daemon configuration
type AgentConfig struct {
	ServerURL       string
	DataDir         string
	WorkspaceDir    string
	PollIntervalSec int
	ExecTimeoutSec  int
	PythonBin       string
}

// LoadAgent loads agent configuration from an INI file with environment
// variable override (ENV > INI > default). A missing file yields defaults.
func LoadAgent(iniPath string) (*AgentConfig, error) {
	_ = godotenv.Load()

	var cfgFile *ini.File
	if iniPath != "" {
		if f, err := ini.Load(iniPath); err == nil {
			cfgFile = f
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load INI file: %w", err)
		}
	}

	getValue := func(envKey, iniSection, iniKey, defaultValue string) string {
		if value := os.Getenv(envKey); value != "" {
			return value
		}
		if cfgFile != nil {
			if value := cfgFile.Section(iniSection).Key(iniKey).String(); value != "" {
				return value
			}
		}
		return defaultValue
	}

	getValueInt := func(envKey, iniSection, iniKey string, defaultValue int) int {
		if raw := getValue(envKey, iniSection, iniKey, ""); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil {
				return v
			}
		}
		return defaultValue
	}

	cfg := &AgentConfig{
		ServerURL:       getValue("AGENT_SERVER_URL", "server", "url", "http://localhost:8080"),
		DataDir:         getValue("AGENT_DATA_DIR", "paths", "data_dir", "data"),
		WorkspaceDir:    getValue("AGENT_WORKSPACE_DIR", "paths", "workspace_dir", "data/workspace"),
		PollIntervalSec: getValueInt("AGENT_POLL_INTERVAL_SEC", "poller", "interval_sec", 1),
		ExecTimeoutSec:  getValueInt("AGENT_EXEC_TIMEOUT_SEC", "sandbox", "timeout_sec", 30),
		PythonBin:       getValue("AGENT_PYTHON_BIN", "sandbox", "python_bin", "python3"),
	}

	return cfg, nil
}
