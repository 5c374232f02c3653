package config

import (
	"os"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Search   SearchConfig   `yaml:"search"`
	Chat     ChatConfig     `yaml:"chat"`
	Redis    RedisConfig    `yaml:"redis"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite, mysql
	DSN  string `yaml:"dsn"`
}

// LLMConfig 模型清单
// APIURL/APIKey/Model 描述默认的 OpenAI 兼容模型，Models 为空时使用
type LLMConfig struct {
	APIURL       string        `yaml:"api_url"`
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	DefaultModel string        `yaml:"default_model"`
	Models       []ModelConfig `yaml:"models"`
}

type ModelConfig struct {
	UUID        string         `yaml:"uuid"`
	Name        string         `yaml:"name"`
	Framework   string         `yaml:"framework"` // OpenAI
	ModelID     string         `yaml:"model_id"`
	Endpoint    string         `yaml:"endpoint"`
	Region      string         `yaml:"region"`
	APIKey      string         `yaml:"api_key"`
	ModelKwargs map[string]any `yaml:"model_kwargs"`
}

type SearchConfig struct {
	BaseURL        string         `yaml:"base_url"`
	Limit          int            `yaml:"limit"`
	ScoreThreshold float64        `yaml:"score_threshold"`
	ModelRefKey    string         `yaml:"model_ref_key"`
	Filter         map[string]any `yaml:"filter"`
	Timeout        time.Duration  `yaml:"timeout"`
}

type ChatConfig struct {
	MaxNewTokens int  `yaml:"max_new_tokens"`
	HistoryLimit int  `yaml:"history_limit"`
	Verbose      bool `yaml:"verbose"`
	UseStreaming bool `yaml:"use_streaming"`
}

// RedisConfig 模型解析缓存，Addr 为空时不启用
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

var (
	cfg  *Config
	once sync.Once
)

func GetConfig() *Config {
	once.Do(func() {
		cfg = loadConfig()
	})
	return cfg
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "./data/app.db",
		},
		LLM: LLMConfig{
			APIURL: "https://api.openai.com/v1",
			Model:  "gpt-4o",
		},
		Search: SearchConfig{
			BaseURL: "http://localhost:8000/",
			Limit:   5,
			Timeout: 30 * time.Second,
		},
		Chat: ChatConfig{
			MaxNewTokens: 500,
			HistoryLimit: 20,
		},
		Redis: RedisConfig{
			TTL: 10 * time.Minute,
		},
	}
}

func loadConfig() *Config {
	config := Default()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		yaml.Unmarshal(data, config)
	}

	applyEnv(config)
	return config
}

// applyEnv 环境变量优先级高于配置文件
func applyEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.LLM.APIURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL_NAME"); model != "" {
		config.LLM.Model = model
	}

	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if dbDSN := os.Getenv("DB_DSN"); dbDSN != "" {
		config.Database.DSN = dbDSN
	}

	if searchURL := os.Getenv("SEARCH_URL"); searchURL != "" {
		config.Search.BaseURL = searchURL
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		config.Redis.Addr = redisAddr
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
	if streaming := os.Getenv("CHAT_USE_STREAMING"); streaming != "" {
		if v, err := strconv.ParseBool(streaming); err == nil {
			config.Chat.UseStreaming = v
		}
	}

	if config.Search.Limit <= 0 {
		config.Search.Limit = 5
	}
	if config.Chat.HistoryLimit <= 0 {
		config.Chat.HistoryLimit = 20
	}
	if config.Chat.MaxNewTokens <= 0 {
		config.Chat.MaxNewTokens = 500
	}
}
