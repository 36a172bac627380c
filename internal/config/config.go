package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrProviderUnsupported is returned when LLM_PROVIDER names no known backend.
var ErrProviderUnsupported = errors.New("unsupported llm provider")

const (
	ProviderOllama = "ollama"
	ProviderArk    = "ark"
)

// Config aggregates every setting of the agent.
type Config struct {
	Server    ServerConfig `yaml:"server"`
	AI        AIConfig     `yaml:"ai"`
	Exec      ExecConfig   `yaml:"exec"`
	Log       LogConfig    `yaml:"log"`
	AutoRoute bool         `yaml:"auto_route"`
}

// ServerConfig describes the optional HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AIConfig describes the chat model backend.
type AIConfig struct {
	Provider     string       `yaml:"provider"`
	Ollama       OllamaConfig `yaml:"ollama"`
	Ark          ArkConfig    `yaml:"ark"`
	Stream       bool         `yaml:"stream"`
	Timeout      int          `yaml:"timeout"`
	HistoryLimit int          `yaml:"history_limit"`
}

// OllamaConfig holds the local Ollama server settings.
type OllamaConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	TopP        float32 `yaml:"top_p"`
	TopK        int     `yaml:"top_k"`
	NumPredict  int     `yaml:"num_predict"`
}

// ArkConfig holds Volcengine Ark credentials.
type ArkConfig struct {
	APIKey      string   `yaml:"api_key"`
	AccessKey   string   `yaml:"access_key"`
	SecretKey   string   `yaml:"secret_key"`
	Model       string   `yaml:"model"`
	BaseURL     string   `yaml:"base_url"`
	Region      string   `yaml:"region"`
	Temperature *float64 `yaml:"temperature"`
	TopP        *float64 `yaml:"top_p"`
	MaxTokens   *int     `yaml:"max_tokens"`
}

// ExecConfig controls the code-execution assistant.
type ExecConfig struct {
	AutoRun  bool   `yaml:"auto_run"`
	Timeout  int    `yaml:"timeout"`
	MaxSteps int    `yaml:"max_steps"`
	Workdir  string `yaml:"workdir"`
}

// LogConfig controls where interaction records go.
type LogConfig struct {
	Dir       string `yaml:"dir"`
	HistoryDB string `yaml:"history_db"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		AI: AIConfig{
			Provider: ProviderOllama,
			Ollama: OllamaConfig{
				BaseURL:     "http://localhost:11434",
				Model:       "llama3",
				Temperature: 0.4,
				TopP:        0.9,
				TopK:        40,
				NumPredict:  4096,
			},
			Ark: ArkConfig{
				BaseURL: "https://ark.cn-beijing.volces.com/api/v3",
				Region:  "cn-beijing",
			},
			Stream:       true,
			Timeout:      120,
			HistoryLimit: 10,
		},
		Exec: ExecConfig{
			AutoRun:  true,
			Timeout:  60,
			MaxSteps: 5,
		},
		Log: LogConfig{Dir: "logs"},
	}
}

// Load reads the optional YAML file at path, then applies environment overrides.
// An empty path falls back to OCHAT_CONFIG.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = strings.TrimSpace(os.Getenv("OCHAT_CONFIG"))
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ActiveModel returns the model name of the selected provider.
func (c AIConfig) ActiveModel() string {
	if c.Provider == ProviderArk {
		return c.Ark.Model
	}
	return c.Ollama.Model
}

// Endpoint returns the base URL of the selected provider.
func (c AIConfig) Endpoint() string {
	if c.Provider == ProviderArk {
		return c.Ark.BaseURL
	}
	return c.Ollama.BaseURL
}

// Enabled reports whether Ark credentials are complete.
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

func (c *Config) validate() error {
	switch c.AI.Provider {
	case ProviderOllama:
		if c.AI.Ollama.BaseURL == "" {
			return errors.New("config: OLLAMA_BASE_URL must not be empty")
		}
	case ProviderArk:
	default:
		return fmt.Errorf("config: %w: %q", ErrProviderUnsupported, c.AI.Provider)
	}
	if c.AI.HistoryLimit < 0 {
		c.AI.HistoryLimit = 0
	}
	if c.Exec.MaxSteps < 1 {
		c.Exec.MaxSteps = 1
	}
	if c.Exec.Timeout <= 0 {
		c.Exec.Timeout = 60
	}
	if c.Log.Dir == "" {
		c.Log.Dir = "logs"
	}
	return nil
}

func applyEnv(cfg *Config) error {
	addr, err := serverAddr(cfg.Server.Addr)
	if err != nil {
		return err
	}
	cfg.Server.Addr = addr

	ai := &cfg.AI
	ai.Provider = strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ai.Provider))
	ai.Ollama.BaseURL = strings.TrimRight(getEnvOrDefault("OLLAMA_BASE_URL", ai.Ollama.BaseURL), "/")
	ai.Ollama.Model = getEnvOrDefault("OLLAMA_MODEL", ai.Ollama.Model)

	if ai.Ollama.Temperature, err = parseFloat32Env("OLLAMA_TEMPERATURE", ai.Ollama.Temperature); err != nil {
		return err
	}
	if ai.Ollama.TopP, err = parseFloat32Env("OLLAMA_TOP_P", ai.Ollama.TopP); err != nil {
		return err
	}
	if ai.Ollama.TopK, err = parseIntEnv("OLLAMA_TOP_K", ai.Ollama.TopK); err != nil {
		return err
	}
	if ai.Ollama.NumPredict, err = parseIntEnv("OLLAMA_NUM_PREDICT", ai.Ollama.NumPredict); err != nil {
		return err
	}

	ai.Ark.APIKey = getEnvOrDefault("ARK_API_KEY", ai.Ark.APIKey)
	ai.Ark.AccessKey = getEnvOrDefault("ARK_ACCESS_KEY", ai.Ark.AccessKey)
	ai.Ark.SecretKey = getEnvOrDefault("ARK_SECRET_KEY", ai.Ark.SecretKey)
	ai.Ark.Model = getEnvOrDefault("ARK_MODEL", ai.Ark.Model)
	ai.Ark.BaseURL = getEnvOrDefault("ARK_BASE_URL", ai.Ark.BaseURL)
	ai.Ark.Region = getEnvOrDefault("ARK_REGION", ai.Ark.Region)
	if v, err := parseOptionalFloatEnv("ARK_TEMPERATURE"); err != nil {
		return err
	} else if v != nil {
		ai.Ark.Temperature = v
	}
	if v, err := parseOptionalFloatEnv("ARK_TOP_P"); err != nil {
		return err
	} else if v != nil {
		ai.Ark.TopP = v
	}
	if v, err := parseOptionalIntEnv("ARK_MAX_TOKENS"); err != nil {
		return err
	} else if v != nil {
		ai.Ark.MaxTokens = v
	}

	if ai.Stream, err = parseBoolEnv("LLM_STREAM", ai.Stream); err != nil {
		return err
	}
	if ai.Timeout, err = parseIntEnv("LLM_TIMEOUT", ai.Timeout); err != nil {
		return err
	}
	if ai.HistoryLimit, err = parseIntEnv("CHAT_HISTORY_LIMIT", ai.HistoryLimit); err != nil {
		return err
	}

	ex := &cfg.Exec
	if ex.AutoRun, err = parseBoolEnv("EXEC_AUTO_RUN", ex.AutoRun); err != nil {
		return err
	}
	if ex.Timeout, err = parseIntEnv("EXEC_TIMEOUT", ex.Timeout); err != nil {
		return err
	}
	if ex.MaxSteps, err = parseIntEnv("EXEC_MAX_STEPS", ex.MaxSteps); err != nil {
		return err
	}
	ex.Workdir = getEnvOrDefault("EXEC_WORKDIR", ex.Workdir)

	cfg.Log.Dir = getEnvOrDefault("LOG_DIR", cfg.Log.Dir)
	cfg.Log.HistoryDB = getEnvOrDefault("HISTORY_DB", cfg.Log.HistoryDB)

	if cfg.AutoRoute, err = parseBoolEnv("AUTO_ROUTE", cfg.AutoRoute); err != nil {
		return err
	}
	return nil
}

// serverAddr turns PORT into a listen address, keeping current when unset.
func serverAddr(current string) (string, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		return current, nil
	}

	if strings.Contains(port, ":") {
		// accepts ":8080" or "127.0.0.1:8080"
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v, err := parseOptionalIntEnv(key)
	if err != nil || v == nil {
		return defaultValue, err
	}
	return *v, nil
}

func parseFloat32Env(key string, defaultValue float32) (float32, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return float32(val), nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
