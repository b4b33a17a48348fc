package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	ServerPort         string
	FrontendURL        string
	RedisURL           string
	TranscribeProvider string
	GeminiAPIKey       string
	GeminiBaseURL      string
	GeminiModel        string
	OpenAIKey          string
	OpenAIModel        string
	OpenAIBaseURL      string
	CaptureRateLimit   string
	MaxCaptureBytes    int
	ServerDebugMode    bool
	OTELEnabled        bool
	OTELEndpoint       string
}

// fileConfig is the optional YAML config file shape. Environment variables
// take precedence over file values, file values over built-in defaults.
type fileConfig struct {
	ServerPort         string `yaml:"server_port"`
	FrontendURL        string `yaml:"frontend_url"`
	RedisURL           string `yaml:"redis_url"`
	TranscribeProvider string `yaml:"transcribe_provider"`
	GeminiBaseURL      string `yaml:"gemini_base_url"`
	GeminiModel        string `yaml:"gemini_model"`
	OpenAIModel        string `yaml:"openai_model"`
	OpenAIBaseURL      string `yaml:"openai_base_url"`
	CaptureRateLimit   string `yaml:"capture_rate_limit"`
}

// Load loads configuration from the optional YAML file named by
// TALKNOTE_CONFIG and from environment variables, and validates that the
// selected transcription provider has an API key
func Load() (*Config, error) {
	cfg, err := LoadStorage()
	if err != nil {
		return nil, err
	}

	switch cfg.TranscribeProvider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required when TRANSCRIBE_PROVIDER is gemini")
		}
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when TRANSCRIBE_PROVIDER is openai")
		}
	default:
		return nil, fmt.Errorf("unknown TRANSCRIBE_PROVIDER: %s", cfg.TranscribeProvider)
	}

	return cfg, nil
}

// LoadStorage loads configuration without requiring transcription
// credentials. Used by tools that only touch the note store.
func LoadStorage() (*Config, error) {
	file, err := loadFile(os.Getenv("TALKNOTE_CONFIG"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerPort:         getEnv("SERVER_PORT", orDefault(file.ServerPort, "8080")),
		FrontendURL:        getEnv("FRONTEND_URL", orDefault(file.FrontendURL, "http://localhost:3000")),
		RedisURL:           getEnv("REDIS_URL", orDefault(file.RedisURL, "redis://localhost:6379/0")),
		TranscribeProvider: getEnv("TRANSCRIBE_PROVIDER", orDefault(file.TranscribeProvider, "gemini")),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL:      getEnv("GEMINI_BASE_URL", orDefault(file.GeminiBaseURL, "")),
		GeminiModel:        getEnv("GEMINI_MODEL", orDefault(file.GeminiModel, "")),
		OpenAIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:        getEnv("OPENAI_MODEL", orDefault(file.OpenAIModel, "")),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", orDefault(file.OpenAIBaseURL, "")),
		CaptureRateLimit:   getEnv("CAPTURE_RATE_LIMIT", orDefault(file.CaptureRateLimit, "5-M")),
		MaxCaptureBytes:    getEnvInt("MAX_CAPTURE_BYTES", 10<<20),
		ServerDebugMode:    getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:        getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	return cfg, nil
}

// loadFile reads the optional YAML config file. A missing path or missing
// file is not an error.
func loadFile(path string) (*fileConfig, error) {
	fc := &fileConfig{}
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return fc, nil
}

func orDefault(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
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
