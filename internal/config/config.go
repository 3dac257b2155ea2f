// Package config provides application configuration management.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (optionally loaded from a .env file)
//  2. Config file (./config.yaml, optional)
//  3. Default values
//
// Security: the API key is never logged; Config masks it in MarshalJSON and
// String. Validation is fail-fast with sentinel errors for errors.Is checks.
package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	// ErrInvalidChunking indicates chunk size/overlap are out of range.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidTopK indicates the top-k value is out of range.
	ErrInvalidTopK = errors.New("invalid top-k")

	// ErrInvalidMemoryWindow indicates the session memory window is out of range.
	ErrInvalidMemoryWindow = errors.New("invalid memory window")

	// ErrInvalidQueryLimit indicates the max query length is out of range.
	ErrInvalidQueryLimit = errors.New("invalid max query length")

	// ErrInvalidContextLimit indicates the max context length is out of range.
	ErrInvalidContextLimit = errors.New("invalid max context length")

	// ErrMissingPath indicates a required path setting is empty.
	ErrMissingPath = errors.New("missing path")
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON. When adding new
// sensitive fields (API keys, tokens), update MarshalJSON.
type Config struct {
	// Application
	AppName    string `mapstructure:"app_name" json:"app_name"`
	AppVersion string `mapstructure:"app_version" json:"app_version"`
	APIPrefix  string `mapstructure:"api_prefix" json:"api_prefix"`
	ServerAddr string `mapstructure:"server_addr" json:"server_addr"`

	// LLM
	GeminiModel  string  `mapstructure:"gemini_model" json:"gemini_model"`
	GeminiAPIKey string  `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE: masked in MarshalJSON
	Temperature  float64 `mapstructure:"temperature" json:"temperature"`

	// Embeddings
	EmbeddingModel string `mapstructure:"embedding_model" json:"embedding_model"`

	// Chunking
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Retrieval
	TopK            int `mapstructure:"top_k" json:"top_k"`
	MaxContextChars int `mapstructure:"max_context_chars" json:"max_context_chars"`

	// Security
	MaxQueryLength      int  `mapstructure:"max_query_length" json:"max_query_length"`
	EnableSecurityCheck bool `mapstructure:"enable_security_check" json:"enable_security_check"`

	// Session memory
	MaxMemoryMessages int `mapstructure:"max_memory_messages" json:"max_memory_messages"`

	// Paths
	DataFolder      string `mapstructure:"data_folder" json:"data_folder"`
	PromptsFolder   string `mapstructure:"prompts_folder" json:"prompts_folder"`
	VectorStorePath string `mapstructure:"vector_store_path" json:"vector_store_path"`

	// HTTP hardening (serve mode)
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`
}

// Load loads configuration.
// Priority: environment variables > config file > default values.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "RAG Chatbot")
	v.SetDefault("app_version", "1.0.0")
	v.SetDefault("api_prefix", "/api/v1")
	v.SetDefault("server_addr", ":8000")

	v.SetDefault("gemini_model", "gemini-2.5-flash")
	v.SetDefault("temperature", 0.2)

	v.SetDefault("embedding_model", "text-embedding-004")

	v.SetDefault("chunk_size", 1000)
	v.SetDefault("chunk_overlap", 200)

	v.SetDefault("top_k", 2)
	v.SetDefault("max_context_chars", 6000)

	v.SetDefault("max_query_length", 500)
	v.SetDefault("enable_security_check", true)

	v.SetDefault("max_memory_messages", 10)

	v.SetDefault("data_folder", "./data")
	v.SetDefault("prompts_folder", "./prompts")
	v.SetDefault("vector_store_path", "./vectorstore")

	v.SetDefault("cors_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 60)
}

// bindEnvVariables binds environment variables explicitly. The env names keep
// their conventional upper-snake form rather than a viper prefix scheme so a
// single .env file drives both local runs and deployment.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("app_name", "APP_NAME")
	mustBind("app_version", "APP_VERSION")
	mustBind("api_prefix", "API_PREFIX")
	mustBind("server_addr", "SERVER_ADDR")

	mustBind("gemini_model", "GEMINI_MODEL")
	mustBind("gemini_api_key", "GEMINI_API_KEY")
	mustBind("temperature", "LLM_TEMPERATURE")

	mustBind("embedding_model", "EMBEDDING_MODEL")

	mustBind("chunk_size", "CHUNK_SIZE")
	mustBind("chunk_overlap", "CHUNK_OVERLAP")

	mustBind("top_k", "TOP_K_RESULTS")
	mustBind("max_context_chars", "MAX_CONTEXT_CHARS")

	mustBind("max_query_length", "MAX_QUERY_LENGTH")
	mustBind("enable_security_check", "ENABLE_SECURITY_CHECK")

	mustBind("max_memory_messages", "MAX_MEMORY_MESSAGES")

	mustBind("data_folder", "DATA_FOLDER")
	mustBind("prompts_folder", "PROMPTS_FOLDER")
	mustBind("vector_store_path", "VECTOR_STORE_PATH")

	mustBind("cors_origins", "CORS_ORIGINS")
	mustBind("trust_proxy", "TRUST_PROXY")
	mustBind("rate_burst", "RATE_BURST")
}

// maskedValue is the placeholder for masked sensitive data. Full-width blocks
// avoid accidental substring matches against the real secret.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully masked;
// longer ones keep the first and last two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.GeminiAPIKey = maskSecret(a.GeminiAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// FullModelName returns the provider-qualified model name for Genkit,
// e.g. "googleai/gemini-2.5-flash".
func (c *Config) FullModelName() string {
	return "googleai/" + c.GeminiModel
}
