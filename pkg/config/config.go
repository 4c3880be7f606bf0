package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource"
)

// Config holds all configuration for ekaya-text2sql.
// Configuration comes from config.yaml with environment variable overrides.
// Secrets (passwords, API keys) only come from the environment.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"`

	Auth        AuthConfig        `yaml:"auth"`
	Datasource  DatasourceConfig  `yaml:"datasource"`
	LLM         AIConfig          `yaml:"llm"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Generation  GenerationConfig  `yaml:"generation"`
}

// AuthConfig controls bearer-token protection of the /mcp endpoint.
type AuthConfig struct {
	// Required rejects MCP requests without a valid bearer token.
	Required bool `yaml:"required" env:"AUTH_REQUIRED" env-default:"false"`

	// EnableVerification controls whether JWT signatures are validated.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is parsed from JWKSEndpointsStr.
	JWKSEndpoints map[string]string `yaml:"-"`
}

// DatasourceConfig describes the database questions are asked against.
type DatasourceConfig struct {
	Type     string `yaml:"type" env:"DATASOURCE_TYPE" env-default:"postgres"`
	Host     string `yaml:"host" env:"DATASOURCE_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DATASOURCE_PORT" env-default:"0"`
	User     string `yaml:"user" env:"DATASOURCE_USER" env-default:""`
	Password string `yaml:"-" env:"DATASOURCE_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"DATASOURCE_DATABASE" env-default:""`
	Schema   string `yaml:"schema" env:"DATASOURCE_SCHEMA" env-default:""`
	SSLMode  string `yaml:"ssl_mode" env:"DATASOURCE_SSL_MODE" env-default:"disable"`

	// ConnectionTTLMinutes is how long an idle pool is kept alive.
	ConnectionTTLMinutes int `yaml:"connection_ttl_minutes" env:"DATASOURCE_CONNECTION_TTL_MINUTES" env-default:"5"`
	// PoolMaxConns is the maximum number of connections in the datasource pool.
	PoolMaxConns int32 `yaml:"pool_max_conns" env:"DATASOURCE_POOL_MAX_CONNS" env-default:"10"`
	// PoolMinConns is the minimum number of idle connections kept open.
	PoolMinConns int32 `yaml:"pool_min_conns" env:"DATASOURCE_POOL_MIN_CONNS" env-default:"1"`
}

// AIConfig selects the completion backend.
// URI format: model_type+api_type://model[:tag]@[api_key]@api_uri
type AIConfig struct {
	URI    string `yaml:"-" env:"LLM_URI"` // Secret - may embed an API key
	APIKey string `yaml:"-" env:"LLM_API_KEY"`

	Temperature float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0"`
	MaxTokens   int     `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"2048"`
}

// EmbeddingConfig selects the embedding backend used by reference retrieval.
type EmbeddingConfig struct {
	URI    string `yaml:"-" env:"EMBEDDING_URI"`
	APIKey string `yaml:"-" env:"EMBEDDING_API_KEY"`
}

// VectorStoreConfig selects where question/SQL references live.
type VectorStoreConfig struct {
	// Backend is "milvus", "sqlite" or empty (retrieval disabled).
	Backend    string `yaml:"backend" env:"VECTOR_STORE_BACKEND" env-default:""`
	Collection string `yaml:"collection" env:"VECTOR_STORE_COLLECTION" env-default:"sql_references"`
	Dimensions int    `yaml:"dimensions" env:"VECTOR_STORE_DIMENSIONS" env-default:"1024"`

	MilvusURI   string `yaml:"milvus_uri" env:"MILVUS_URI" env-default:""`
	MilvusToken string `yaml:"-" env:"MILVUS_TOKEN"`

	SQLitePath string `yaml:"sqlite_path" env:"VECTOR_STORE_SQLITE_PATH" env-default:"data/references.db"`

	// SeedFile is a YAML file of question/SQL/tags records indexed at startup.
	SeedFile string `yaml:"seed_file" env:"VECTOR_STORE_SEED_FILE" env-default:""`
}

// GenerationConfig holds defaults for a generation request.
type GenerationConfig struct {
	SampleLimit       int `yaml:"sample_limit" env:"GENERATION_SAMPLE_LIMIT" env-default:"3"`
	RefLimit          int `yaml:"ref_limit" env:"GENERATION_REF_LIMIT" env-default:"3"`
	Concurrency       int `yaml:"concurrency" env:"GENERATION_CONCURRENCY" env-default:"4"`
	SampleValueMaxLen int `yaml:"sample_value_max_len" env:"GENERATION_SAMPLE_VALUE_MAX_LEN" env-default:"100"`
	TimeoutSeconds    int `yaml:"timeout_seconds" env:"GENERATION_TIMEOUT_SECONDS" env-default:"120"`
}

// Timeout returns the per-request deadline; zero disables it.
func (g GenerationConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// Load reads config.yaml (optional) with environment overrides. A .env file in
// the working directory is loaded first so its values act as environment.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile is Load with an explicit path.
func LoadFile(path, version string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{Version: version}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	cfg.parseComplexFields()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) parseComplexFields() {
	c.Auth.JWKSEndpoints = parseJWKSEndpoints(c.Auth.JWKSEndpointsStr)
	c.Datasource.Type = strings.ToLower(strings.TrimSpace(c.Datasource.Type))
	c.VectorStore.Backend = strings.ToLower(strings.TrimSpace(c.VectorStore.Backend))
}

func (c *Config) validate() error {
	dialect, err := datasource.ParseDialect(c.Datasource.Type)
	if err != nil {
		return fmt.Errorf("datasource.type: %w", err)
	}
	c.Datasource.Type = string(dialect)

	switch c.VectorStore.Backend {
	case "":
	case "milvus":
		if c.VectorStore.MilvusURI == "" {
			return fmt.Errorf("vector_store.milvus_uri is required for the milvus backend")
		}
	case "sqlite":
		if c.VectorStore.Dimensions <= 0 {
			return fmt.Errorf("vector_store.dimensions must be positive for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown vector_store.backend %q", c.VectorStore.Backend)
	}

	if c.Generation.SampleLimit < 0 || c.Generation.RefLimit < 0 {
		return fmt.Errorf("generation limits must not be negative")
	}
	if c.Auth.Required && c.Auth.EnableVerification && len(c.Auth.JWKSEndpoints) == 0 {
		return fmt.Errorf("auth.jwks_endpoints is required when auth is required and verification is enabled")
	}
	return nil
}

// parseJWKSEndpoints parses "issuer1=url1,issuer2=url2" into a map.
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	for _, pair := range strings.Split(value, ",") {
		issuer, url, ok := strings.Cut(pair, "=")
		if ok {
			endpoints[strings.TrimSpace(issuer)] = strings.TrimSpace(url)
		}
	}
	return endpoints
}

// DatasourceOptions flattens the datasource section into the generic option
// map consumed by the dialect adapters.
func (d DatasourceConfig) DatasourceOptions() map[string]any {
	opts := map[string]any{
		"host":     d.Host,
		"user":     d.User,
		"password": d.Password,
		"database": d.Database,
		"ssl_mode": d.SSLMode,
	}
	if d.Port > 0 {
		opts["port"] = d.Port
	}
	return opts
}
