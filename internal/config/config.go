// Package config loads the per-environment YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds the semroute configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Generator GeneratorConfig `yaml:"generator"`
	Budget    BudgetConfig    `yaml:"budget"`
	Router    RouterConfig    `yaml:"router"`
	Scope     ScopeConfig     `yaml:"scope"`
	Tagging   TaggingConfig   `yaml:"tagging"`
	Fallback  FallbackConfig  `yaml:"fallback"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// AuthConfig holds API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// DatabaseConfig holds Redis connection settings. Redis always hosts the knowledge index.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs" validate:"min=1,dive,required"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db" validate:"min=0,max=15"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// CacheConfig selects and tunes the response cache backend.
type CacheConfig struct {
	Driver              string         `yaml:"driver" validate:"oneof=redis postgres sqlite"`
	SimilarityThreshold float64        `yaml:"similarity_threshold" validate:"gt=0,lt=1"`
	CandidateWindow     int            `yaml:"candidate_window" validate:"min=1,max=1000"`
	HNSWM               int            `yaml:"hnsw_m"`
	HNSWEFConstruct     int            `yaml:"hnsw_ef_construction"`
	Postgres            PostgresConfig `yaml:"postgres"`
	SQLite              SQLiteConfig   `yaml:"sqlite"`
}

// PostgresConfig holds pgvector backend settings.
type PostgresConfig struct {
	DSN                string `yaml:"dsn"`
	MaxOpenConns       int    `yaml:"max_open_conns"`
	MaxIdleConns       int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec"`
	IVFLists           int    `yaml:"ivf_lists"`
}

// SQLiteConfig holds embedded backend settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// KnowledgeConfig holds knowledge search settings.
type KnowledgeConfig struct {
	Index              string  `yaml:"index"`
	TopK               int     `yaml:"top_k" validate:"min=1,max=100"`
	RelevanceThreshold float64 `yaml:"relevance_threshold" validate:"gt=0,lt=1"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey           string `yaml:"api_key"`
	BaseURL          string `yaml:"base_url"`
	Model            string `yaml:"model" validate:"required"`
	Dimensions       int    `yaml:"dimensions" validate:"min=1"`
	TimeoutSec       int    `yaml:"timeout_sec"`
	QueryInstruction string `yaml:"query_instruction"`
	CacheEnabled     bool   `yaml:"cache_enabled"`
	CacheTTLHours    int    `yaml:"cache_ttl_hours"`
}

// GeneratorConfig holds chat completion settings. Empty credentials inherit the embedding ones.
type GeneratorConfig struct {
	APIKey       string  `yaml:"api_key"`
	BaseURL      string  `yaml:"base_url"`
	Model        string  `yaml:"model" validate:"required"`
	SystemPrompt string  `yaml:"system_prompt"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float32 `yaml:"temperature" validate:"min=0,max=2"`
	TimeoutSec   int     `yaml:"timeout_sec"`
}

// BudgetConfig caps provider tokens; zero limits are unlimited.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit" validate:"min=0"`
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit" validate:"min=0"`
	Action            string `yaml:"action" validate:"oneof=warn reject"`
}

// RouterConfig holds per-request deadlines.
type RouterConfig struct {
	RequestTimeoutMs   int `yaml:"request_timeout_ms"`
	WriteBackTimeoutMs int `yaml:"write_back_timeout_ms"`
}

// ScopeConfig holds the topic scope policy.
type ScopeConfig struct {
	Enabled          bool     `yaml:"enabled"`
	DefaultAllow     *bool    `yaml:"default_allow"`
	CompanyKeywords  []string `yaml:"company_keywords"`
	RestrictedTopics []string `yaml:"restricted_topics"`
	AllowedTopics    []string `yaml:"allowed_topics"`
}

// TaggingConfig overrides the context tagger vocabulary. Empty keeps the built-in list.
type TaggingConfig struct {
	Keywords []string `yaml:"keywords"`
}

// FallbackConfig holds canned response settings.
type FallbackConfig struct {
	CompanyName string `yaml:"company_name"`
}

// RequestTimeout returns the router deadline.
func (r RouterConfig) RequestTimeout() time.Duration {
	return time.Duration(r.RequestTimeoutMs) * time.Millisecond
}

// WriteBackTimeout returns the cache write-back deadline.
func (r RouterConfig) WriteBackTimeout() time.Duration {
	return time.Duration(r.WriteBackTimeoutMs) * time.Millisecond
}

// AllowByDefault reports the verdict for queries no scope rule matches.
func (s ScopeConfig) AllowByDefault() bool {
	return s.DefaultAllow == nil || *s.DefaultAllow
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(expandEnvVars(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	setDefault(&c.HTTP.ReadTimeoutSec, 10)
	setDefault(&c.HTTP.WriteTimeoutSec, 60)
	setDefault(&c.HTTP.ShutdownSec, 10)
	setDefault(&c.Database.ReadinessTimeout, 10)
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "semroute:"
	}

	if c.Cache.Driver == "" {
		c.Cache.Driver = "redis"
	}
	if c.Cache.SimilarityThreshold == 0 {
		c.Cache.SimilarityThreshold = 0.85
	}
	setDefault(&c.Cache.CandidateWindow, 20)
	setDefault(&c.Cache.HNSWM, 16)
	setDefault(&c.Cache.HNSWEFConstruct, 200)
	setDefault(&c.Cache.Postgres.MaxOpenConns, 10)
	setDefault(&c.Cache.Postgres.MaxIdleConns, 5)
	setDefault(&c.Cache.Postgres.ConnMaxLifetimeSec, 300)
	setDefault(&c.Cache.Postgres.IVFLists, 100)
	if c.Cache.SQLite.Path == "" {
		c.Cache.SQLite.Path = "semroute-cache.db"
	}

	if c.Knowledge.Index == "" {
		c.Knowledge.Index = "knowledge"
	}
	setDefault(&c.Knowledge.TopK, 5)
	if c.Knowledge.RelevanceThreshold == 0 {
		c.Knowledge.RelevanceThreshold = 0.7
	}

	setDefault(&c.Embedding.TimeoutSec, 30)
	setDefault(&c.Embedding.CacheTTLHours, 24*30)

	if c.Generator.APIKey == "" {
		c.Generator.APIKey = c.Embedding.APIKey
	}
	if c.Generator.BaseURL == "" {
		c.Generator.BaseURL = c.Embedding.BaseURL
	}
	setDefault(&c.Generator.MaxTokens, 512)
	setDefault(&c.Generator.TimeoutSec, 60)

	if c.Budget.Action == "" {
		c.Budget.Action = "warn"
	}

	setDefault(&c.Router.RequestTimeoutMs, 30000)
	setDefault(&c.Router.WriteBackTimeoutMs, 2000)

	if c.Fallback.CompanyName == "" {
		c.Fallback.CompanyName = "our company"
	}
}

func setDefault(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return describe(verrs[0])
		}
		return fmt.Errorf("validate config: %w", err)
	}

	switch c.Cache.Driver {
	case "postgres":
		if c.Cache.Postgres.DSN == "" {
			return errors.New("cache.postgres.dsn is required for the postgres driver")
		}
	case "sqlite":
		if c.Cache.SQLite.Path == "" {
			return errors.New("cache.sqlite.path is required for the sqlite driver")
		}
	}
	return nil
}

// describe renders a validation failure using the YAML path of the field.
func describe(fe validator.FieldError) error {
	_, field, _ := strings.Cut(fe.Namespace(), ".")
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "min":
		return fmt.Errorf("%s must be at least %s, got %v", field, fe.Param(), fe.Value())
	case "max":
		return fmt.Errorf("%s must be at most %s, got %v", field, fe.Param(), fe.Value())
	case "gt", "lt":
		return fmt.Errorf("%s must be in (0, 1), got %v", field, fe.Value())
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	default:
		return fmt.Errorf("%s failed %q validation", field, fe.Tag())
	}
}

// findConfigPath locates config/<env>.yaml in the working directory or the project root.
func findConfigPath(env string) string {
	filename := env + ".yaml"

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b)))
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		name, def, hasDefault := strings.Cut(string(match[2:len(match)-1]), ":-")
		val := os.Getenv(name)
		if val == "" && hasDefault {
			val = def
		}
		return []byte(val)
	})
}
