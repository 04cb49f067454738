// Package config loads docfuse configuration from defaults, user and
// project files, and DOCFUSE_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
)

// Project config file names, in lookup order.
var projectFiles = []string{".docfuse.yaml", ".docfuse.yml", ".docfuse.toml"}

// Config is the complete docfuse configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version" toml:"version"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking" toml:"chunking"`
	Search     SearchConfig     `yaml:"search" json:"search" toml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings" toml:"embeddings"`
	Vectors    VectorsConfig    `yaml:"vectors" json:"vectors" toml:"vectors"`
	Paths      PathsConfig      `yaml:"paths" json:"paths" toml:"paths"`
	Server     ServerConfig     `yaml:"server" json:"server" toml:"server"`
	Tagging    TaggingConfig    `yaml:"tagging" json:"tagging" toml:"tagging"`
}

// ChunkingConfig sets the sliding window, in code points.
type ChunkingConfig struct {
	ChunkSize int `yaml:"chunk_size" json:"chunk_size" toml:"chunk_size"`
	StepSize  int `yaml:"step_size" json:"step_size" toml:"step_size"`

	// Hints selects boundary snapping: "markdown" or "none".
	Hints string `yaml:"hints" json:"hints" toml:"hints"`
}

// SearchConfig tunes hybrid retrieval.
type SearchConfig struct {
	NumResults     int     `yaml:"num_results" json:"num_results" toml:"num_results"`
	LexicalWeight  float64 `yaml:"lexical_weight" json:"lexical_weight" toml:"lexical_weight"`
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight" toml:"semantic_weight"`

	// CandidateMultiplier scales how many candidates each index returns
	// before fusion.
	CandidateMultiplier int    `yaml:"candidate_multiplier" json:"candidate_multiplier" toml:"candidate_multiplier"`
	SnippetLength       int    `yaml:"snippet_length" json:"snippet_length" toml:"snippet_length"`
	Mode                string `yaml:"mode" json:"mode" toml:"mode"`
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider" toml:"provider"`
	Model      string `yaml:"model" json:"model" toml:"model"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host" toml:"ollama_host"`
	Dimensions int    `yaml:"dimensions" json:"dimensions" toml:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size" toml:"batch_size"`
	Timeout    string `yaml:"timeout" json:"timeout" toml:"timeout"`

	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second" toml:"requests_per_second"`

	// CacheSize bounds the query embedding cache.
	CacheSize int `yaml:"cache_size" json:"cache_size" toml:"cache_size"`

	// Fallback uses the static embedder when the provider is unreachable.
	Fallback bool `yaml:"fallback" json:"fallback" toml:"fallback"`
}

// VectorsConfig selects the vector search backend.
type VectorsConfig struct {
	// Backend is "exact" or "hnsw".
	Backend      string `yaml:"backend" json:"backend" toml:"backend"`
	HNSWM        int    `yaml:"hnsw_m" json:"hnsw_m" toml:"hnsw_m"`
	HNSWEfSearch int    `yaml:"hnsw_ef_search" json:"hnsw_ef_search" toml:"hnsw_ef_search"`

	// ContentCheck treats a changed chunk text under an unchanged id as
	// stale.
	ContentCheck bool `yaml:"content_check" json:"content_check" toml:"content_check"`
}

// PathsConfig locates documents and index data.
type PathsConfig struct {
	Docs       string   `yaml:"docs" json:"docs" toml:"docs"`
	Data       string   `yaml:"data" json:"data" toml:"data"`
	Extensions []string `yaml:"extensions" json:"extensions" toml:"extensions"`
	Exclude    []string `yaml:"exclude" json:"exclude" toml:"exclude"`
}

// ServerConfig configures the MCP server and watcher.
type ServerConfig struct {
	Transport     string `yaml:"transport" json:"transport" toml:"transport"`
	LogLevel      string `yaml:"log_level" json:"log_level" toml:"log_level"`
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce" toml:"watch_debounce"`
}

// TaggingConfig holds keyword rules for chunk categories.
type TaggingConfig struct {
	Rules []TagRule `yaml:"rules" json:"rules" toml:"rules"`
}

// TagRule maps keywords to a category and optional topic.
type TagRule struct {
	Category string   `yaml:"category" json:"category" toml:"category"`
	Topic    string   `yaml:"topic" json:"topic" toml:"topic"`
	Keywords []string `yaml:"keywords" json:"keywords" toml:"keywords"`
}

// NewConfig returns the defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Chunking: ChunkingConfig{
			ChunkSize: 2000,
			StepSize:  1000,
			Hints:     "markdown",
		},
		Search: SearchConfig{
			NumResults:          5,
			LexicalWeight:       0.5,
			SemanticWeight:      0.5,
			CandidateMultiplier: 2,
			SnippetLength:       600,
			Mode:                "hybrid",
		},
		Embeddings: EmbeddingsConfig{
			Provider:          "static",
			Model:             "nomic-embed-text",
			BatchSize:         32,
			Timeout:           "60s",
			RequestsPerSecond: 20,
			CacheSize:         1000,
			Fallback:          true,
		},
		Vectors: VectorsConfig{
			Backend:      "exact",
			HNSWM:        16,
			HNSWEfSearch: 64,
			ContentCheck: true,
		},
		Paths: PathsConfig{
			Docs:       "docs",
			Data:       ".docfuse",
			Extensions: []string{".md", ".mdx"},
			Exclude:    []string{},
		},
		Server: ServerConfig{
			Transport:     "stdio",
			LogLevel:      "info",
			WatchDebounce: "500ms",
		},
		Tagging: TaggingConfig{Rules: []TagRule{}},
	}
}

// GetUserConfigPath returns $XDG_CONFIG_HOME/docfuse/config.yaml, falling
// back to ~/.config.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docfuse", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docfuse", "config.yaml")
	}
	return filepath.Join(home, ".config", "docfuse", "config.yaml")
}

// LoadDotEnv loads dir/.env into the process environment. Variables that
// are already set win. A missing file is fine.
func LoadDotEnv(dir string) error {
	p := filepath.Join(dir, ".env")
	if !fileExists(p) {
		return nil
	}
	if err := godotenv.Load(p); err != nil {
		return fuseerr.ConfigError("load .env", err).WithDetail("path", p)
	}
	return nil
}

// Load builds the configuration for the project in dir:
//  1. defaults
//  2. user config
//  3. project config (.docfuse.yaml, .docfuse.yml or .docfuse.toml)
//  4. DOCFUSE_* environment variables
//
// and validates the result.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if p := GetUserConfigPath(); fileExists(p) {
		if err := cfg.loadFile(p); err != nil {
			return nil, err
		}
	}

	for _, name := range projectFiles {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			if err := cfg.loadFile(p); err != nil {
				return nil, err
			}
			break
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFile decodes path over c. Fields absent from the file keep their
// current values, so an explicit zero in the file is honored.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fuseerr.ConfigError("read config file", err).WithDetail("path", path)
	}

	if strings.HasSuffix(path, ".toml") {
		err = toml.Unmarshal(data, c)
	} else {
		err = yaml.Unmarshal(data, c)
	}
	if err != nil {
		return fuseerr.New(fuseerr.ErrCodeConfigInvalid, "parse config file", err).WithDetail("path", path)
	}
	return nil
}

// applyEnvOverrides applies DOCFUSE_* variables. Malformed values are
// logged and ignored.
func (c *Config) applyEnvOverrides() {
	envInt("DOCFUSE_CHUNK_SIZE", &c.Chunking.ChunkSize)
	envInt("DOCFUSE_STEP_SIZE", &c.Chunking.StepSize)
	envInt("DOCFUSE_NUM_RESULTS", &c.Search.NumResults)
	envFloat("DOCFUSE_LEXICAL_WEIGHT", &c.Search.LexicalWeight)
	envFloat("DOCFUSE_SEMANTIC_WEIGHT", &c.Search.SemanticWeight)
	envString("DOCFUSE_SEARCH_MODE", &c.Search.Mode)
	envString("DOCFUSE_EMBEDDINGS_PROVIDER", &c.Embeddings.Provider)
	envString("DOCFUSE_EMBEDDINGS_MODEL", &c.Embeddings.Model)
	envString("DOCFUSE_OLLAMA_HOST", &c.Embeddings.OllamaHost)
	envString("DOCFUSE_VECTOR_BACKEND", &c.Vectors.Backend)
	envString("DOCFUSE_DOCS_DIR", &c.Paths.Docs)
	envString("DOCFUSE_DATA_DIR", &c.Paths.Data)
	envString("DOCFUSE_LOG_LEVEL", &c.Server.LogLevel)
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring malformed environment value", slog.String("key", key), slog.String("value", v))
		return
	}
	*dst = n
}

func envFloat(key string, dst *float64) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("ignoring malformed environment value", slog.String("key", key), slog.String("value", v))
		return
	}
	*dst = f
}

// Validate checks ranges and names. Violations are InvalidParameter
// errors.
func (c *Config) Validate() error {
	ch := c.Chunking
	if ch.ChunkSize <= 0 {
		return fuseerr.InvalidParameter("chunking.chunk_size must be positive, got %d", ch.ChunkSize)
	}
	if ch.StepSize <= 0 || ch.StepSize > ch.ChunkSize {
		return fuseerr.InvalidParameter("chunking.step_size must be in (0, chunk_size], got %d", ch.StepSize)
	}
	if !oneOf(ch.Hints, "", "none", "markdown") {
		return fuseerr.InvalidParameter("chunking.hints must be 'markdown' or 'none', got %q", ch.Hints)
	}

	s := c.Search
	if s.NumResults <= 0 {
		return fuseerr.InvalidParameter("search.num_results must be positive, got %d", s.NumResults)
	}
	if s.LexicalWeight < 0 || s.LexicalWeight > 1 {
		return fuseerr.InvalidParameter("search.lexical_weight must be between 0 and 1, got %g", s.LexicalWeight)
	}
	if s.SemanticWeight < 0 || s.SemanticWeight > 1 {
		return fuseerr.InvalidParameter("search.semantic_weight must be between 0 and 1, got %g", s.SemanticWeight)
	}
	if s.CandidateMultiplier < 1 {
		return fuseerr.InvalidParameter("search.candidate_multiplier must be at least 1, got %d", s.CandidateMultiplier)
	}
	if s.SnippetLength <= 0 {
		return fuseerr.InvalidParameter("search.snippet_length must be positive, got %d", s.SnippetLength)
	}
	if !oneOf(s.Mode, "hybrid", "lexical", "semantic") {
		return fuseerr.InvalidParameter("search.mode must be 'hybrid', 'lexical' or 'semantic', got %q", s.Mode)
	}

	e := c.Embeddings
	if !oneOf(e.Provider, "", "static", "ollama") {
		return fuseerr.InvalidParameter("embeddings.provider must be 'static' or 'ollama', got %q", e.Provider)
	}
	if e.BatchSize < 0 || e.Dimensions < 0 {
		return fuseerr.InvalidParameter("embeddings.batch_size and embeddings.dimensions must be non-negative")
	}
	if e.Timeout != "" {
		if _, err := time.ParseDuration(e.Timeout); err != nil {
			return fuseerr.InvalidParameter("embeddings.timeout: %v", err)
		}
	}

	if !oneOf(c.Vectors.Backend, "exact", "hnsw") {
		return fuseerr.InvalidParameter("vectors.backend must be 'exact' or 'hnsw', got %q", c.Vectors.Backend)
	}

	if !oneOf(c.Server.Transport, "stdio") {
		return fuseerr.InvalidParameter("server.transport must be 'stdio', got %q", c.Server.Transport)
	}
	if !oneOf(c.Server.LogLevel, "debug", "info", "warn", "error") {
		return fuseerr.InvalidParameter("server.log_level must be 'debug', 'info', 'warn' or 'error', got %q", c.Server.LogLevel)
	}
	if _, err := time.ParseDuration(c.Server.WatchDebounce); err != nil {
		return fuseerr.InvalidParameter("server.watch_debounce: %v", err)
	}

	for i, r := range c.Tagging.Rules {
		if r.Category == "" || len(r.Keywords) == 0 {
			return fuseerr.InvalidParameter("tagging.rules[%d] needs a category and at least one keyword", i)
		}
	}
	return nil
}

// EmbeddingTimeout returns the parsed embeddings.timeout, or zero.
func (c *Config) EmbeddingTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Embeddings.Timeout)
	return d
}

// WatchDebounce returns the parsed server.watch_debounce.
func (c *Config) WatchDebounce() time.Duration {
	d, _ := time.ParseDuration(c.Server.WatchDebounce)
	return d
}

// DataDir resolves paths.data against root.
func (c *Config) DataDir(root string) string {
	return resolve(root, c.Paths.Data)
}

// DocsDir resolves paths.docs against root.
func (c *Config) DocsDir(root string) string {
	return resolve(root, c.Paths.Docs)
}

// WriteYAML writes c to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fuseerr.IOError("write config file", err).WithDetail("path", path)
	}
	return nil
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func oneOf(v string, allowed ...string) bool {
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
