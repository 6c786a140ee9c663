// Package config loads and validates the query engine's configuration:
// hardcoded defaults, layered with a user config
// (~/.config/coderag/config.yaml), a project config (.coderag.yaml in
// the working directory), and CODERAG_* environment overrides, in that
// order of increasing precedence. An unrecognized key in a config file
// is rejected (config_invalid) rather than silently ignored.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coderag/engine/internal/ragquery"
)

// Config is the complete, typed configuration for the query engine.
type Config struct {
	Version      int                `yaml:"version" json:"version"`
	Server       ServerConfig       `yaml:"server" json:"server"`
	Backend      BackendConfig      `yaml:"backend" json:"backend"`
	Embedding    EmbeddingConfig    `yaml:"embedding" json:"embedding"`
	Cache        CacheConfig        `yaml:"cache" json:"cache"`
	Retrieval    RetrievalConfig    `yaml:"retrieval" json:"retrieval"`
	Ranking      RankingConfig      `yaml:"ranking" json:"ranking"`
	Learning     LearningConfig     `yaml:"learning" json:"learning"`
	Timeouts     TimeoutsConfig     `yaml:"timeouts" json:"timeouts"`
	PatternMatch PatternMatchConfig `yaml:"pattern_match" json:"pattern_match"`
	Feedback     FeedbackConfig     `yaml:"feedback" json:"feedback"`
	Telemetry    TelemetryConfig    `yaml:"telemetry" json:"telemetry"`
}

// ServerConfig configures the MCP-facing server process.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"` // "stdio" or "sse"
	Port      int    `yaml:"port" json:"port"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// BackendConfig configures the HTTP client to the external search
// backend.
type BackendConfig struct {
	Endpoint      string  `yaml:"endpoint" json:"endpoint"`
	PoolSize      int     `yaml:"pool_size" json:"pool_size"`
	CallTimeoutMS int     `yaml:"call_timeout_ms" json:"call_timeout_ms"`
	RetryBaseMS   int     `yaml:"retry_base_ms" json:"retry_base_ms"`
	RetryFactor   float64 `yaml:"retry_factor" json:"retry_factor"`
	RetryJitter   float64 `yaml:"retry_jitter" json:"retry_jitter"`
	MaxAttempts   int     `yaml:"max_attempts" json:"max_attempts"`
	MaxPending    int     `yaml:"max_pending" json:"max_pending"`
}

// EmbeddingConfig configures the HTTP client to the external embedding
// service. Dimension mismatches between this config
// and the backend's index are a hard error at embed time, never
// silently padded or truncated.
type EmbeddingConfig struct {
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	Model           string `yaml:"model" json:"model"`
	Dimension       int    `yaml:"dimension" json:"dimension"`
	CacheSize       int    `yaml:"cache_size" json:"cache_size"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds" json:"cache_ttl_seconds"`
	TimeoutMS       int    `yaml:"timeout_ms" json:"timeout_ms"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	TTLSeconds int  `yaml:"ttl_seconds" json:"ttl_seconds"`
	MaxEntries int  `yaml:"max_entries" json:"max_entries"`
	Enabled    bool `yaml:"enabled" json:"enabled"`
}

// RetrievalConfig configures the retrieval orchestrator.
type RetrievalConfig struct {
	ExpansionFactor int  `yaml:"expansion_factor" json:"expansion_factor"`
	TopK            int  `yaml:"top_k" json:"top_k"`
	BM25OnlyDefault bool `yaml:"bm25_only_default" json:"bm25_only_default"`
}

// RankingConfig configures the ranking engine's blend weights.
// DefaultWeights is keyed by factor name (ragquery.FactorNames);
// a missing key defaults to an equal 1/8 share.
type RankingConfig struct {
	DefaultWeights    map[string]float64 `yaml:"default_weights" json:"default_weights"`
	WeightBoundsMin   float64            `yaml:"weight_bounds_min" json:"weight_bounds_min"`
	WeightBoundsMax   float64            `yaml:"weight_bounds_max" json:"weight_bounds_max"`
	PerUpdateDeltaCap float64            `yaml:"per_update_delta_cap" json:"per_update_delta_cap"`
}

// ToWeightVector converts DefaultWeights into the fixed-order
// ragquery.WeightVector the ranker and weight store consume.
func (r RankingConfig) ToWeightVector() ragquery.WeightVector {
	var w ragquery.WeightVector
	even := 1.0 / float64(ragquery.NumFactors)
	for i, name := range ragquery.FactorNames {
		if v, ok := r.DefaultWeights[name]; ok {
			w[i] = v
		} else {
			w[i] = even
		}
	}
	return w
}

// LearningConfig configures the adaptive weight store.
type LearningConfig struct {
	MinBatch              int     `yaml:"min_batch" json:"min_batch"`
	Eta                   float64 `yaml:"eta" json:"eta"`
	TickSeconds           int     `yaml:"tick_seconds" json:"tick_seconds"`
	RollbackWindow        int     `yaml:"rollback_window" json:"rollback_window"`
	RollbackDropThreshold float64 `yaml:"rollback_drop_threshold" json:"rollback_drop_threshold"`
}

// TimeoutsConfig configures every per-stage and per-call deadline.
type TimeoutsConfig struct {
	ClassifyMS   int `yaml:"classify_ms" json:"classify_ms"`
	EnhanceMS    int `yaml:"enhance_ms" json:"enhance_ms"`
	RetrieveMS   int `yaml:"retrieve_ms" json:"retrieve_ms"`
	RankMS       int `yaml:"rank_ms" json:"rank_ms"`
	BackendCallMS int `yaml:"backend_call_ms" json:"backend_call_ms"`
}

// PatternMatchConfig bounds how much of a candidate's snippet the
// pattern-match factor scans, preventing catastrophic backtracking on
// pathological input.
type PatternMatchConfig struct {
	SnippetScanBytes int `yaml:"snippet_scan_bytes" json:"snippet_scan_bytes"`
}

// FeedbackConfig configures the feedback collector's append-only sink.
type FeedbackConfig struct {
	Sink           string `yaml:"sink" json:"sink"` // "file" or "sqlite"
	Path           string `yaml:"path" json:"path"`
	BufferCapacity int    `yaml:"buffer_capacity" json:"buffer_capacity"`
}

// TelemetryConfig configures local query-pattern telemetry: per-query
// type/latency/zero-result tracking, persisted to its own SQLite file
// independent of the feedback sink.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// NewConfig returns a Config populated with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Transport: "stdio",
			Port:      8765,
			LogLevel:  "info",
		},
		Backend: BackendConfig{
			Endpoint:      "http://localhost:8080",
			PoolSize:      32,
			CallTimeoutMS: 30000,
			RetryBaseMS:   200,
			RetryFactor:   2,
			RetryJitter:   0.2,
			MaxAttempts:   4,
			MaxPending:    256,
		},
		Embedding: EmbeddingConfig{
			Endpoint:        "http://localhost:8081",
			Model:           "default",
			Dimension:       1536,
			CacheSize:       10000,
			CacheTTLSeconds: 3600,
			TimeoutMS:       10000,
		},
		Cache: CacheConfig{
			TTLSeconds: 60,
			MaxEntries: 500,
			Enabled:    true,
		},
		Retrieval: RetrievalConfig{
			ExpansionFactor: 3,
			TopK:            10,
			BM25OnlyDefault: false,
		},
		Ranking: RankingConfig{
			DefaultWeights:    defaultWeightMap(),
			WeightBoundsMin:   0.05,
			WeightBoundsMax:   0.5,
			PerUpdateDeltaCap: 0.05,
		},
		Learning: LearningConfig{
			MinBatch:              5,
			Eta:                   0.1,
			TickSeconds:           300,
			RollbackWindow:        100,
			RollbackDropThreshold: 0.15,
		},
		Timeouts: TimeoutsConfig{
			ClassifyMS:    50,
			EnhanceMS:     100,
			RetrieveMS:    2000,
			RankMS:        500,
			BackendCallMS: 30000,
		},
		PatternMatch: PatternMatchConfig{
			SnippetScanBytes: 10240,
		},
		Feedback: FeedbackConfig{
			Sink:           "file",
			Path:           defaultFeedbackPath(),
			BufferCapacity: 10000,
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
			Path:    defaultTelemetryPath(),
		},
	}
}

func defaultWeightMap() map[string]float64 {
	even := 1.0 / float64(ragquery.NumFactors)
	m := make(map[string]float64, ragquery.NumFactors)
	for _, name := range ragquery.FactorNames {
		m[name] = even
	}
	return m
}

func defaultFeedbackPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "coderag", "feedback.jsonl")
	}
	return filepath.Join(home, ".coderag", "feedback.jsonl")
}

func defaultTelemetryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "coderag", "telemetry.db")
	}
	return filepath.Join(home, ".coderag", "telemetry.db")
}

// GetUserConfigPath returns the path to the user/global configuration
// file, following the XDG Base Directory convention.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "coderag", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "coderag", "config.yaml")
	}
	return filepath.Join(home, ".config", "coderag", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user config.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user config file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load builds a Config for dir by applying, in increasing precedence:
//  1. Hardcoded defaults (NewConfig)
//  2. The user/global config, if present
//  3. The project config (.coderag.yaml in dir), if present
//  4. CODERAG_* environment variable overrides
// The result is validated before being returned.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".coderag.yaml", ".coderag.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML loads and merges configuration from a YAML file. Unknown
// keys are rejected (config_invalid) rather than silently ignored.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	var parsed Config
	if err := dec.Decode(&parsed); err != nil {
		return fmt.Errorf("config_invalid: %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero fields of other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}

	if other.Backend.Endpoint != "" {
		c.Backend.Endpoint = other.Backend.Endpoint
	}
	if other.Backend.PoolSize != 0 {
		c.Backend.PoolSize = other.Backend.PoolSize
	}
	if other.Backend.CallTimeoutMS != 0 {
		c.Backend.CallTimeoutMS = other.Backend.CallTimeoutMS
	}
	if other.Backend.RetryBaseMS != 0 {
		c.Backend.RetryBaseMS = other.Backend.RetryBaseMS
	}
	if other.Backend.RetryFactor != 0 {
		c.Backend.RetryFactor = other.Backend.RetryFactor
	}
	if other.Backend.RetryJitter != 0 {
		c.Backend.RetryJitter = other.Backend.RetryJitter
	}
	if other.Backend.MaxAttempts != 0 {
		c.Backend.MaxAttempts = other.Backend.MaxAttempts
	}
	if other.Backend.MaxPending != 0 {
		c.Backend.MaxPending = other.Backend.MaxPending
	}

	if other.Embedding.Endpoint != "" {
		c.Embedding.Endpoint = other.Embedding.Endpoint
	}
	if other.Embedding.Model != "" {
		c.Embedding.Model = other.Embedding.Model
	}
	if other.Embedding.Dimension != 0 {
		c.Embedding.Dimension = other.Embedding.Dimension
	}
	if other.Embedding.CacheSize != 0 {
		c.Embedding.CacheSize = other.Embedding.CacheSize
	}
	if other.Embedding.CacheTTLSeconds != 0 {
		c.Embedding.CacheTTLSeconds = other.Embedding.CacheTTLSeconds
	}
	if other.Embedding.TimeoutMS != 0 {
		c.Embedding.TimeoutMS = other.Embedding.TimeoutMS
	}

	if other.Cache.TTLSeconds != 0 {
		c.Cache.TTLSeconds = other.Cache.TTLSeconds
	}
	if other.Cache.MaxEntries != 0 {
		c.Cache.MaxEntries = other.Cache.MaxEntries
	}
	c.Cache.Enabled = other.Cache.Enabled || c.Cache.Enabled

	if other.Retrieval.ExpansionFactor != 0 {
		c.Retrieval.ExpansionFactor = other.Retrieval.ExpansionFactor
	}
	if other.Retrieval.TopK != 0 {
		c.Retrieval.TopK = other.Retrieval.TopK
	}
	if other.Retrieval.BM25OnlyDefault {
		c.Retrieval.BM25OnlyDefault = true
	}

	if len(other.Ranking.DefaultWeights) > 0 {
		c.Ranking.DefaultWeights = other.Ranking.DefaultWeights
	}
	if other.Ranking.WeightBoundsMin != 0 {
		c.Ranking.WeightBoundsMin = other.Ranking.WeightBoundsMin
	}
	if other.Ranking.WeightBoundsMax != 0 {
		c.Ranking.WeightBoundsMax = other.Ranking.WeightBoundsMax
	}
	if other.Ranking.PerUpdateDeltaCap != 0 {
		c.Ranking.PerUpdateDeltaCap = other.Ranking.PerUpdateDeltaCap
	}

	if other.Learning.MinBatch != 0 {
		c.Learning.MinBatch = other.Learning.MinBatch
	}
	if other.Learning.Eta != 0 {
		c.Learning.Eta = other.Learning.Eta
	}
	if other.Learning.TickSeconds != 0 {
		c.Learning.TickSeconds = other.Learning.TickSeconds
	}
	if other.Learning.RollbackWindow != 0 {
		c.Learning.RollbackWindow = other.Learning.RollbackWindow
	}
	if other.Learning.RollbackDropThreshold != 0 {
		c.Learning.RollbackDropThreshold = other.Learning.RollbackDropThreshold
	}

	if other.Timeouts.ClassifyMS != 0 {
		c.Timeouts.ClassifyMS = other.Timeouts.ClassifyMS
	}
	if other.Timeouts.EnhanceMS != 0 {
		c.Timeouts.EnhanceMS = other.Timeouts.EnhanceMS
	}
	if other.Timeouts.RetrieveMS != 0 {
		c.Timeouts.RetrieveMS = other.Timeouts.RetrieveMS
	}
	if other.Timeouts.RankMS != 0 {
		c.Timeouts.RankMS = other.Timeouts.RankMS
	}
	if other.Timeouts.BackendCallMS != 0 {
		c.Timeouts.BackendCallMS = other.Timeouts.BackendCallMS
	}

	if other.PatternMatch.SnippetScanBytes != 0 {
		c.PatternMatch.SnippetScanBytes = other.PatternMatch.SnippetScanBytes
	}

	if other.Feedback.Sink != "" {
		c.Feedback.Sink = other.Feedback.Sink
	}
	if other.Feedback.Path != "" {
		c.Feedback.Path = other.Feedback.Path
	}
	if other.Feedback.BufferCapacity != 0 {
		c.Feedback.BufferCapacity = other.Feedback.BufferCapacity
	}

	c.Telemetry.Enabled = other.Telemetry.Enabled || c.Telemetry.Enabled
	if other.Telemetry.Path != "" {
		c.Telemetry.Path = other.Telemetry.Path
	}
}

// applyEnvOverrides applies CODERAG_* environment variable overrides,
// the highest-precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CODERAG_BACKEND_ENDPOINT"); v != "" {
		c.Backend.Endpoint = v
	}
	if v := os.Getenv("CODERAG_EMBEDDING_ENDPOINT"); v != "" {
		c.Embedding.Endpoint = v
	}
	if v := os.Getenv("CODERAG_EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("CODERAG_EMBEDDING_DIMENSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embedding.Dimension = n
		}
	}
	if v := os.Getenv("CODERAG_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("CODERAG_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("CODERAG_CACHE_ENABLED"); v != "" {
		c.Cache.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("CODERAG_FEEDBACK_SINK"); v != "" {
		c.Feedback.Sink = v
	}
	if v := os.Getenv("CODERAG_FEEDBACK_PATH"); v != "" {
		c.Feedback.Path = v
	}
	if v := os.Getenv("CODERAG_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("CODERAG_TELEMETRY_PATH"); v != "" {
		c.Telemetry.Path = v
	}
}

// Validate checks every bound placed on the configuration, failing
// closed (config_invalid) on violation.
func (c *Config) Validate() error {
	validTransports := map[string]bool{"stdio": true, "sse": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio' or 'sse', got %q", c.Server.Transport)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be debug/info/warn/error, got %q", c.Server.LogLevel)
	}

	if c.Backend.Endpoint == "" {
		return fmt.Errorf("backend.endpoint must not be empty")
	}
	if c.Backend.MaxAttempts < 1 {
		return fmt.Errorf("backend.max_attempts must be >= 1, got %d", c.Backend.MaxAttempts)
	}

	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}

	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries must be non-negative, got %d", c.Cache.MaxEntries)
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("cache.ttl_seconds must be non-negative, got %d", c.Cache.TTLSeconds)
	}

	if c.Retrieval.ExpansionFactor < 1 {
		return fmt.Errorf("retrieval.expansion_factor must be >= 1, got %d", c.Retrieval.ExpansionFactor)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval.top_k must be >= 1, got %d", c.Retrieval.TopK)
	}

	if err := c.Ranking.validate(); err != nil {
		return err
	}

	if c.Learning.MinBatch < 1 {
		return fmt.Errorf("learning.min_batch must be >= 1, got %d", c.Learning.MinBatch)
	}
	if c.Learning.Eta <= 0 || c.Learning.Eta > 1 {
		return fmt.Errorf("learning.eta must be in (0,1], got %f", c.Learning.Eta)
	}
	if c.Learning.RollbackDropThreshold < 0 || c.Learning.RollbackDropThreshold > 1 {
		return fmt.Errorf("learning.rollback_drop_threshold must be in [0,1], got %f", c.Learning.RollbackDropThreshold)
	}

	for name, ms := range map[string]int{
		"timeouts.classify_ms":     c.Timeouts.ClassifyMS,
		"timeouts.enhance_ms":      c.Timeouts.EnhanceMS,
		"timeouts.retrieve_ms":     c.Timeouts.RetrieveMS,
		"timeouts.rank_ms":         c.Timeouts.RankMS,
		"timeouts.backend_call_ms": c.Timeouts.BackendCallMS,
	} {
		if ms <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, ms)
		}
	}

	if c.PatternMatch.SnippetScanBytes <= 0 {
		return fmt.Errorf("pattern_match.snippet_scan_bytes must be positive, got %d", c.PatternMatch.SnippetScanBytes)
	}

	validSinks := map[string]bool{"file": true, "sqlite": true}
	if !validSinks[strings.ToLower(c.Feedback.Sink)] {
		return fmt.Errorf("feedback.sink must be 'file' or 'sqlite', got %q", c.Feedback.Sink)
	}

	if c.Telemetry.Enabled && c.Telemetry.Path == "" {
		return fmt.Errorf("telemetry.path must not be empty when telemetry.enabled is true")
	}

	return nil
}

// validate checks the weight-bounds and default-weight invariants on a
// WeightVector: every weight in [bounds_min, bounds_max], summing to
// 1.0 within tolerance.
func (r RankingConfig) validate() error {
	if r.WeightBoundsMin <= 0 || r.WeightBoundsMin >= r.WeightBoundsMax {
		return fmt.Errorf("ranking.weight_bounds_min must be in (0, weight_bounds_max), got %f", r.WeightBoundsMin)
	}
	if r.WeightBoundsMax > 1 {
		return fmt.Errorf("ranking.weight_bounds_max must be <= 1, got %f", r.WeightBoundsMax)
	}
	if r.PerUpdateDeltaCap <= 0 {
		return fmt.Errorf("ranking.per_update_delta_cap must be positive, got %f", r.PerUpdateDeltaCap)
	}
	if len(r.DefaultWeights) == 0 {
		return nil // NewConfig always populates this; an empty map after merge is a caller error, not ours to guess at.
	}
	var sum float64
	for _, name := range ragquery.FactorNames {
		v, ok := r.DefaultWeights[name]
		if !ok {
			return fmt.Errorf("ranking.default_weights missing factor %q", name)
		}
		if v < r.WeightBoundsMin || v > r.WeightBoundsMax {
			return fmt.Errorf("ranking.default_weights[%s]=%f out of [%f,%f]", name, v, r.WeightBoundsMin, r.WeightBoundsMax)
		}
		sum += v
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("ranking.default_weights must sum to 1.0, got %f", sum)
	}
	return nil
}

// WriteYAML writes the configuration to path as YAML.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user/global configuration file, returning a
// nil config and nil error if it does not exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// FindProjectRoot walks up from startDir looking for a .git directory
// or a .coderag.yaml/.yml file, returning startDir (absolute) if
// neither is found.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	dir := absDir
	for {
		if dirExists(filepath.Join(dir, ".git")) {
			return dir, nil
		}
		if fileExists(filepath.Join(dir, ".coderag.yaml")) || fileExists(filepath.Join(dir, ".coderag.yml")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return absDir, nil
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
