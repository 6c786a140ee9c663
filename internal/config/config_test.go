package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, 60, cfg.Cache.TTLSeconds)
	assert.Equal(t, 500, cfg.Cache.MaxEntries)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 3, cfg.Retrieval.ExpansionFactor)
	assert.Equal(t, 10, cfg.Retrieval.TopK)
	assert.Equal(t, 5, cfg.Learning.MinBatch)
	assert.Equal(t, 0.1, cfg.Learning.Eta)
	assert.Equal(t, 300, cfg.Learning.TickSeconds)
	assert.Equal(t, 50, cfg.Timeouts.ClassifyMS)
	assert.Equal(t, 100, cfg.Timeouts.EnhanceMS)
	assert.Equal(t, 2000, cfg.Timeouts.RetrieveMS)
	assert.Equal(t, 500, cfg.Timeouts.RankMS)
	assert.Equal(t, 30000, cfg.Timeouts.BackendCallMS)
	assert.Equal(t, 10240, cfg.PatternMatch.SnippetScanBytes)
	assert.Equal(t, "file", cfg.Feedback.Sink)
}

func TestNewConfig_DefaultWeightsSumToOne(t *testing.T) {
	cfg := NewConfig()
	var sum float64
	for _, v := range cfg.Ranking.DefaultWeights {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Len(t, cfg.Ranking.DefaultWeights, 8)
}

func TestNewConfig_Validates(t *testing.T) {
	require.NoError(t, NewConfig().Validate())
}

func TestRankingConfig_ToWeightVector_SumsToOne(t *testing.T) {
	cfg := NewConfig()
	wv := cfg.Ranking.ToWeightVector()
	assert.InDelta(t, 1.0, wv.Sum(), 1e-9)
}

func TestRankingConfig_ToWeightVector_FillsMissingWithEvenShare(t *testing.T) {
	rc := RankingConfig{DefaultWeights: map[string]float64{}}
	wv := rc.ToWeightVector()
	even := 1.0 / 8.0
	for _, v := range wv {
		assert.InDelta(t, even, v, 1e-9)
	}
}

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "nouser"))
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Backend.Endpoint, cfg.Backend.Endpoint)
}

func TestLoad_YamlFile_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "nouser"))
	yamlContent := `
backend:
  endpoint: "http://backend.internal:9000"
cache:
  ttl_seconds: 120
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".coderag.yaml"), []byte(yamlContent), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://backend.internal:9000", cfg.Backend.Endpoint)
	assert.Equal(t, 120, cfg.Cache.TTLSeconds)
	assert.Equal(t, 500, cfg.Cache.MaxEntries)
}

func TestLoad_YmlExtension_IsRecognized(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "nouser"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".coderag.yml"), []byte("cache:\n  max_entries: 250\n"), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Cache.MaxEntries)
}

func TestLoad_YamlPreferredOverYml(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "nouser"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".coderag.yaml"), []byte("cache:\n  max_entries: 111\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".coderag.yml"), []byte("cache:\n  max_entries: 222\n"), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 111, cfg.Cache.MaxEntries)
}

func TestLoad_InvalidYaml_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "nouser"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".coderag.yaml"), []byte("cache: [this is not a map"), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_UnknownKey_FailsClosed(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "nouser"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".coderag.yaml"), []byte("cache:\n  bogus_field: 1\n"), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config_invalid")
}

func TestFindProjectRoot_GitDirectory_ReturnsGitRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0755))
	sub := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0755))

	root, err := FindProjectRoot(sub)
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}

func TestFindProjectRoot_ConfigFile_ReturnsConfigLocation(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".coderag.yaml"), []byte("version: 1\n"), 0644))

	root, err := FindProjectRoot(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}

func TestFindProjectRoot_NoMarkers_ReturnsCurrentDir(t *testing.T) {
	dir := t.TempDir()
	root, err := FindProjectRoot(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}

func TestLoad_EnvVarOverridesBackendEndpoint(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "nouser"))
	t.Setenv("CODERAG_BACKEND_ENDPOINT", "http://env-backend:1234")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://env-backend:1234", cfg.Backend.Endpoint)
}

func TestLoad_EnvVarOverridesLogLevel(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "nouser"))
	t.Setenv("CODERAG_LOG_LEVEL", "warn")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
}

func TestLoad_EnvVarOverridesTransport(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "nouser"))
	t.Setenv("CODERAG_TRANSPORT", "sse")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sse", cfg.Server.Transport)
}

func TestLoad_EnvVarOverridesEmbeddingDimension(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "nouser"))
	t.Setenv("CODERAG_EMBEDDING_DIMENSION", "768")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 768, cfg.Embedding.Dimension)
}

func TestLoad_EnvVarEmptyString_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "nouser"))
	t.Setenv("CODERAG_BACKEND_ENDPOINT", "")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Backend.Endpoint, cfg.Backend.Endpoint)
}

func TestLoad_EnvVarInvalidDimension_IsIgnored(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "nouser"))
	t.Setenv("CODERAG_EMBEDDING_DIMENSION", "not-a-number")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Embedding.Dimension, cfg.Embedding.Dimension)
}

func TestGetUserConfigPath_DefaultsToXDGLocation(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "coderag", "config.yaml"), GetUserConfigPath())
}

func TestGetUserConfigPath_RespectsXDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/xdg")
	assert.Equal(t, filepath.Join("/custom/xdg", "coderag", "config.yaml"), GetUserConfigPath())
}

func TestGetUserConfigDir_ReturnsParentOfConfigPath(t *testing.T) {
	assert.Equal(t, filepath.Dir(GetUserConfigPath()), GetUserConfigDir())
}

func TestUserConfigExists_ReturnsFalseWhenMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	assert.False(t, UserConfigExists())
}

func TestUserConfigExists_ReturnsTrueWhenPresent(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "coderag"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "coderag", "config.yaml"), []byte("version: 1\n"), 0644))
	assert.True(t, UserConfigExists())
}

func TestLoad_UserConfigOverridesDefaults(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	require.NoError(t, os.MkdirAll(filepath.Join(xdg, "coderag"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(xdg, "coderag", "config.yaml"), []byte("retrieval:\n  top_k: 25\n"), 0644))

	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Retrieval.TopK)
}

func TestLoad_ProjectConfigOverridesUserConfig(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	require.NoError(t, os.MkdirAll(filepath.Join(xdg, "coderag"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(xdg, "coderag", "config.yaml"), []byte("retrieval:\n  top_k: 25\n"), 0644))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".coderag.yaml"), []byte("retrieval:\n  top_k: 40\n"), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Retrieval.TopK)
}

func TestLoad_EnvVarOverridesUserAndProjectConfig(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	require.NoError(t, os.MkdirAll(filepath.Join(xdg, "coderag"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(xdg, "coderag", "config.yaml"), []byte("backend:\n  endpoint: \"http://user:1\"\n"), 0644))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".coderag.yaml"), []byte("backend:\n  endpoint: \"http://project:2\"\n"), 0644))
	t.Setenv("CODERAG_BACKEND_ENDPOINT", "http://env:3")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://env:3", cfg.Backend.Endpoint)
}

func TestLoad_InvalidUserConfig_ReturnsError(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	require.NoError(t, os.MkdirAll(filepath.Join(xdg, "coderag"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(xdg, "coderag", "config.yaml"), []byte("cache: [broken"), 0644))

	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestLoadUserConfig_ReturnsNilWhenAbsent(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Nil(t, cfg)
}
