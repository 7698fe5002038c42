package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/ipdd/internal/model"
)

// isolate points HOME at a temp dir and clears credential variables
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OLLAMA_BASE_URL",
		"AGI_API_KEY", "AGI_API_URL", "IPDD_AGENT_API_KEY", "IPDD_AGENT_BASE_URL",
		"IPDD_LLM_API_KEY", "IPDD_LLM_PROVIDER", "IPDD_LLM_MODEL", "IPDD_OUTPUT_DIR",
	} {
		t.Setenv(key, "")
	}
	return home
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	isolate(t)

	c, used, err := loadConfig("")
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, model.DefaultConfig(), c)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".ipdd")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
http:
  timeout: 45s
output:
  dir: /tmp/reports
llm:
  provider: anthropic
  model: claude-sonnet
`), 0o644))
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("AGI_API_KEY", "agi-key")
	t.Setenv("AGI_API_URL", "https://agents.example.com/v1")
	t.Setenv("IPDD_OUTPUT_DIR", "/srv/out")

	c, used, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), used)
	assert.Equal(t, 45*time.Second, c.HTTP.Timeout)
	assert.Equal(t, "/srv/out", c.Output.Dir, "environment beats the config file")
	assert.Equal(t, "anthropic", c.LLM.Provider)
	assert.Equal(t, "claude-sonnet", c.LLM.Model)
	assert.Equal(t, "sk-ant-test", c.LLM.APIKey)
	assert.Equal(t, "agi-key", c.Agent.APIKey)
	assert.Equal(t, "https://agents.example.com/v1", c.Agent.BaseURL)
	assert.Equal(t, 25000, c.LLM.MaxTokens, "unset keys keep their defaults")
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	isolate(t)
	_, _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestWriteDefaultConfig_RoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	require.NoError(t, writeDefaultConfig(path))
	assert.Error(t, writeDefaultConfig(path), "an existing file is never overwritten")

	c, used, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, model.DefaultConfig(), c)
}

func TestParseTypes(t *testing.T) {
	types, err := parseTypes([]string{"us", " GLOBAL "})
	require.NoError(t, err)
	assert.Equal(t, []model.AnalysisType{model.AnalysisUS, model.AnalysisGlobal}, types)

	_, err = parseTypes([]string{"eu"})
	assert.Error(t, err)
}

func TestApplyProviderEnv(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("OLLAMA_BASE_URL", "http://ollama:11434")

	c := model.DefaultConfig()
	applyProviderEnv(c)
	assert.Equal(t, "sk-openai", c.LLM.APIKey)

	c.LLM.APIKey = "from-config"
	applyProviderEnv(c)
	assert.Equal(t, "from-config", c.LLM.APIKey)

	c = model.DefaultConfig()
	c.LLM.Provider = "ollama"
	applyProviderEnv(c)
	assert.Equal(t, "http://ollama:11434", c.LLM.BaseURL)
	assert.Empty(t, c.LLM.APIKey)
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "ipdd v"+Version+"\n", out.String())
}
