package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, "/v0", cfg.Server.BasePath)
	assert.Equal(t, "did:web:nordic-timber.fi", cfg.Issuer.ID)
	assert.Len(t, cfg.Credential.Contexts, 2)
	d, err := cfg.TransformInterval()
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)
}

func TestGenerateDefaultRoundTrips(t *testing.T) {
	cfg, err := FromYAML([]byte(GenerateDefault()))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestFromYAMLKeepsDefaultsForMissingSections(t *testing.T) {
	cfg, err := FromYAML([]byte("server:\n  addr: 0.0.0.0:9000\n  base_path: /api\n"))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, "/api", cfg.Server.BasePath)
	assert.Equal(t, "Nordic Timber Oy", cfg.Issuer.Name)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"base path":       "server:\n  base_path: v0\n",
		"trailing slash":  "server:\n  base_path: /v0/\n",
		"issuer not did":  "issuer:\n  id: nordic-timber.fi\n",
		"http context":    "credential:\n  contexts: [http://example.com/ctx]\n",
		"watch sans file": "scenario:\n  watch: true\n",
		"bad interval":    "transform:\n  interval: soon\n",
		"neg interval":    "transform:\n  interval: -1s\n",
		"not yaml":        "server: [",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoadOptionalAndLoad(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	_, err = Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ktdde config init")

	require.NoError(t, os.WriteFile(Path(dir), []byte("transform:\n  interval: 250ms\n"), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	d, err := cfg.TransformInterval()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)
}

func TestScenarioPath(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.ScenarioPath("/ws"))
	cfg.Scenario.File = "data/scenario.yaml"
	assert.Equal(t, filepath.Join("/ws", "data", "scenario.yaml"), cfg.ScenarioPath("/ws"))
	cfg.Scenario.File = "/abs/scenario.yaml"
	assert.Equal(t, "/abs/scenario.yaml", cfg.ScenarioPath("/ws"))
}
