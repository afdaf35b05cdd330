package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ktdde/internal/catalog"
	"ktdde/internal/config"
)

func TestResolveDefaults(t *testing.T) {
	ac, err := Resolve(t.TempDir())
	require.NoError(t, err)
	assert.False(t, ac.ConfigFound)
	assert.Empty(t, ac.ScenarioPath)
	assert.Equal(t, "embedded", ac.Catalog.Source())

	opts := ac.TransformOptions()
	assert.Equal(t, "did:web:nordic-timber.fi", opts.Issuer.ID)
	assert.Len(t, opts.Contexts, 2)
}

func TestResolveScenarioFile(t *testing.T) {
	ws := t.TempDir()
	cfg := "scenario:\n  file: scenario.yaml\n"
	require.NoError(t, os.WriteFile(filepath.Join(ws, config.FileName), []byte(cfg), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "scenario.yaml"), catalog.Embedded(), 0o644))

	ac, err := Resolve(ws)
	require.NoError(t, err)
	assert.True(t, ac.ConfigFound)
	assert.Equal(t, filepath.Join(ws, "scenario.yaml"), ac.ScenarioPath)
	assert.Len(t, ac.Catalog.Documents(), 15)
}

func TestResolveBrokenScenario(t *testing.T) {
	ws := t.TempDir()
	cfg := "scenario:\n  file: broken.yaml\n"
	require.NoError(t, os.WriteFile(filepath.Join(ws, config.FileName), []byte(cfg), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "broken.yaml"), []byte("actors: []\n"), 0o644))

	_, err := Resolve(ws)
	require.Error(t, err)
	assert.True(t, errors.Is(err, catalog.ErrInvalidScenario))
}
