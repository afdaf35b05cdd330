package app

import (
	"fmt"

	"ktdde/internal/catalog"
	"ktdde/internal/config"
	"ktdde/internal/transform"
)

// Context is what every command needs from a workspace: its config and the
// scenario catalog that config points at.
type Context struct {
	Workspace string
	Config    *config.Config
	// ConfigFound is false when the workspace has no ktdde.yml and defaults
	// are in use.
	ConfigFound bool
	Catalog     *catalog.Catalog
	// ScenarioPath is empty when the embedded scenario is loaded.
	ScenarioPath string
}

// Resolve loads ktdde.yml if present, falling back to defaults, then loads
// the scenario it names or the embedded one.
func Resolve(workspace string) (*Context, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	ac := &Context{Workspace: workspace, Config: cfg, ConfigFound: cfg != nil}
	if cfg == nil {
		ac.Config = config.Default()
	}
	ac.ScenarioPath = ac.Config.ScenarioPath(workspace)
	if ac.ScenarioPath == "" {
		ac.Catalog, err = catalog.Default()
	} else {
		ac.Catalog, err = catalog.FromFile(ac.ScenarioPath)
	}
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	return ac, nil
}

// TransformOptions builds credential options from the config. A zero
// issuance time means now.
func (c *Context) TransformOptions() transform.Options {
	return transform.Options{
		Issuer:   transform.Issuer{ID: c.Config.Issuer.ID, Name: c.Config.Issuer.Name},
		Contexts: c.Config.Credential.Contexts,
	}
}
