package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "semvault.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/semvault"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// Layer names, in precedence order.
const (
	LayerUser     = "user"
	LayerProject  = "project"
	LayerExplicit = "explicit"
)

// Loader resolves the config layers a command runs with. Paths inside a
// layer (schema manifest, JetStream store dir, data reference roots) are
// relative to that layer's file, so a project can carry its own schemas
// while the user layer points at a shared store.
type Loader struct {
	logger *slog.Logger

	// overridable for tests
	home string
	cwd  string
}

// layer is one config file in the precedence chain.
type layer struct {
	name string
	path string
}

// layerPaths records which path settings a layer spells out itself.
type layerPaths struct {
	Schemas struct {
		Manifest string `yaml:"manifest"`
	} `yaml:"schemas"`
	NATS struct {
		StoreDir string `yaml:"store_dir"`
	} `yaml:"nats"`
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load applies, over the defaults, the user config
// (~/.config/semvault/config.yaml) and then the nearest semvault.yaml in
// the working directory or its parents. A missing or unreadable user layer
// is skipped; an unreadable project layer is an error.
func (l *Loader) Load() (*Config, error) {
	var layers []layer
	if path := l.userConfigPath(); path != "" {
		layers = append(layers, layer{name: LayerUser, path: path})
	}
	if path := l.findProjectConfig(); path != "" {
		layers = append(layers, layer{name: LayerProject, path: path})
	} else {
		l.logger.Debug("No project config found")
	}
	return l.apply(layers)
}

// LoadPath applies a single explicit config file over the defaults,
// skipping the user and project layers.
func (l *Loader) LoadPath(path string) (*Config, error) {
	return l.apply([]layer{{name: LayerExplicit, path: path}})
}

func (l *Loader) apply(layers []layer) (*Config, error) {
	cfg := DefaultConfig()
	defaultManifest := cfg.Schemas.Manifest
	cfg.Schemas.Manifest = ""

	anchor := ""
	for _, ly := range layers {
		layerCfg, err := readLayer(ly.path)
		if err != nil {
			if ly.name != LayerUser {
				return nil, fmt.Errorf("%s config %s: %w", ly.name, ly.path, err)
			}
			if !errors.Is(err, os.ErrNotExist) {
				l.logger.Warn("Skipping user config", slog.String("path", ly.path), slog.String("error", err.Error()))
			}
			continue
		}
		cfg.Merge(layerCfg)
		anchor = filepath.Dir(ly.path)
		l.logger.Debug("Applied config layer",
			slog.String("layer", ly.name),
			slog.String("path", ly.path),
			slog.String("manifest", layerCfg.Schemas.Manifest))
	}

	// no layer named a manifest: look beside the innermost config file
	if cfg.Schemas.Manifest == "" {
		cfg.Schemas.Manifest = filepath.Join(anchor, defaultManifest)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readLayer parses one config file over the defaults. Path settings the
// file leaves out stay empty so they do not mask an earlier layer, and
// relative ones are resolved against the file's directory.
func readLayer(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	var declared layerPaths
	if err := yaml.Unmarshal(data, &declared); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	dir := filepath.Dir(path)
	cfg.Schemas.Manifest = resolveAgainst(dir, declared.Schemas.Manifest)
	cfg.NATS.StoreDir = resolveAgainst(dir, declared.NATS.StoreDir)
	for alias, root := range cfg.DataReferences {
		cfg.DataReferences[alias] = resolveAgainst(dir, root)
	}
	return cfg, nil
}

// resolveAgainst makes a relative file path absolute under dir. Empty values
// and URLs are returned unchanged.
func resolveAgainst(dir, p string) string {
	if p == "" || filepath.IsAbs(p) || strings.Contains(p, "://") {
		return p
	}
	return filepath.Join(dir, p)
}

// EnsureUserConfig writes a default user config if none exists. The schema
// manifest is left out so each project finds its own.
func (l *Loader) EnsureUserConfig() error {
	path := l.userConfigPath()
	if path == "" {
		return fmt.Errorf("no home directory for the user config")
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	cfg := DefaultConfig()
	cfg.Schemas.Manifest = ""
	if err := cfg.SaveToFile(path); err != nil {
		return err
	}

	l.logger.Info("Created default user config", slog.String("path", path))
	return nil
}

func (l *Loader) userConfigPath() string {
	home := l.home
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return ""
		}
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig walks up from the working directory to the nearest
// semvault.yaml.
func (l *Loader) findProjectConfig() string {
	dir := l.cwd
	if dir == "" {
		var err error
		if dir, err = os.Getwd(); err != nil {
			return ""
		}
	}
	for {
		path := filepath.Join(dir, ProjectConfigFile)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
