package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoaderLayers(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	nested := filepath.Join(project, "artifacts", "drafts")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	user := DefaultConfig()
	user.Purl.Prefix = "https://user.example.org/"
	user.NATS.Bucket = "USER_BUCKET"
	user.Schemas.Manifest = ""
	if err := user.SaveToFile(filepath.Join(home, UserConfigDir, UserConfigFile)); err != nil {
		t.Fatal(err)
	}

	projectConfig := "store:\n  backend: memory\npurl:\n  prefix: https://project.example.org/\n"
	if err := os.WriteFile(filepath.Join(project, ProjectConfigFile), []byte(projectConfig), 0644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(nil)
	l.home = home
	l.cwd = nested

	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Purl.Prefix != "https://project.example.org/" {
		t.Errorf("project config should win, got %s", cfg.Purl.Prefix)
	}
	if cfg.Store.Backend != BackendMemory {
		t.Errorf("expected backend memory, got %s", cfg.Store.Backend)
	}
	if cfg.NATS.Bucket != "USER_BUCKET" {
		t.Errorf("user setting should survive, got %s", cfg.NATS.Bucket)
	}
	if want := filepath.Join(project, "schemas.yaml"); cfg.Schemas.Manifest != want {
		t.Errorf("expected manifest relative to project config %s, got %s", want, cfg.Schemas.Manifest)
	}
}

func TestLoaderResolvesPathsPerLayer(t *testing.T) {
	home := t.TempDir()
	userDir := filepath.Join(home, UserConfigDir)
	if err := os.MkdirAll(userDir, 0755); err != nil {
		t.Fatal(err)
	}
	userConfig := "nats:\n  store_dir: jetstream\nschemas:\n  manifest: shared/schemas.yaml\ndata_references:\n  archive: archive\n  bucket: s3://data/root\n"
	if err := os.WriteFile(filepath.Join(userDir, UserConfigFile), []byte(userConfig), 0644); err != nil {
		t.Fatal(err)
	}

	project := t.TempDir()
	if err := os.WriteFile(filepath.Join(project, ProjectConfigFile), []byte("purl:\n  prefix: https://project.example.org/\n"), 0644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(nil)
	l.home = home
	l.cwd = project

	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if want := filepath.Join(userDir, "shared", "schemas.yaml"); cfg.Schemas.Manifest != want {
		t.Errorf("a project layer without a manifest keeps the user's, want %s got %s", want, cfg.Schemas.Manifest)
	}
	if want := filepath.Join(userDir, "jetstream"); cfg.NATS.StoreDir != want {
		t.Errorf("expected store dir %s, got %s", want, cfg.NATS.StoreDir)
	}
	if want := filepath.Join(userDir, "archive"); cfg.DataReferences["archive"] != want {
		t.Errorf("expected archive root %s, got %s", want, cfg.DataReferences["archive"])
	}
	if cfg.DataReferences["bucket"] != "s3://data/root" {
		t.Errorf("URL roots stay as written, got %s", cfg.DataReferences["bucket"])
	}

	// a project manifest overrides the user one, relative to the project
	if err := os.WriteFile(filepath.Join(project, ProjectConfigFile), []byte("schemas:\n  manifest: ontologies/manifest.yaml\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if want := filepath.Join(project, "ontologies", "manifest.yaml"); cfg.Schemas.Manifest != want {
		t.Errorf("expected project manifest %s, got %s", want, cfg.Schemas.Manifest)
	}
	if want := filepath.Join(userDir, "jetstream"); cfg.NATS.StoreDir != want {
		t.Errorf("user store dir should survive, got %s", cfg.NATS.StoreDir)
	}
}

func TestLoaderSkipsBrokenUserConfig(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, UserConfigDir, UserConfigFile)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("store: [not a map\n"), 0644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(nil)
	l.home = home
	l.cwd = t.TempDir()
	if _, err := l.Load(); err != nil {
		t.Fatalf("a broken user config should be skipped, got %v", err)
	}

	project := t.TempDir()
	if err := os.WriteFile(filepath.Join(project, ProjectConfigFile), []byte("store: [not a map\n"), 0644); err != nil {
		t.Fatal(err)
	}
	l.cwd = project
	if _, err := l.Load(); err == nil {
		t.Error("expected an error for a broken project config")
	}
}

func TestLoaderDefaultsWithoutFiles(t *testing.T) {
	l := NewLoader(nil)
	l.home = t.TempDir()
	l.cwd = t.TempDir()

	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Backend != BackendNATS {
		t.Errorf("expected default backend, got %s", cfg.Store.Backend)
	}
}

func TestLoaderRejectsInvalidProjectConfig(t *testing.T) {
	project := t.TempDir()
	if err := os.WriteFile(filepath.Join(project, ProjectConfigFile), []byte("store:\n  backend: postgres\n"), 0644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(nil)
	l.home = t.TempDir()
	l.cwd = project

	if _, err := l.Load(); err == nil {
		t.Error("expected validation error")
	}
}

func TestEnsureUserConfig(t *testing.T) {
	l := NewLoader(nil)
	l.home = t.TempDir()

	if err := l.EnsureUserConfig(); err != nil {
		t.Fatalf("EnsureUserConfig() error = %v", err)
	}
	path := filepath.Join(l.home, UserConfigDir, UserConfigFile)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("user config not created: %v", err)
	}
	written, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if written.Schemas.Manifest != "" {
		t.Errorf("user config should not pin a manifest, got %s", written.Schemas.Manifest)
	}
	// second call leaves the file alone
	if err := l.EnsureUserConfig(); err != nil {
		t.Fatalf("EnsureUserConfig() error = %v", err)
	}
}

func TestLoadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("nats:\n  url: nats://elsewhere:4222\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := NewLoader(nil).LoadPath(path)
	if err != nil {
		t.Fatalf("LoadPath() error = %v", err)
	}
	if cfg.NATS.Embedded {
		t.Error("expected embedded disabled by URL")
	}
}
