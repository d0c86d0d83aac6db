package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Store.Backend != BackendNATS {
		t.Errorf("expected default backend nats, got %s", cfg.Store.Backend)
	}
	if !cfg.NATS.Embedded {
		t.Error("expected embedded NATS by default")
	}
	if cfg.NATS.Bucket != "SEMVAULT_STATEMENTS" {
		t.Errorf("expected default bucket SEMVAULT_STATEMENTS, got %s", cfg.NATS.Bucket)
	}
	if cfg.Policies.Dangling != "report" {
		t.Errorf("expected default dangling policy report, got %s", cfg.Policies.Dangling)
	}
	if !cfg.Policies.Verify {
		t.Error("expected verification by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "unknown backend",
			modify:  func(c *Config) { c.Store.Backend = "postgres" },
			wantErr: true,
		},
		{
			name:    "external nats without url",
			modify:  func(c *Config) { c.NATS.Embedded = false },
			wantErr: true,
		},
		{
			name:    "memory backend ignores nats settings",
			modify:  func(c *Config) { c.Store.Backend = BackendMemory; c.NATS.Embedded = false; c.NATS.Bucket = "" },
			wantErr: false,
		},
		{
			name:    "missing bucket",
			modify:  func(c *Config) { c.NATS.Bucket = "" },
			wantErr: true,
		},
		{
			name:    "missing purl prefix",
			modify:  func(c *Config) { c.Purl.Prefix = "" },
			wantErr: true,
		},
		{
			name:    "unknown dangling policy",
			modify:  func(c *Config) { c.Policies.Dangling = "shrug" },
			wantErr: true,
		},
		{
			name:    "negative debounce",
			modify:  func(c *Config) { c.Schemas.Debounce = -time.Second },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
store:
  backend: nats
nats:
  url: "nats://test:4222"
  bucket: TEST_BUCKET
schemas:
  manifest: schemas/manifest.yaml
  debounce: 2s
purl:
  prefix: "https://purl.example.org/"
  temporary_prefixes:
    - "urn:tmp:"
    - "http://temp.example.org/"
policies:
  dangling: force-clean
  verify: false
data_references:
  archive: /data/archive
metrics:
  addr: ":9090"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.NATS.URL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.NATS.URL)
	}
	if cfg.NATS.Bucket != "TEST_BUCKET" {
		t.Errorf("expected bucket TEST_BUCKET, got %s", cfg.NATS.Bucket)
	}
	if want := filepath.Join(tmpDir, "schemas", "manifest.yaml"); cfg.Schemas.Manifest != want {
		t.Errorf("expected manifest %s, got %s", want, cfg.Schemas.Manifest)
	}
	if cfg.Schemas.Debounce != 2*time.Second {
		t.Errorf("expected debounce 2s, got %v", cfg.Schemas.Debounce)
	}
	if len(cfg.Purl.TemporaryPrefixes) != 2 {
		t.Errorf("expected 2 temporary prefixes, got %d", len(cfg.Purl.TemporaryPrefixes))
	}
	if cfg.Policies.Dangling != "force-clean" {
		t.Errorf("expected dangling force-clean, got %s", cfg.Policies.Dangling)
	}
	if cfg.Policies.Verify {
		t.Error("expected verification disabled")
	}
	if cfg.DataReferences["archive"] != "/data/archive" {
		t.Errorf("expected archive root /data/archive, got %s", cfg.DataReferences["archive"])
	}
	if cfg.Metrics.Addr != ":9090" {
		t.Errorf("expected metrics addr :9090, got %s", cfg.Metrics.Addr)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("store: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	base.DataReferences = map[string]string{"archive": "/old"}

	override := DefaultConfig()
	override.NATS.URL = "nats://remote:4222"
	override.Purl.Prefix = "https://purl.example.org/"
	override.DataReferences = map[string]string{"scratch": "/tmp/scratch"}
	override.Policies.Verify = false

	base.Merge(override)

	if base.NATS.URL != "nats://remote:4222" {
		t.Errorf("expected NATS URL override, got %s", base.NATS.URL)
	}
	if base.NATS.Embedded {
		t.Error("setting a URL should disable the embedded server")
	}
	if base.Purl.Prefix != "https://purl.example.org/" {
		t.Errorf("expected purl prefix override, got %s", base.Purl.Prefix)
	}
	if base.Policies.Verify {
		t.Error("expected verification disabled by override")
	}
	if len(base.DataReferences) != 2 {
		t.Errorf("expected data references to merge, got %v", base.DataReferences)
	}
	// Bucket should remain since override carries the default
	if base.NATS.Bucket != "SEMVAULT_STATEMENTS" {
		t.Errorf("expected bucket to remain default, got %s", base.NATS.Bucket)
	}

	base.Merge(nil)
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Store.Backend = BackendMemory
	cfg.Schemas.Manifest = "/abs/schemas.yaml"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Store.Backend != BackendMemory {
		t.Errorf("expected backend memory, got %s", loaded.Store.Backend)
	}
	if loaded.Schemas.Manifest != "/abs/schemas.yaml" {
		t.Errorf("expected absolute manifest kept, got %s", loaded.Schemas.Manifest)
	}
}
