package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	pkgerrors "github.com/c360studio/semvault/errors"
	"github.com/c360studio/semvault/statement"
	"github.com/c360studio/semvault/store"
	vocab "github.com/c360studio/semvault/vocabulary/artifact"
)

// Registry holds the active resolution. It is safe for concurrent use;
// reloads swap the resolution atomically.
type Registry struct {
	mu         sync.RWMutex
	manifest   *Manifest
	resolution *Resolution
	logger     *slog.Logger
}

// NewRegistry creates a registry with no managed schemas.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	empty, _ := Resolve(&Manifest{}, logger)
	return &Registry{manifest: &Manifest{}, resolution: empty, logger: logger}
}

// Load resolves m and makes it active. On error the previous resolution stays.
func (r *Registry) Load(m *Manifest) (*Resolution, error) {
	res, err := Resolve(m, r.logger)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.manifest = m
	r.resolution = res
	r.mu.Unlock()

	r.logger.Info("Schema registry loaded", "ontologies", len(res.ontologies), "versions", len(res.order))
	return res, nil
}

// LoadFile loads a YAML manifest from path.
func (r *Registry) LoadFile(path string) (*Resolution, error) {
	m, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}
	return r.Load(m)
}

// LoadFromStore reads the schema management graph of a repository.
func (r *Registry) LoadFromStore(ctx context.Context, repo store.Repository) (*Resolution, error) {
	conn, err := repo.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	stmts, err := conn.Match(ctx, statement.InContext(vocab.SchemaManagementGraph))
	if err != nil {
		return nil, fmt.Errorf("read schema records: %w", err)
	}
	return r.Load(ManifestFromStatements(stmts))
}

// Resolution returns the active resolution.
func (r *Registry) Resolution() *Resolution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolution
}

// Manifest returns the manifest behind the active resolution.
func (r *Registry) Manifest() *Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.manifest
}

// PinVersion returns the concrete schema version an import target pins to.
func (r *Registry) PinVersion(target string) (string, error) {
	if v, ok := r.Resolution().PinVersion(target); ok {
		return v, nil
	}
	return "", pkgerrors.Validationf("pin schema import", pkgerrors.ErrUnmanagedSchema, "%s", target)
}
