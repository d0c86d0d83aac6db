// Package artifact manages the lifecycle of versioned artifacts: loading,
// updating, publishing, deleting and exporting them.
//
// Every operation runs as a two-store saga. Statements are staged and
// validated in a throwaway staging repository; the permanent repository
// is written in one transaction whose commit is the only durable step.
// Failures at any stage roll both back, and cached reasoning state is
// released on every exit path.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/semvault/connectivity"
	"github.com/c360studio/semvault/datareference"
	pkgerrors "github.com/c360studio/semvault/errors"
	"github.com/c360studio/semvault/purl"
	"github.com/c360studio/semvault/reasoner"
	"github.com/c360studio/semvault/schema"
	"github.com/c360studio/semvault/store"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithEngine sets the reasoning engine. Defaults to a passthrough engine.
func WithEngine(e reasoner.Engine) Option {
	return func(m *Manager) { m.engine = e }
}

// WithPurls sets the placeholder identifier resolver.
func WithPurls(p *purl.Manager) Option {
	return func(m *Manager) { m.purls = p }
}

// WithVerifiers sets the data reference verifiers.
func WithVerifiers(r *datareference.Registry) Option {
	return func(m *Manager) { m.verifiers = r }
}

// WithMetrics enables lifecycle metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithValidator sets the connectivity validator.
func WithValidator(v *connectivity.Validator) Option {
	return func(m *Manager) { m.validator = v }
}

// WithStaging sets the factory for per-operation staging repositories.
func WithStaging(newRepo func() store.Repository) Option {
	return func(m *Manager) { m.newStaging = newRepo }
}

// Manager runs artifact lifecycle operations against a permanent repository.
type Manager struct {
	permanent  store.Repository
	newStaging func() store.Repository
	schemas    *schema.Registry
	purls      *purl.Manager
	validator  *connectivity.Validator
	engine     reasoner.Engine
	verifiers  *datareference.Registry
	cache      *ReasoningCache
	locks      *keyedMutex
	metrics    *Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Manager over the permanent repository. Schema imports are
// pinned against schemas.
func New(permanent store.Repository, schemas *schema.Registry, opts ...Option) (*Manager, error) {
	if permanent == nil {
		return nil, fmt.Errorf("permanent repository is required")
	}
	if schemas == nil {
		return nil, fmt.Errorf("schema registry is required")
	}
	m := &Manager{
		permanent:  permanent,
		newStaging: func() store.Repository { return store.NewMemoryRepository() },
		schemas:    schemas,
		locks:      newKeyedMutex(),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.engine == nil {
		m.engine = reasoner.NewPassthrough()
	}
	if m.purls == nil {
		m.purls = purl.NewManager(purl.WithLogger(m.logger))
	}
	if m.validator == nil {
		m.validator = connectivity.NewValidator(connectivity.WithLogger(m.logger))
	}
	if m.verifiers == nil {
		m.verifiers = datareference.NewRegistry(m.logger)
	}
	m.cache = NewReasoningCache(m.engine, m.logger)
	return m, nil
}

// Schemas returns the schema registry imports are pinned against.
func (m *Manager) Schemas() *schema.Registry {
	return m.schemas
}

// txn is the saga of one operation: a staging connection that is always
// discarded and a permanent connection holding the commit point.
type txn struct {
	m       *Manager
	op      string
	staging store.Connection
	context string
	perm    store.Connection

	// cache keys evicted on close
	release []string
}

// begin opens the permanent transaction and, when staged, a fresh staging
// repository with its own context.
func (m *Manager) begin(ctx context.Context, op string, staged bool) (*txn, error) {
	t := &txn{m: m, op: op}

	perm, err := m.permanent.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect permanent store: %w", err)
	}
	t.perm = perm
	if err := perm.Begin(ctx); err != nil {
		t.close(ctx)
		return nil, fmt.Errorf("begin permanent transaction: %w", err)
	}

	if !staged {
		return t, nil
	}
	staging, err := m.newStaging().Connect(ctx)
	if err != nil {
		t.close(ctx)
		return nil, fmt.Errorf("connect staging store: %w", err)
	}
	t.staging = staging
	if err := staging.Begin(ctx); err != nil {
		t.close(ctx)
		return nil, fmt.Errorf("begin staging transaction: %w", err)
	}
	t.context = "urn:uuid:" + uuid.NewString()
	return t, nil
}

// close rolls back whatever was not committed, releases both connections
// and evicts the reasoning state the operation cached.
func (t *txn) close(ctx context.Context) {
	for _, conn := range []store.Connection{t.staging, t.perm} {
		if conn == nil {
			continue
		}
		if conn.IsActive() {
			if err := conn.Rollback(ctx); err != nil {
				t.m.logger.Warn("Rollback failed", "op", t.op, "error", err)
			}
		}
		if err := conn.Close(); err != nil {
			t.m.logger.Warn("Close failed", "op", t.op, "error", err)
		}
	}
	for _, id := range t.release {
		t.m.cache.Remove(id)
	}
	t.m.metrics.cached(t.m.cache.Len())
}

// commit makes the permanent transaction durable. A lost compare-and-swap
// means another writer got there first.
func (t *txn) commit(ctx context.Context, what string) error {
	if err := t.perm.Commit(ctx); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return pkgerrors.Concurrencyf(t.op, err, "commit %s", what)
		}
		return fmt.Errorf("commit %s: %w", what, err)
	}
	return nil
}
