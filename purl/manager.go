package purl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/c360studio/semvault/statement"
	"github.com/c360studio/semvault/store"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithProcessor registers a processor at construction.
func WithProcessor(p Processor) Option {
	return func(m *Manager) { m.processors = append(m.processors, p) }
}

// Manager holds processors in registration order. The first processor that
// handles an identifier translates it.
type Manager struct {
	mu         sync.RWMutex
	processors []Processor
	logger     *slog.Logger
}

// NewManager creates a manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register appends a processor.
func (m *Manager) Register(p Processor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processors = append(m.processors, p)
}

// ProcessorFor returns the first processor handling id, or nil.
func (m *Manager) ProcessorFor(id string) Processor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.processors {
		if p.CanHandle(id) {
			return p
		}
	}
	return nil
}

// IsTemporary reports whether any processor handles id.
func (m *Manager) IsTemporary(id string) bool {
	return m.ProcessorFor(id) != nil
}

// ExtractStatements mints one mapping per distinct temporary IRI found in
// subject or object position, in first-seen order.
func (m *Manager) ExtractStatements(stmts []statement.Statement) ([]Mapping, error) {
	seen := make(map[string]struct{})
	var mappings []Mapping
	visit := func(t statement.Term) error {
		if !t.IsIRI() {
			return nil
		}
		if _, ok := seen[t.Value]; ok {
			return nil
		}
		seen[t.Value] = struct{}{}
		p := m.ProcessorFor(t.Value)
		if p == nil {
			return nil
		}
		mapping, err := p.Translate(t.Value)
		if err != nil {
			return fmt.Errorf("translate %s: %w", t.Value, err)
		}
		mappings = append(mappings, mapping)
		return nil
	}
	for _, st := range stmts {
		if err := visit(st.Subject); err != nil {
			return nil, err
		}
		if err := visit(st.Object); err != nil {
			return nil, err
		}
	}
	return mappings, nil
}

// Extract is ExtractStatements over the given contexts of g; all contexts
// when none are given.
func (m *Manager) Extract(ctx context.Context, g store.Graph, contexts ...string) ([]Mapping, error) {
	stmts, err := read(ctx, g, contexts)
	if err != nil {
		return nil, err
	}
	return m.ExtractStatements(stmts)
}

// ConvertStatements returns stmts with mapped subjects and objects replaced.
// Predicates, literals and contexts are left untouched.
func ConvertStatements(mappings []Mapping, stmts []statement.Statement) []statement.Statement {
	lookup := index(mappings)
	out := make([]statement.Statement, len(stmts))
	for i, st := range stmts {
		out[i], _ = rewrite(lookup, st)
	}
	return out
}

// Convert rewrites the given contexts of g in place and returns how many
// statements changed.
func (m *Manager) Convert(ctx context.Context, g store.Graph, mappings []Mapping, contexts ...string) (int, error) {
	if len(mappings) == 0 {
		return 0, nil
	}
	stmts, err := read(ctx, g, contexts)
	if err != nil {
		return 0, err
	}

	lookup := index(mappings)
	var replaced []statement.Statement
	for _, st := range stmts {
		next, changed := rewrite(lookup, st)
		if !changed {
			continue
		}
		exact := statement.Pattern{Subject: st.Subject, Predicate: st.Predicate, Object: st.Object, Context: st.Context}
		if _, err := g.Remove(ctx, exact); err != nil {
			return 0, fmt.Errorf("remove placeholder statement: %w", err)
		}
		replaced = append(replaced, next)
	}
	if len(replaced) > 0 {
		if err := g.Add(ctx, replaced...); err != nil {
			return 0, fmt.Errorf("add converted statements: %w", err)
		}
	}
	m.logger.Debug("Converted placeholder identifiers", "mappings", len(mappings), "statements", len(replaced))
	return len(replaced), nil
}

func read(ctx context.Context, g store.Graph, contexts []string) ([]statement.Statement, error) {
	if len(contexts) == 0 {
		contexts = []string{""}
	}
	var stmts []statement.Statement
	for _, c := range contexts {
		found, err := g.Match(ctx, statement.InContext(c))
		if err != nil {
			return nil, fmt.Errorf("read statements: %w", err)
		}
		stmts = append(stmts, found...)
	}
	return stmts, nil
}

func index(mappings []Mapping) map[string]string {
	lookup := make(map[string]string, len(mappings))
	for _, mp := range mappings {
		lookup[mp.Temporary] = mp.Permanent
	}
	return lookup
}

func rewrite(lookup map[string]string, st statement.Statement) (statement.Statement, bool) {
	changed := false
	if st.Subject.IsIRI() {
		if perm, ok := lookup[st.Subject.Value]; ok {
			st.Subject = statement.NewIRI(perm)
			changed = true
		}
	}
	if st.Object.IsIRI() {
		if perm, ok := lookup[st.Object.Value]; ok {
			st.Object = statement.NewIRI(perm)
			changed = true
		}
	}
	return st, changed
}

// Filter returns the mappings whose temporary identifier is in ids.
func Filter(mappings []Mapping, ids []string) []Mapping {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []Mapping
	for _, mp := range mappings {
		if _, ok := want[mp.Temporary]; ok {
			out = append(out, mp)
		}
	}
	return out
}
