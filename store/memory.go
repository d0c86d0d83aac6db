package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/c360studio/semvault/statement"
)

// MemoryRepository is an in-process repository. It backs staging areas and tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	contexts map[string]*statement.Set
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{contexts: make(map[string]*statement.Set)}
}

// Connect opens a connection.
func (r *MemoryRepository) Connect(_ context.Context) (Connection, error) {
	return &memoryConn{repo: r}, nil
}

// Size returns the number of committed statements.
func (r *MemoryRepository) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, set := range r.contexts {
		n += set.Len()
	}
	return n
}

func (r *MemoryRepository) contains(st statement.Statement) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.contexts[st.Context]
	return ok && set.Contains(st)
}

// match reads committed statements; contexts are visited in sorted order.
func (r *MemoryRepository) match(p statement.Pattern) []statement.Statement {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p.Context != "" {
		set, ok := r.contexts[p.Context]
		if !ok {
			return nil
		}
		return set.Match(p)
	}
	var out []statement.Statement
	for _, name := range r.sortedContexts() {
		out = append(out, r.contexts[name].Match(p)...)
	}
	return out
}

func (r *MemoryRepository) sortedContexts() []string {
	names := make([]string, 0, len(r.contexts))
	for name := range r.contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *MemoryRepository) apply(tx *memoryTx) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for st := range tx.removed {
		if set, ok := r.contexts[st.Context]; ok {
			set.Remove(st)
			if set.Len() == 0 {
				delete(r.contexts, st.Context)
			}
		}
	}
	for _, st := range tx.added.All() {
		set, ok := r.contexts[st.Context]
		if !ok {
			set = statement.NewSet()
			r.contexts[st.Context] = set
		}
		set.Add(st)
	}
}

// memoryTx is the uncommitted overlay of a connection.
type memoryTx struct {
	added   *statement.Set
	removed map[statement.Statement]struct{}
}

type memoryConn struct {
	repo   *MemoryRepository
	tx     *memoryTx
	closed bool
}

func (c *memoryConn) Begin(_ context.Context) error {
	if c.closed {
		return ErrClosed
	}
	if c.tx != nil {
		return ErrTransactionActive
	}
	c.tx = &memoryTx{added: statement.NewSet(), removed: make(map[statement.Statement]struct{})}
	return nil
}

func (c *memoryConn) IsActive() bool { return c.tx != nil }

func (c *memoryConn) Commit(_ context.Context) error {
	if c.closed {
		return ErrClosed
	}
	if c.tx == nil {
		return ErrNoTransaction
	}
	c.repo.apply(c.tx)
	c.tx = nil
	return nil
}

func (c *memoryConn) Rollback(_ context.Context) error {
	c.tx = nil
	return nil
}

func (c *memoryConn) Add(_ context.Context, stmts ...statement.Statement) error {
	if c.closed {
		return ErrClosed
	}
	if c.tx == nil {
		return ErrNoTransaction
	}
	for _, st := range stmts {
		if err := st.Validate(); err != nil {
			return fmt.Errorf("add statement: %w", err)
		}
	}
	for _, st := range stmts {
		delete(c.tx.removed, st)
		if !c.repo.contains(st) {
			c.tx.added.Add(st)
		}
	}
	return nil
}

func (c *memoryConn) Remove(ctx context.Context, p statement.Pattern) (int, error) {
	if c.closed {
		return 0, ErrClosed
	}
	if c.tx == nil {
		return 0, ErrNoTransaction
	}
	matched, err := c.Match(ctx, p)
	if err != nil {
		return 0, err
	}
	for _, st := range matched {
		if c.tx.added.Contains(st) {
			c.tx.added.Remove(st)
			continue
		}
		c.tx.removed[st] = struct{}{}
	}
	return len(matched), nil
}

func (c *memoryConn) Match(_ context.Context, p statement.Pattern) ([]statement.Statement, error) {
	if c.closed {
		return nil, ErrClosed
	}
	base := c.repo.match(p)
	if c.tx == nil {
		return base, nil
	}
	out := make([]statement.Statement, 0, len(base))
	for _, st := range base {
		if _, gone := c.tx.removed[st]; !gone {
			out = append(out, st)
		}
	}
	return append(out, c.tx.added.Match(p)...), nil
}

func (c *memoryConn) Contexts(ctx context.Context) ([]string, error) {
	stmts, err := c.Match(ctx, statement.Any)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	for _, st := range stmts {
		if _, ok := seen[st.Context]; ok {
			continue
		}
		seen[st.Context] = struct{}{}
		out = append(out, st.Context)
	}
	sort.Strings(out)
	return out, nil
}

func (c *memoryConn) Close() error {
	c.tx = nil
	c.closed = true
	return nil
}
