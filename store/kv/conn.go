package kv

import (
	"context"
	"fmt"
	"sort"

	"github.com/c360studio/semvault/statement"
	"github.com/c360studio/semvault/store"
)

// conn caches every graph it touches for the life of a transaction. Outside a
// transaction each read goes to the bucket.
type conn struct {
	repo   *Repository
	graphs map[string]*graph
	closed bool
}

func (c *conn) Begin(_ context.Context) error {
	if c.closed {
		return store.ErrClosed
	}
	if c.graphs != nil {
		return store.ErrTransactionActive
	}
	c.graphs = make(map[string]*graph)
	return nil
}

func (c *conn) IsActive() bool { return c.graphs != nil }

func (c *conn) Rollback(_ context.Context) error {
	c.graphs = nil
	return nil
}

func (c *conn) Close() error {
	c.graphs = nil
	c.closed = true
	return nil
}

// graph returns the working copy of a context.
func (c *conn) graph(ctx context.Context, name string) (*graph, error) {
	if g, ok := c.graphs[name]; ok {
		return g, nil
	}
	g, err := c.repo.load(ctx, name)
	if err != nil {
		return nil, err
	}
	if c.graphs != nil {
		c.graphs[name] = g
	}
	return g, nil
}

// names lists the stored contexts plus any created in this transaction.
func (c *conn) names(ctx context.Context, p statement.Pattern) ([]string, error) {
	if p.Context != "" {
		return []string{p.Context}, nil
	}
	stored, err := c.repo.contexts(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(stored))
	for _, name := range stored {
		seen[name] = struct{}{}
	}
	for name := range c.graphs {
		if _, ok := seen[name]; !ok {
			stored = append(stored, name)
		}
	}
	sort.Strings(stored)
	return stored, nil
}

func (c *conn) Match(ctx context.Context, p statement.Pattern) ([]statement.Statement, error) {
	if c.closed {
		return nil, store.ErrClosed
	}
	names, err := c.names(ctx, p)
	if err != nil {
		return nil, err
	}
	var out []statement.Statement
	for _, name := range names {
		g, err := c.graph(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, g.set.Match(p)...)
	}
	return out, nil
}

func (c *conn) Add(ctx context.Context, stmts ...statement.Statement) error {
	if c.closed {
		return store.ErrClosed
	}
	if c.graphs == nil {
		return store.ErrNoTransaction
	}
	for _, st := range stmts {
		if err := st.Validate(); err != nil {
			return fmt.Errorf("add statement: %w", err)
		}
		if st.Context == "" {
			return fmt.Errorf("add statement %s: no context", st)
		}
		g, err := c.graph(ctx, st.Context)
		if err != nil {
			return err
		}
		if g.set.Add(st) > 0 {
			g.dirty = true
		}
	}
	return nil
}

func (c *conn) Remove(ctx context.Context, p statement.Pattern) (int, error) {
	if c.closed {
		return 0, store.ErrClosed
	}
	if c.graphs == nil {
		return 0, store.ErrNoTransaction
	}
	names, err := c.names(ctx, p)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, name := range names {
		g, err := c.graph(ctx, name)
		if err != nil {
			return removed, err
		}
		if n := len(g.set.RemoveMatching(p)); n > 0 {
			g.dirty = true
			removed += n
		}
	}
	return removed, nil
}

// Contexts lists the non-empty graphs. Stored keys are never empty since
// save deletes a graph that lost its last statement, so only graphs cached
// by this transaction need checking.
func (c *conn) Contexts(ctx context.Context) ([]string, error) {
	if c.closed {
		return nil, store.ErrClosed
	}
	names, err := c.names(ctx, statement.Any)
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, name := range names {
		if g, ok := c.graphs[name]; ok && g.set.Len() == 0 {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

// Commit writes dirty graphs, commit points last. A failure part way
// leaves earlier graphs written; they are unreachable until a commit
// point references them.
func (c *conn) Commit(ctx context.Context) error {
	if c.closed {
		return store.ErrClosed
	}
	if c.graphs == nil {
		return store.ErrNoTransaction
	}
	defer func() { c.graphs = nil }()

	var names, points []string
	for name, g := range c.graphs {
		switch {
		case !g.dirty:
		case c.repo.isCommitPoint(name):
			points = append(points, name)
		default:
			names = append(names, name)
		}
	}
	sort.Strings(names)
	sort.Strings(points)

	// fail before touching data graphs if a commit point already moved
	for _, name := range points {
		current, err := c.repo.load(ctx, name)
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		if current.revision != c.graphs[name].revision {
			return fmt.Errorf("commit: %s: %w", name, store.ErrConflict)
		}
	}
	names = append(names, points...)

	for _, name := range names {
		if err := c.repo.save(ctx, name, c.graphs[name]); err != nil {
			c.repo.logger.Warn("Commit aborted", "context", name, "error", err)
			return fmt.Errorf("commit: %w", err)
		}
	}
	c.repo.logger.Debug("Committed graphs", "count", len(names), "commit_points", len(points))
	return nil
}
