package artifact

import (
	"context"
	"fmt"

	pkgerrors "github.com/c360studio/semvault/errors"
	"github.com/c360studio/semvault/statement"
	"github.com/c360studio/semvault/store"
)

// read runs fn on a connection that sees only committed state.
func (m *Manager) read(ctx context.Context, fn func(conn store.Connection) error) error {
	conn, err := m.permanent.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connect permanent store: %w", err)
	}
	defer conn.Close()
	return fn(conn)
}

func (m *Manager) current(ctx context.Context, conn store.Connection, op, ont string) (*Artifact, error) {
	if ont == "" {
		return nil, pkgerrors.Validationf(op, pkgerrors.ErrEmptyOntology, "")
	}
	a, err := readArtifact(ctx, conn, ont)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, pkgerrors.Statef(op, pkgerrors.ErrUnmanagedArtifact, "%s", ont)
	}
	return a, nil
}

// Artifact returns the record of the current version of ont.
func (m *Manager) Artifact(ctx context.Context, ont string) (*Artifact, error) {
	var a *Artifact
	err := m.read(ctx, func(conn store.Connection) error {
		var err error
		a, err = m.current(ctx, conn, "artifact", ont)
		return err
	})
	return a, err
}

// Versions lists the retained versions of ont, oldest first.
func (m *Manager) Versions(ctx context.Context, ont string) ([]string, error) {
	var versions []string
	err := m.read(ctx, func(conn store.Connection) error {
		if _, err := m.current(ctx, conn, "versions", ont); err != nil {
			return err
		}
		var err error
		versions, err = versionsOf(ctx, conn, ont)
		return err
	})
	return versions, err
}

// Export returns the statements of the current version, followed by its
// inferred statements when includeInferred is set.
func (m *Manager) Export(ctx context.Context, ont string, includeInferred bool) ([]statement.Statement, error) {
	var out []statement.Statement
	err := m.read(ctx, func(conn store.Connection) error {
		a, err := m.current(ctx, conn, "export", ont)
		if err != nil {
			return err
		}
		out, err = conn.Match(ctx, statement.InContext(a.VersionID))
		if err != nil {
			return fmt.Errorf("export %s: %w", a.VersionID, err)
		}
		if includeInferred && a.InferredVersionID != "" {
			inferred, err := conn.Match(ctx, statement.InContext(a.InferredVersionID))
			if err != nil {
				return fmt.Errorf("export %s: %w", a.InferredVersionID, err)
			}
			out = append(out, inferred...)
		}
		return nil
	})
	return out, err
}

// SchemaImports returns the schema versions the current version is pinned
// to, ordered by the schema resolution.
func (m *Manager) SchemaImports(ctx context.Context, ont string) ([]string, error) {
	a, err := m.Artifact(ctx, ont)
	if err != nil {
		return nil, err
	}
	return m.schemas.Resolution().SortByOrder(a.SchemaImports), nil
}

// List returns the current version of every managed artifact, ordered by
// ontology id.
func (m *Manager) List(ctx context.Context) ([]*Artifact, error) {
	var out []*Artifact
	err := m.read(ctx, func(conn store.Connection) error {
		ids, err := managedOntologies(ctx, conn)
		if err != nil {
			return err
		}
		for _, id := range ids {
			a, err := readArtifact(ctx, conn, id)
			if err != nil {
				return err
			}
			if a != nil {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

// ListPublished returns the artifacts whose current version is published.
func (m *Manager) ListPublished(ctx context.Context) ([]*Artifact, error) {
	return m.listByStatus(ctx, StatusPublished)
}

// ListUnpublished returns the artifacts whose current version is not published.
func (m *Manager) ListUnpublished(ctx context.Context) ([]*Artifact, error) {
	return m.listByStatus(ctx, StatusUnpublished)
}

func (m *Manager) listByStatus(ctx context.Context, s Status) ([]*Artifact, error) {
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Artifact
	for _, a := range all {
		if a.Status == s {
			out = append(out, a)
		}
	}
	return out, nil
}
