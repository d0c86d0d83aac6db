package artifact

import (
	"context"
	"fmt"
	"time"

	"github.com/c360studio/semvault/connectivity"
	"github.com/c360studio/semvault/datareference"
	pkgerrors "github.com/c360studio/semvault/errors"
	"github.com/c360studio/semvault/statement"
	"github.com/c360studio/semvault/store"
	vocab "github.com/c360studio/semvault/vocabulary/artifact"
)

// AttachDataReferences adds data references to objects of the current
// version. Each reference is linked from its Parent.
func (m *Manager) AttachDataReferences(ctx context.Context, ont, version string, refs []datareference.Reference, verify VerifyPolicy) (*Artifact, error) {
	const op = "attach data references"
	if len(refs) == 0 {
		return nil, pkgerrors.Validationf(op, pkgerrors.ErrUnsupportedRequest, "no data references given")
	}

	var stmts []statement.Statement
	for _, ref := range refs {
		if ref.ID == "" || ref.Parent == "" {
			return nil, pkgerrors.Validationf(op, pkgerrors.ErrInvalidStatement, "data reference needs an id and a parent")
		}
		stmts = append(stmts,
			statement.NewIRIs(ref.Parent, vocab.HasDataReference, ref.ID),
			statement.NewIRIs(ref.ID, vocab.RDFType, vocab.DataReference),
		)
		if ref.Alias != "" {
			stmts = append(stmts, statement.New(statement.NewIRI(ref.ID), vocab.HasAlias, statement.NewLiteral(ref.Alias)))
		}
		if ref.Location != "" {
			stmts = append(stmts, statement.New(statement.NewIRI(ref.ID), vocab.HasLocation, statement.NewLiteral(ref.Location)))
		}
	}

	return m.Update(ctx, UpdateRequest{
		OntologyID: ont,
		VersionID:  version,
		Statements: stmts,
		Policy:     PolicyMerge,
		Dangling:   connectivity.PolicyReport,
		Verify:     verify,
	})
}

// DeleteObject removes an object from the current version together with
// every link pointing at it. With cascade, objects left unreachable are
// removed too; without it they fail the update.
func (m *Manager) DeleteObject(ctx context.Context, ont, version, object string, cascade bool) (*Artifact, error) {
	const op = "delete object"
	switch {
	case ont == "":
		return nil, pkgerrors.Validationf(op, pkgerrors.ErrEmptyOntology, "")
	case version == "" || object == "":
		return nil, pkgerrors.Validationf(op, pkgerrors.ErrUnsupportedRequest, "a version and an object are required")
	}
	if object == ont {
		return nil, pkgerrors.Validationf(op, pkgerrors.ErrUnsupportedRequest, "cannot delete the artifact root %s", object)
	}

	var stmts []statement.Statement
	err := m.read(ctx, func(conn store.Connection) error {
		var err error
		stmts, err = conn.Match(ctx, statement.InContext(version))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", version, err)
	}

	target := statement.NewIRI(object)
	found := false
	referrers := make(map[string]bool)
	for _, st := range stmts {
		if st.Subject == target {
			found = true
		}
		if st.Object == target {
			found = true
			if st.Subject.IsIRI() {
				referrers[st.Subject.Value] = true
			}
		}
	}
	if !found {
		// an unknown version reads as empty; let the update report it
		if _, err := m.Artifact(ctx, ont); err != nil {
			return nil, err
		}
		return nil, pkgerrors.Validationf(op, pkgerrors.ErrUnsupportedRequest, "%s is not part of %s", object, version)
	}

	// referrers are rewritten without their links to the object
	targets := []string{object}
	var delta []statement.Statement
	for _, st := range stmts {
		if !st.Subject.IsIRI() || !referrers[st.Subject.Value] || st.Object == target {
			continue
		}
		delta = append(delta, st)
	}
	for s := range referrers {
		targets = append(targets, s)
	}

	policy := connectivity.PolicyReport
	if cascade {
		policy = connectivity.PolicyForceClean
	}
	return m.Update(ctx, UpdateRequest{
		OntologyID: ont,
		VersionID:  version,
		Statements: delta,
		Policy:     PolicyReplaceExisting,
		Targets:    targets,
		Dangling:   policy,
		Verify:     VerifyPolicyDoNotVerify,
	})
}

// UpdateSchemaImports re-pins the imports of the current version to the
// current schema versions. When every import is already current the
// version is returned unchanged.
func (m *Manager) UpdateSchemaImports(ctx context.Context, ont, version string, verify VerifyPolicy) (a *Artifact, err error) {
	const op = "update schema imports"
	defer m.metrics.observe(op, time.Now(), &err)
	if ont == "" {
		return nil, pkgerrors.Validationf(op, pkgerrors.ErrEmptyOntology, "")
	}

	current, err := m.Artifact(ctx, ont)
	if err != nil {
		return nil, err
	}
	res := m.schemas.Resolution()
	stale := false
	for _, imp := range current.SchemaImports {
		if latest, ok := res.ResolveImport(imp); !ok || latest != imp {
			stale = true
			break
		}
	}
	if !stale && version == current.VersionID {
		return current, nil
	}

	a, err = m.revise(ctx, op, ont, version, revision{
		dangling: connectivity.PolicyIgnore,
		verify:   verify,
		mutate: func(ctx context.Context, t *txn, _ *Artifact) error {
			return t.repointImports(ctx, ont)
		},
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("Updated schema imports", "ontology", ont, "version", a.VersionID, "imports", a.SchemaImports)
	return a, nil
}

// repointImports replaces each pinned import with its ontology id so that
// pinning picks the ontology's current version.
func (t *txn) repointImports(ctx context.Context, ont string) error {
	res := t.m.schemas.Resolution()
	pattern := statement.Pattern{Subject: statement.NewIRI(ont), Predicate: vocab.OWLImports, Context: t.context}
	stmts, err := t.staging.Match(ctx, pattern)
	if err != nil {
		return fmt.Errorf("read imports: %w", err)
	}
	for _, st := range stmts {
		if !st.Object.IsIRI() {
			continue
		}
		owner, ok := res.OntologyOf(st.Object.Value)
		if !ok || owner == st.Object.Value {
			continue
		}
		exact := statement.Pattern{Subject: st.Subject, Predicate: st.Predicate, Object: st.Object, Context: st.Context}
		if _, err := t.staging.Remove(ctx, exact); err != nil {
			return fmt.Errorf("repoint import %s: %w", st.Object.Value, err)
		}
		if err := t.staging.Add(ctx, statement.NewIRIs(ont, vocab.OWLImports, owner).WithContext(t.context)); err != nil {
			return fmt.Errorf("repoint import %s: %w", st.Object.Value, err)
		}
	}
	return nil
}
