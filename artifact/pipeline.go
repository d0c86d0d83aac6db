package artifact

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/c360studio/semvault/connectivity"
	"github.com/c360studio/semvault/datareference"
	pkgerrors "github.com/c360studio/semvault/errors"
	"github.com/c360studio/semvault/purl"
	"github.com/c360studio/semvault/statement"
	vocab "github.com/c360studio/semvault/vocabulary/artifact"
)

// stage validates stmts and writes them into the staging context.
func (t *txn) stage(ctx context.Context, stmts []statement.Statement) error {
	staged := statement.WithContext(stmts, t.context)
	for _, st := range staged {
		if err := st.Validate(); err != nil {
			return pkgerrors.Validationf(t.op, pkgerrors.ErrInvalidStatement, "%v", err)
		}
	}
	if err := t.staging.Add(ctx, staged...); err != nil {
		return fmt.Errorf("stage statements: %w", err)
	}
	return nil
}

// stripPublicationStatus drops caller-supplied publication statements.
// Publication is only ever set by Publish.
func (t *txn) stripPublicationStatus(ctx context.Context) error {
	n, err := t.staging.Remove(ctx, statement.Pattern{Predicate: vocab.HasPublicationStatus, Context: t.context})
	if err != nil {
		return fmt.Errorf("strip publication status: %w", err)
	}
	if n > 0 {
		t.m.logger.Debug("Dropped submitted publication status", "op", t.op, "statements", n)
	}
	return nil
}

// resolvePlaceholders rewrites temporary identifiers in staging.
func (t *txn) resolvePlaceholders(ctx context.Context) ([]purl.Mapping, error) {
	mappings, err := t.m.purls.Extract(ctx, t.staging, t.context)
	if err != nil {
		return nil, fmt.Errorf("extract placeholders: %w", err)
	}
	if _, err := t.m.purls.Convert(ctx, t.staging, mappings, t.context); err != nil {
		return nil, fmt.Errorf("convert placeholders: %w", err)
	}
	t.m.metrics.placeholders(len(mappings))
	return mappings, nil
}

// detectOntology returns the subject typed owl:Ontology. When several are
// present the first wins.
func (t *txn) detectOntology(ctx context.Context) (string, error) {
	stmts, err := t.staging.Match(ctx, statement.Pattern{
		Predicate: vocab.RDFType,
		Object:    statement.NewIRI(vocab.OWLOntology),
		Context:   t.context,
	})
	if err != nil {
		return "", fmt.Errorf("detect ontology: %w", err)
	}
	ids := statement.Subjects(stmts)
	if len(ids) == 0 {
		return "", pkgerrors.Validationf(t.op, pkgerrors.ErrEmptyOntology, "")
	}
	if len(ids) > 1 {
		t.m.logger.Warn("Several ontology identifiers found, using the first", "op", t.op, "ids", ids)
	}
	return ids[0], nil
}

// setVersion replaces the ontology's version IRI in staging.
func (t *txn) setVersion(ctx context.Context, ont, version string) error {
	if _, err := t.staging.Remove(ctx, statement.Pattern{
		Subject:   statement.NewIRI(ont),
		Predicate: vocab.OWLVersionIRI,
		Context:   t.context,
	}); err != nil {
		return fmt.Errorf("clear version: %w", err)
	}
	if err := t.staging.Add(ctx, statement.NewIRIs(ont, vocab.OWLVersionIRI, version).WithContext(t.context)); err != nil {
		return fmt.Errorf("set version: %w", err)
	}
	return nil
}

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// backfillTimestamps replaces epoch-zero creation and modification times
// with the current time.
func (t *txn) backfillTimestamps(ctx context.Context) error {
	now := t.m.now().UTC().Format(time.RFC3339)
	replaced := 0
	for _, pred := range []string{vocab.CreatedAt, vocab.LastModified} {
		stmts, err := t.staging.Match(ctx, statement.Pattern{Predicate: pred, Context: t.context})
		if err != nil {
			return fmt.Errorf("read timestamps: %w", err)
		}
		for _, st := range stmts {
			if !st.Object.IsLiteral() {
				continue
			}
			ts, ok := parseTimestamp(st.Object.Value)
			if !ok || ts.Year() != 1970 {
				continue
			}
			exact := statement.Pattern{Subject: st.Subject, Predicate: st.Predicate, Object: st.Object, Context: st.Context}
			if _, err := t.staging.Remove(ctx, exact); err != nil {
				return fmt.Errorf("replace timestamp: %w", err)
			}
			datatype := st.Object.Datatype
			if datatype == "" {
				datatype = vocab.XSDDateTime
			}
			st.Object = statement.NewTypedLiteral(now, datatype)
			if err := t.staging.Add(ctx, st); err != nil {
				return fmt.Errorf("replace timestamp: %w", err)
			}
			replaced++
		}
	}
	if replaced > 0 {
		t.m.logger.Debug("Backfilled timestamps", "op", t.op, "count", replaced)
	}
	return nil
}

// checkConnectivity enforces policy rooted at the ontology id. Under
// force-clean it returns the nodes that were removed.
func (t *txn) checkConnectivity(ctx context.Context, root string, policy connectivity.Policy) ([]string, error) {
	dangling, err := t.m.validator.Apply(ctx, t.staging, root, t.context, policy)
	if err != nil {
		if e, ok := pkgerrors.As(err); ok {
			e.Op = t.op
			return nil, e
		}
		return nil, fmt.Errorf("check connectivity: %w", err)
	}
	t.m.metrics.danglingRemoved(len(dangling))
	return dangling, nil
}

// pinImports rewrites each owl:imports of ont to a concrete schema version
// and returns the pinned versions in resolution order.
func (t *txn) pinImports(ctx context.Context, ont string) ([]string, error) {
	stmts, err := t.staging.Match(ctx, statement.Pattern{
		Subject:   statement.NewIRI(ont),
		Predicate: vocab.OWLImports,
		Context:   t.context,
	})
	if err != nil {
		return nil, fmt.Errorf("read imports: %w", err)
	}

	var pinned, unresolved []string
	seen := make(map[string]bool)
	for _, st := range stmts {
		if !st.Object.IsIRI() {
			continue
		}
		target := st.Object.Value
		version, err := t.m.schemas.PinVersion(target)
		if err != nil {
			if !pkgerrors.IsValidation(err) {
				return nil, err
			}
			unresolved = append(unresolved, target)
			continue
		}
		if version != target {
			exact := statement.Pattern{Subject: st.Subject, Predicate: st.Predicate, Object: st.Object, Context: st.Context}
			if _, err := t.staging.Remove(ctx, exact); err != nil {
				return nil, fmt.Errorf("pin import %s: %w", target, err)
			}
			if err := t.staging.Add(ctx, statement.NewIRIs(ont, vocab.OWLImports, version).WithContext(t.context)); err != nil {
				return nil, fmt.Errorf("pin import %s: %w", target, err)
			}
		}
		if !seen[version] {
			seen[version] = true
			pinned = append(pinned, version)
		}
	}
	if len(unresolved) > 0 {
		return nil, pkgerrors.Validationf(t.op, pkgerrors.ErrUnmanagedSchema, "%s", strings.Join(unresolved, ", "))
	}
	return t.m.schemas.Resolution().SortByOrder(pinned), nil
}

// snapshot returns the staged statements placed in the version context.
func (t *txn) snapshot(ctx context.Context, version string) ([]statement.Statement, error) {
	stmts, err := t.staging.Match(ctx, statement.InContext(t.context))
	if err != nil {
		return nil, fmt.Errorf("read staged statements: %w", err)
	}
	return statement.WithContext(stmts, version), nil
}

// importStatements reads the pinned schema versions and everything they
// import from the permanent store, dependencies first.
func (t *txn) importStatements(ctx context.Context, imports []string) ([]statement.Statement, error) {
	res := t.m.schemas.Resolution()
	versions := res.SortByOrder(append(res.OrderedImportsFor(imports...), imports...))
	var out []statement.Statement
	for _, v := range versions {
		stmts, err := t.perm.Match(ctx, statement.InContext(v))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", v, err)
		}
		out = append(out, stmts...)
	}
	return out, nil
}

// reason loads the version into the engine, checks profile and
// consistency and returns the inferred statements in the inferred context.
func (t *txn) reason(ctx context.Context, version string, asserted []statement.Statement, imports []string) ([]statement.Statement, error) {
	importStmts, err := t.importStatements(ctx, imports)
	if err != nil {
		return nil, err
	}

	engine := t.m.engine
	o, err := engine.Load(ctx, version, asserted, importStmts)
	if err != nil {
		return nil, pkgerrors.Consistencyf(t.op, err, "load %s into reasoner", version)
	}
	t.m.cache.Put(version, o)
	t.release = append(t.release, version)
	t.m.metrics.cached(t.m.cache.Len())

	report, err := engine.CheckProfile(ctx, o)
	if err != nil {
		return nil, pkgerrors.Consistencyf(t.op, err, "check profile of %s", version)
	}
	if !report.InProfile {
		e := pkgerrors.Consistencyf(t.op, pkgerrors.ErrNotInProfile, "%s violates %s", version, report.Profile)
		e.Explanation = strings.Join(report.Violations, "\n")
		return nil, e
	}

	r, err := engine.CreateReasoner(ctx, o)
	if err != nil {
		return nil, pkgerrors.Consistencyf(t.op, err, "create reasoner for %s", version)
	}
	ok, err := r.IsConsistent(ctx)
	if err != nil {
		return nil, pkgerrors.Consistencyf(t.op, err, "check consistency of %s", version)
	}
	if !ok {
		e := pkgerrors.Consistencyf(t.op, pkgerrors.ErrInconsistent, "%s", version)
		e.Explanation = r.Explanation()
		return nil, e
	}

	inferredContext := vocab.InferredContext(version)
	inferred, err := engine.Infer(ctx, o, inferredContext)
	if err != nil {
		return nil, pkgerrors.Consistencyf(t.op, err, "infer %s", version)
	}
	return statement.WithContext(inferred, inferredContext), nil
}

// verifyReferences checks every data reference of the new version.
func (t *txn) verifyReferences(ctx context.Context, stmts []statement.Statement, policy VerifyPolicy) error {
	if policy == VerifyPolicyDoNotVerify {
		return nil
	}
	refs := datareference.Extract(stmts)
	if len(refs) == 0 {
		return nil
	}
	if err := t.m.verifiers.VerifyAll(ctx, refs); err != nil {
		return pkgerrors.Validationf(t.op, fmt.Errorf("%w: %w", pkgerrors.ErrDataReference, err), "")
	}
	return nil
}

func topObject(stmts []statement.Statement, ont string) string {
	for _, st := range stmts {
		if st.Subject.Value == ont && st.Predicate == vocab.HasTopObject && st.Object.IsIRI() {
			return st.Object.Value
		}
	}
	return ""
}

// complete runs the shared tail of load and update: pin imports, reason,
// verify, persist and commit.
func (t *txn) complete(ctx context.Context, ont, version string, verify VerifyPolicy) (*Artifact, error) {
	imports, err := t.pinImports(ctx, ont)
	if err != nil {
		return nil, err
	}
	asserted, err := t.snapshot(ctx, version)
	if err != nil {
		return nil, err
	}
	inferred, err := t.reason(ctx, version, asserted, imports)
	if err != nil {
		return nil, err
	}
	all := make([]statement.Statement, 0, len(asserted)+len(inferred))
	all = append(append(all, asserted...), inferred...)
	if err := t.verifyReferences(ctx, all, verify); err != nil {
		return nil, err
	}

	a := &Artifact{
		OntologyID:        ont,
		VersionID:         version,
		InferredVersionID: vocab.InferredContext(version),
		Status:            StatusUnpublished,
		TopObject:         topObject(asserted, ont),
		SchemaImports:     imports,
	}
	if err := t.perm.Add(ctx, all...); err != nil {
		return nil, fmt.Errorf("persist %s: %w", version, err)
	}
	if err := writeVersion(ctx, t.perm, a, t.m.now()); err != nil {
		return nil, err
	}
	if err := t.commit(ctx, version); err != nil {
		return nil, err
	}
	return a, nil
}
