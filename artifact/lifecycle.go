package artifact

import (
	"context"
	"fmt"
	"time"

	"github.com/c360studio/semvault/connectivity"
	pkgerrors "github.com/c360studio/semvault/errors"
	"github.com/c360studio/semvault/purl"
	"github.com/c360studio/semvault/statement"
	"github.com/c360studio/semvault/store"
)

// Load stores a new artifact as version "<ontology id>:version:1".
func (m *Manager) Load(ctx context.Context, stmts []statement.Statement, opts LoadOptions) (a *Artifact, err error) {
	const op = "load"
	defer m.metrics.observe(op, time.Now(), &err)

	t, err := m.begin(ctx, op, true)
	if err != nil {
		return nil, err
	}
	defer t.close(ctx)

	if err := t.stage(ctx, stmts); err != nil {
		return nil, err
	}
	if err := t.stripPublicationStatus(ctx); err != nil {
		return nil, err
	}
	mappings, err := t.resolvePlaceholders(ctx)
	if err != nil {
		return nil, err
	}
	ont, err := t.detectOntology(ctx)
	if err != nil {
		return nil, err
	}

	unlock := m.locks.Lock(ont)
	defer unlock()

	existing, err := readArtifact(ctx, t.perm, ont)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, pkgerrors.Validationf(op, pkgerrors.ErrDuplicateArtifact, "%s", ont)
	}

	version := ont + VersionSuffix
	if err := t.setVersion(ctx, ont, version); err != nil {
		return nil, err
	}
	if err := t.backfillTimestamps(ctx); err != nil {
		return nil, err
	}
	dangling, err := t.checkConnectivity(ctx, ont, opts.Dangling)
	if err != nil {
		return nil, err
	}

	a, err = t.complete(ctx, ont, version, opts.Verify)
	if err != nil {
		return nil, err
	}
	a.Placeholders = mappings
	a.Dangling = dangling

	m.logger.Info("Loaded artifact", "ontology", ont, "version", version, "imports", len(a.SchemaImports))
	return a, nil
}

// Update applies req to the current version of an artifact and stores the
// result as the next version.
func (m *Manager) Update(ctx context.Context, req UpdateRequest) (a *Artifact, err error) {
	const op = "update"
	defer m.metrics.observe(op, time.Now(), &err)

	switch req.Policy {
	case PolicyMerge, PolicyReplaceExisting:
	case PolicyReplaceAll:
		return nil, pkgerrors.Validationf(op, pkgerrors.ErrUnsupportedPolicy, "%s", req.Policy)
	default:
		return nil, pkgerrors.Validationf(op, pkgerrors.ErrUnsupportedRequest, "unknown update policy %q", req.Policy)
	}

	var mappings []purl.Mapping
	a, err = m.revise(ctx, op, req.OntologyID, req.VersionID, revision{
		dangling: req.Dangling,
		verify:   req.Verify,
		mutate: func(ctx context.Context, t *txn, _ *Artifact) error {
			return t.applyDelta(ctx, req)
		},
		placeholders: func(found []purl.Mapping) { mappings = found },
	})
	if err != nil {
		return nil, err
	}

	if len(req.Targets) > 0 {
		mappings = purl.Filter(mappings, req.Targets)
	}
	a.Placeholders = mappings

	m.logger.Info("Updated artifact", "ontology", a.OntologyID, "version", a.VersionID, "policy", req.Policy)
	return a, nil
}

// applyDelta merges or replaces the update's statements into staging.
func (t *txn) applyDelta(ctx context.Context, req UpdateRequest) error {
	delta := statement.WithContext(req.Statements, t.context)
	for _, st := range delta {
		if err := st.Validate(); err != nil {
			return pkgerrors.Validationf(t.op, pkgerrors.ErrInvalidStatement, "%v", err)
		}
	}

	if req.Policy == PolicyReplaceExisting {
		targets := req.Targets
		if len(targets) == 0 {
			targets = statement.Subjects(delta)
		}
		removed := 0
		for _, s := range targets {
			n, err := t.staging.Remove(ctx, statement.Pattern{Subject: statement.NewIRI(s), Context: t.context})
			if err != nil {
				return fmt.Errorf("replace %s: %w", s, err)
			}
			removed += n
		}
		t.m.logger.Debug("Replaced subjects", "op", t.op, "subjects", len(targets), "removed", removed)
	}

	if len(delta) == 0 {
		return nil
	}
	if err := t.staging.Add(ctx, delta...); err != nil {
		return fmt.Errorf("apply delta: %w", err)
	}
	return nil
}

// revision describes how revise changes the current version.
type revision struct {
	dangling connectivity.Policy
	verify   VerifyPolicy

	// mutate edits the staged copy of the current version.
	mutate func(ctx context.Context, t *txn, current *Artifact) error

	// placeholders receives the placeholder mappings minted, if set.
	placeholders func([]purl.Mapping)
}

// revise is the pipeline shared by every operation that derives a new
// version from the current one.
func (m *Manager) revise(ctx context.Context, op, ont, version string, rev revision) (*Artifact, error) {
	if ont == "" {
		return nil, pkgerrors.Validationf(op, pkgerrors.ErrEmptyOntology, "")
	}

	unlock := m.locks.Lock(ont)
	defer unlock()

	t, err := m.begin(ctx, op, true)
	if err != nil {
		return nil, err
	}
	defer t.close(ctx)

	current, err := readArtifact(ctx, t.perm, ont)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, pkgerrors.Statef(op, pkgerrors.ErrUnmanagedArtifact, "%s", ont)
	}
	if version != current.VersionID {
		return nil, pkgerrors.Concurrencyf(op, pkgerrors.ErrStaleVersion, "%s, current is %s", version, current.VersionID)
	}
	if current.IsPublished() {
		return nil, pkgerrors.Statef(op, pkgerrors.ErrPublished, "%s", current.VersionID)
	}

	if _, err := store.CopyContext(ctx, t.perm, current.VersionID, t.staging, t.context); err != nil {
		return nil, fmt.Errorf("stage %s: %w", current.VersionID, err)
	}
	if err := rev.mutate(ctx, t, current); err != nil {
		return nil, err
	}
	if err := t.backfillTimestamps(ctx); err != nil {
		return nil, err
	}
	dangling, err := t.checkConnectivity(ctx, ont, rev.dangling)
	if err != nil {
		return nil, err
	}
	if err := t.stripPublicationStatus(ctx); err != nil {
		return nil, err
	}
	mappings, err := t.resolvePlaceholders(ctx)
	if err != nil {
		return nil, err
	}
	if rev.placeholders != nil {
		rev.placeholders(mappings)
	}

	next := IncrementVersion(current.VersionID)
	if err := t.setVersion(ctx, ont, next); err != nil {
		return nil, err
	}
	a, err := t.complete(ctx, ont, next, rev.verify)
	if err != nil {
		return nil, err
	}
	a.Dangling = dangling
	return a, nil
}

// Delete removes one version of an artifact, or every version when version
// is empty. It reports false when the version is not known. Published
// artifacts cannot be deleted.
func (m *Manager) Delete(ctx context.Context, ont, version string) (deleted bool, err error) {
	const op = "delete"
	defer m.metrics.observe(op, time.Now(), &err)
	if ont == "" {
		return false, pkgerrors.Validationf(op, pkgerrors.ErrEmptyOntology, "")
	}

	unlock := m.locks.Lock(ont)
	defer unlock()

	t, err := m.begin(ctx, op, false)
	if err != nil {
		return false, err
	}
	defer t.close(ctx)

	current, err := readArtifact(ctx, t.perm, ont)
	if err != nil {
		return false, err
	}
	if current == nil {
		return false, pkgerrors.Statef(op, pkgerrors.ErrUnmanagedArtifact, "%s", ont)
	}
	if current.IsPublished() {
		return false, pkgerrors.Statef(op, pkgerrors.ErrPublished, "%s", current.VersionID)
	}

	versions, err := versionsOf(ctx, t.perm, ont)
	if err != nil {
		return false, err
	}
	targets := versions
	if version != "" {
		if !contains(versions, version) {
			return false, nil
		}
		targets = []string{version}
	}

	for _, v := range targets {
		record, err := readVersion(ctx, t.perm, ont, v)
		if err != nil {
			return false, err
		}
		if record.IsPublished() {
			return false, pkgerrors.Statef(op, pkgerrors.ErrPublished, "%s", v)
		}
		if err := removeVersion(ctx, t.perm, ont, v, record.InferredVersionID); err != nil {
			return false, err
		}
		t.release = append(t.release, v, record.InferredVersionID)
	}

	var remaining []string
	for _, v := range versions {
		if !contains(targets, v) {
			remaining = append(remaining, v)
		}
	}
	switch {
	case len(remaining) == 0:
		if err := removeOntology(ctx, t.perm, ont); err != nil {
			return false, err
		}
	case contains(targets, current.VersionID):
		if err := setCurrent(ctx, t.perm, ont, remaining[len(remaining)-1]); err != nil {
			return false, err
		}
	}

	if err := t.commit(ctx, ont); err != nil {
		return false, err
	}
	m.logger.Info("Deleted artifact versions", "ontology", ont, "versions", targets, "remaining", len(remaining))
	return true, nil
}

// Publish marks the current version as published. Publication cannot be undone.
func (m *Manager) Publish(ctx context.Context, ont, version string) (a *Artifact, err error) {
	const op = "publish"
	defer m.metrics.observe(op, time.Now(), &err)
	if ont == "" {
		return nil, pkgerrors.Validationf(op, pkgerrors.ErrEmptyOntology, "")
	}

	unlock := m.locks.Lock(ont)
	defer unlock()

	t, err := m.begin(ctx, op, false)
	if err != nil {
		return nil, err
	}
	defer t.close(ctx)

	current, err := readArtifact(ctx, t.perm, ont)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, pkgerrors.Statef(op, pkgerrors.ErrUnmanagedArtifact, "%s", ont)
	}
	if current.IsPublished() {
		return nil, pkgerrors.Statef(op, pkgerrors.ErrPublished, "%s", current.VersionID)
	}
	if version != current.VersionID {
		return nil, pkgerrors.Concurrencyf(op, pkgerrors.ErrStaleVersion, "%s, current is %s", version, current.VersionID)
	}

	if err := setStatus(ctx, t.perm, ont, version, StatusPublished); err != nil {
		return nil, err
	}
	if err := t.commit(ctx, version); err != nil {
		return nil, err
	}
	current.Status = StatusPublished

	m.logger.Info("Published artifact", "ontology", ont, "version", version)
	return current, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
