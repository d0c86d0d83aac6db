package artifact

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/c360studio/semvault/statement"
	"github.com/c360studio/semvault/store"
	vocab "github.com/c360studio/semvault/vocabulary/artifact"
)

// Management records of an artifact live in its own named graph,
// vocab.ManagementContext(ontology):
//
//	<ontology> rdf:type owl:Ontology
//	<ontology> omv:currentVersion <version>
//	<ontology> owl:versionIRI <version>          one per retained version
//	<version>  hasPublicationStatus <status>
//	<version>  currentInferredVersion <inferred context>
//	<version>  owl:imports <schema version>      one per pinned import
//	<version>  artifactHasTopObject <object>
//	<version>  lastModified "..."^^xsd:dateTime
//
// One graph per artifact keeps commits on distinct artifacts from touching
// the same stored graph.

// managed matches the records of ont about subject. An empty subject is
// never a wildcard: callers get nothing rather than every record.
func managed(ont, subject, predicate string) (statement.Pattern, bool) {
	if ont == "" || subject == "" {
		return statement.Pattern{}, false
	}
	return statement.Pattern{
		Subject:   statement.NewIRI(subject),
		Predicate: predicate,
		Context:   vocab.ManagementContext(ont),
	}, true
}

func objects(ctx context.Context, g store.Graph, ont, subject, predicate string) ([]string, error) {
	p, ok := managed(ont, subject, predicate)
	if !ok {
		return nil, nil
	}
	stmts, err := g.Match(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("read %s of %s: %w", predicate, subject, err)
	}
	out := make([]string, 0, len(stmts))
	for _, st := range stmts {
		out = append(out, st.Object.Value)
	}
	return out, nil
}

func object(ctx context.Context, g store.Graph, ont, subject, predicate string) (string, error) {
	values, err := objects(ctx, g, ont, subject, predicate)
	if err != nil || len(values) == 0 {
		return "", err
	}
	return values[0], nil
}

// readArtifact returns the current version record of ont, or nil when ont
// is not managed.
func readArtifact(ctx context.Context, g store.Graph, ont string) (*Artifact, error) {
	current, err := object(ctx, g, ont, ont, vocab.OMVCurrentVersion)
	if err != nil {
		return nil, err
	}
	if current == "" {
		return nil, nil
	}
	return readVersion(ctx, g, ont, current)
}

func readVersion(ctx context.Context, g store.Graph, ont, version string) (*Artifact, error) {
	a := &Artifact{OntologyID: ont, VersionID: version, Status: StatusUnpublished}

	var err error
	if a.InferredVersionID, err = object(ctx, g, ont, version, vocab.CurrentInferredVersion); err != nil {
		return nil, err
	}
	if a.TopObject, err = object(ctx, g, ont, version, vocab.HasTopObject); err != nil {
		return nil, err
	}
	if a.SchemaImports, err = objects(ctx, g, ont, version, vocab.OWLImports); err != nil {
		return nil, err
	}
	status, err := object(ctx, g, ont, version, vocab.HasPublicationStatus)
	if err != nil {
		return nil, err
	}
	if status == vocab.Published {
		a.Status = StatusPublished
	}
	return a, nil
}

// versionsOf lists the retained versions of ont in the order they were created.
func versionsOf(ctx context.Context, g store.Graph, ont string) ([]string, error) {
	return objects(ctx, g, ont, ont, vocab.OWLVersionIRI)
}

// managedOntologies lists every managed ontology id, sorted.
func managedOntologies(ctx context.Context, conn store.Connection) ([]string, error) {
	contexts, err := conn.Contexts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list managed artifacts: %w", err)
	}
	var ids []string
	for _, c := range contexts {
		if ont, ok := strings.CutPrefix(c, vocab.ManagementPrefix); ok && ont != "" {
			ids = append(ids, ont)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func statusIRI(s Status) string {
	if s == StatusPublished {
		return vocab.Published
	}
	return vocab.NotPublished
}

// writeVersion records a new version of a.OntologyID and makes it current.
func writeVersion(ctx context.Context, g store.Graph, a *Artifact, now time.Time) error {
	if err := setCurrent(ctx, g, a.OntologyID, a.VersionID); err != nil {
		return err
	}

	mg := vocab.ManagementContext(a.OntologyID)
	stmts := []statement.Statement{
		statement.NewIRIs(a.OntologyID, vocab.RDFType, vocab.OWLOntology).WithContext(mg),
		statement.NewIRIs(a.OntologyID, vocab.OWLVersionIRI, a.VersionID).WithContext(mg),
		statement.NewIRIs(a.VersionID, vocab.HasPublicationStatus, statusIRI(a.Status)).WithContext(mg),
		statement.NewIRIs(a.VersionID, vocab.CurrentInferredVersion, a.InferredVersionID).WithContext(mg),
		statement.New(statement.NewIRI(a.VersionID), vocab.LastModified,
			statement.NewTypedLiteral(now.UTC().Format(time.RFC3339), vocab.XSDDateTime)).WithContext(mg),
	}
	for _, imp := range a.SchemaImports {
		stmts = append(stmts, statement.NewIRIs(a.VersionID, vocab.OWLImports, imp).WithContext(mg))
	}
	if a.TopObject != "" {
		stmts = append(stmts, statement.NewIRIs(a.VersionID, vocab.HasTopObject, a.TopObject).WithContext(mg))
	}
	if err := g.Add(ctx, stmts...); err != nil {
		return fmt.Errorf("write record %s: %w", a.VersionID, err)
	}
	return nil
}

func setCurrent(ctx context.Context, g store.Graph, ont, version string) error {
	p, ok := managed(ont, ont, vocab.OMVCurrentVersion)
	if !ok {
		return fmt.Errorf("set current version: empty ontology id")
	}
	if _, err := g.Remove(ctx, p); err != nil {
		return fmt.Errorf("clear current version of %s: %w", ont, err)
	}
	st := statement.NewIRIs(ont, vocab.OMVCurrentVersion, version).WithContext(p.Context)
	if err := g.Add(ctx, st); err != nil {
		return fmt.Errorf("set current version of %s: %w", ont, err)
	}
	return nil
}

func setStatus(ctx context.Context, g store.Graph, ont, version string, s Status) error {
	p, ok := managed(ont, version, vocab.HasPublicationStatus)
	if !ok {
		return fmt.Errorf("set status: empty ontology or version id")
	}
	if _, err := g.Remove(ctx, p); err != nil {
		return fmt.Errorf("clear status of %s: %w", version, err)
	}
	st := statement.NewIRIs(version, vocab.HasPublicationStatus, statusIRI(s)).WithContext(p.Context)
	if err := g.Add(ctx, st); err != nil {
		return fmt.Errorf("set status of %s: %w", version, err)
	}
	return nil
}

// removeVersion drops the record of one version and its statement contexts.
func removeVersion(ctx context.Context, g store.Graph, ont, version, inferred string) error {
	if ont == "" || version == "" {
		return fmt.Errorf("remove version: empty ontology or version id")
	}
	mg := vocab.ManagementContext(ont)
	patterns := []statement.Pattern{
		{Subject: statement.NewIRI(ont), Predicate: vocab.OWLVersionIRI, Object: statement.NewIRI(version), Context: mg},
		{Subject: statement.NewIRI(version), Context: mg},
		statement.InContext(version),
	}
	if inferred != "" {
		patterns = append(patterns, statement.InContext(inferred))
	}
	for _, p := range patterns {
		if _, err := g.Remove(ctx, p); err != nil {
			return fmt.Errorf("remove version %s: %w", version, err)
		}
	}
	return nil
}

// removeOntology drops what remains of an artifact once its last version is gone.
func removeOntology(ctx context.Context, g store.Graph, ont string) error {
	if ont == "" {
		return fmt.Errorf("remove artifact: empty ontology id")
	}
	if _, err := g.Remove(ctx, statement.InContext(vocab.ManagementContext(ont))); err != nil {
		return fmt.Errorf("remove artifact %s: %w", ont, err)
	}
	return nil
}
