package artifact

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/c360studio/semvault/purl"
	"github.com/c360studio/semvault/reasoner"
	"github.com/c360studio/semvault/schema"
	"github.com/c360studio/semvault/statement"
	"github.com/c360studio/semvault/store"
	vocab "github.com/c360studio/semvault/vocabulary/artifact"
)

const (
	baseOnt = "http://purl.example.org/base"
	base1   = "http://purl.example.org/base/1"
	base2   = "http://purl.example.org/base/2"
	sciOnt  = "http://purl.example.org/science"
	sci1    = "http://purl.example.org/science/1"
	baseNS  = "http://purl.example.org/base#"

	artifactID = "http://some/artifact"
	project    = "http://some/artifact/project"
	study      = "http://some/artifact/study"
	orphan     = "http://some/artifact/orphan"

	permanentPrefix = "https://purl.example.org/p/"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// scriptedEngine is a passthrough engine whose verdicts tests can set.
type scriptedEngine struct {
	*reasoner.Passthrough
	inconsistent string
	violations   []string
	inferred     []statement.Statement
}

func (e *scriptedEngine) CheckProfile(ctx context.Context, o *reasoner.Ontology) (reasoner.ProfileReport, error) {
	if len(e.violations) > 0 {
		return reasoner.ProfileReport{Profile: "test-profile", Violations: e.violations}, nil
	}
	return e.Passthrough.CheckProfile(ctx, o)
}

func (e *scriptedEngine) CreateReasoner(ctx context.Context, o *reasoner.Ontology) (reasoner.Reasoner, error) {
	if e.inconsistent != "" {
		return inconsistentReasoner(e.inconsistent), nil
	}
	return e.Passthrough.CreateReasoner(ctx, o)
}

func (e *scriptedEngine) Infer(_ context.Context, _ *reasoner.Ontology, context string) ([]statement.Statement, error) {
	return statement.WithContext(e.inferred, context), nil
}

type inconsistentReasoner string

func (r inconsistentReasoner) IsConsistent(context.Context) (bool, error) { return false, nil }

func (r inconsistentReasoner) Explanation() string { return string(r) }

type env struct {
	m       *Manager
	repo    store.Repository
	schemas *schema.Registry
	engine  *scriptedEngine
}

func schemaManifest(baseCurrent string) *schema.Manifest {
	return &schema.Manifest{
		Ontologies: []string{baseOnt, sciOnt},
		Current: []schema.VersionPointer{
			{Ontology: baseOnt, Version: baseCurrent},
			{Ontology: sciOnt, Version: sci1},
		},
		Versions: []schema.VersionPointer{
			{Ontology: baseOnt, Version: base1},
			{Ontology: baseOnt, Version: base2},
		},
		Imports: []schema.ImportEdge{
			{Version: sci1, Target: baseOnt},
		},
	}
}

func installSchemas(t *testing.T, repo store.Repository) {
	t.Helper()
	ctx := context.Background()
	conn, err := repo.Connect(ctx)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Begin(ctx))
	require.NoError(t, conn.Add(ctx,
		statement.NewIRIs(baseNS+"Project", vocab.RDFType, "http://www.w3.org/2002/07/owl#Class").WithContext(base1),
		statement.NewIRIs(baseNS+"Project", vocab.RDFType, "http://www.w3.org/2002/07/owl#Class").WithContext(base2),
		statement.NewIRIs(baseNS+"Study", vocab.RDFType, "http://www.w3.org/2002/07/owl#Class").WithContext(base2),
		statement.NewIRIs("http://purl.example.org/science#Sample", vocab.RDFType, "http://www.w3.org/2002/07/owl#Class").WithContext(sci1),
	))
	require.NoError(t, conn.Commit(ctx))
}

func newEnvWithRepo(t *testing.T, repo store.Repository, opts ...Option) *env {
	t.Helper()
	installSchemas(t, repo)

	reg := schema.NewRegistry(nil)
	_, err := reg.Load(schemaManifest(base1))
	require.NoError(t, err)

	engine := &scriptedEngine{Passthrough: reasoner.NewPassthrough()}
	purls := purl.NewManager(purl.WithProcessor(purl.NewSimpleProcessor(permanentPrefix, "urn:temp:")))

	all := append([]Option{
		WithEngine(engine),
		WithPurls(purls),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	m, err := New(repo, reg, all...)
	require.NoError(t, err)
	return &env{m: m, repo: repo, schemas: reg, engine: engine}
}

func newEnv(t *testing.T, opts ...Option) *env {
	return newEnvWithRepo(t, store.NewMemoryRepository(), opts...)
}

// artifactStatements describes a project with one study, importing imports.
func artifactStatements(imports ...string) []statement.Statement {
	return statementsFor(artifactID, imports...)
}

// statementsFor describes the same project layout under the ontology ont.
func statementsFor(ont string, imports ...string) []statement.Statement {
	proj, st := ont+"/project", ont+"/study"
	stmts := []statement.Statement{
		statement.NewIRIs(ont, vocab.RDFType, vocab.OWLOntology),
		statement.NewIRIs(ont, vocab.HasTopObject, proj),
		statement.NewIRIs(proj, vocab.RDFType, baseNS+"Project"),
		statement.New(statement.NewIRI(proj), baseNS+"title", statement.NewLiteral("Ocean survey")),
		statement.NewIRIs(proj, baseNS+"hasPart", st),
		statement.NewIRIs(st, vocab.RDFType, baseNS+"Study"),
	}
	for _, imp := range imports {
		stmts = append(stmts, statement.NewIRIs(ont, vocab.OWLImports, imp))
	}
	return stmts
}

func reportOpts() LoadOptions {
	return LoadOptions{Dangling: "report", Verify: VerifyPolicyVerify}
}

func (e *env) load(t *testing.T) *Artifact {
	t.Helper()
	a, err := e.m.Load(context.Background(), artifactStatements(baseOnt, sciOnt), reportOpts())
	require.NoError(t, err)
	return a
}

func (e *env) export(t *testing.T, inferred bool) []statement.Statement {
	t.Helper()
	stmts, err := e.m.Export(context.Background(), artifactID, inferred)
	require.NoError(t, err)
	return stmts
}

func (e *env) contextSize(t *testing.T, name string) int {
	t.Helper()
	ctx := context.Background()
	conn, err := e.repo.Connect(ctx)
	require.NoError(t, err)
	defer conn.Close()
	n, err := store.Count(ctx, conn, name)
	require.NoError(t, err)
	return n
}

func subjectsOf(stmts []statement.Statement, predicate string) []string {
	var out []string
	for _, st := range stmts {
		if st.Predicate == predicate {
			out = append(out, st.Subject.Value)
		}
	}
	return out
}

func hasStatement(stmts []statement.Statement, s, p string, o statement.Term) bool {
	for _, st := range stmts {
		if st.Subject.Value == s && st.Predicate == p && st.Object == o {
			return true
		}
	}
	return false
}
