package connectivity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/c360studio/semvault/errors"
	"github.com/c360studio/semvault/statement"
	"github.com/c360studio/semvault/store"
	vocab "github.com/c360studio/semvault/vocabulary/artifact"
)

const (
	root    = "http://example.org/artifact"
	contain = "http://example.org/contains"
	label   = "http://example.org/label"
	graph   = "urn:staging"
)

func edge(s, o string) statement.Statement {
	return statement.NewIRIs(s, contain, o).WithContext(graph)
}

func TestFindDangling(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name  string
		stmts []statement.Statement
		want  []string
	}{
		{
			name: "fully connected chain",
			stmts: []statement.Statement{
				edge(root, "urn:a"),
				edge("urn:a", "urn:b"),
				edge("urn:b", "urn:c"),
			},
		},
		{
			name: "isolated cycle is dangling",
			stmts: []statement.Statement{
				edge(root, "urn:a"),
				edge("urn:x", "urn:y"),
				edge("urn:y", "urn:x"),
			},
			want: []string{"urn:x", "urn:y"},
		},
		{
			name: "reverse edge does not connect",
			stmts: []statement.Statement{
				edge("urn:a", root),
			},
			want: []string{"urn:a"},
		},
		{
			name: "owl vocabulary nodes are excluded",
			stmts: []statement.Statement{
				statement.NewIRIs("urn:orphan", vocab.RDFType, vocab.OWLNamedIndividual),
				statement.NewIRIs(root, vocab.RDFType, vocab.OWLOntology),
				statement.NewIRIs("urn:cls", vocab.RDFType, vocab.OWLThing),
			},
			want: []string{"urn:cls", "urn:orphan"},
		},
		{
			name: "literals and blank nodes are not candidates",
			stmts: []statement.Statement{
				statement.New(statement.NewIRI(root), label, statement.NewLiteral("urn:looks-like-iri")),
				statement.New(statement.NewBlank("b0"), contain, statement.NewIRI("urn:z")),
			},
			want: []string{"urn:z"},
		},
		{
			name: "empty input",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.FindDangling(root, tt.stmts))
		})
	}
}

func TestFindDanglingCustomExclusions(t *testing.T) {
	v := NewValidator(WithExclusions("urn:shared"))
	got := v.FindDangling(root, []statement.Statement{
		edge("urn:shared", "urn:leaf"),
		statement.NewIRIs("urn:x", vocab.RDFType, vocab.OWLThing),
	})
	assert.Equal(t, []string{vocab.OWLThing, "urn:leaf", "urn:x"}, got)
}

func stagingWith(t *testing.T, stmts ...statement.Statement) store.Connection {
	t.Helper()
	ctx := context.Background()
	conn, err := store.NewMemoryRepository().Connect(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.Begin(ctx))
	require.NoError(t, conn.Add(ctx, stmts...))
	return conn
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	stmts := []statement.Statement{
		edge(root, "urn:a"),
		edge("urn:x", "urn:y"),
		edge("urn:a", "urn:x"),
	}
	// urn:x is reachable via urn:a; add a truly dangling island
	island := []statement.Statement{
		edge("urn:island", "urn:y"),
		statement.New(statement.NewIRI("urn:island"), label, statement.NewLiteral("lost")).WithContext(graph),
	}

	t.Run("ignore", func(t *testing.T) {
		conn := stagingWith(t, append(stmts, island...)...)
		dangling, err := NewValidator().Apply(ctx, conn, root, graph, PolicyIgnore)
		require.NoError(t, err)
		assert.Nil(t, dangling)
	})

	t.Run("report", func(t *testing.T) {
		conn := stagingWith(t, append(stmts, island...)...)
		dangling, err := NewValidator().Apply(ctx, conn, root, graph, PolicyReport)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsIntegrity(err))
		assert.Equal(t, []string{"urn:island"}, dangling)
		assert.Equal(t, []string{"urn:island"}, pkgerrors.DanglingOf(err))

		count, err := store.Count(ctx, conn, graph)
		require.NoError(t, err)
		assert.Equal(t, 5, count, "report leaves statements untouched")
	})

	t.Run("force clean", func(t *testing.T) {
		conn := stagingWith(t, append(stmts, island...)...)
		v := NewValidator()
		dangling, err := v.Apply(ctx, conn, root, graph, PolicyForceClean)
		require.NoError(t, err)
		assert.Equal(t, []string{"urn:island"}, dangling)

		remaining, err := conn.Match(ctx, statement.InContext(graph))
		require.NoError(t, err)
		assert.Equal(t, stmts, remaining)
		assert.Empty(t, v.FindDangling(root, remaining))
	})

	t.Run("connected graph passes report", func(t *testing.T) {
		conn := stagingWith(t, stmts...)
		dangling, err := NewValidator().Apply(ctx, conn, root, graph, PolicyReport)
		require.NoError(t, err)
		assert.Empty(t, dangling)
	})
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("force-clean")
	require.NoError(t, err)
	assert.Equal(t, PolicyForceClean, p)
	_, err = ParsePolicy("sometimes")
	assert.Error(t, err)
}
