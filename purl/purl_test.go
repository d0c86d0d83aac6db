package purl

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semvault/statement"
	"github.com/c360studio/semvault/store"
)

const (
	tempPrefix = "urn:temp:uuid:"
	permPrefix = "https://purl.example.org/vault/"
	pred       = "http://example.org/contains"
	graph      = "urn:staging"
)

func TestSimpleProcessor(t *testing.T) {
	p := NewSimpleProcessor(permPrefix, tempPrefix, "urn:temp:", tempPrefix)
	assert.Equal(t, []string{tempPrefix, "urn:temp:"}, p.TemporaryPrefixes())

	assert.True(t, p.CanHandle("urn:temp:uuid:project1"))
	assert.False(t, p.CanHandle("http://example.org/project1"))

	m, err := p.Translate("urn:temp:uuid:project1")
	require.NoError(t, err)
	assert.Equal(t, "urn:temp:uuid:project1", m.Temporary)
	require.True(t, strings.HasPrefix(m.Permanent, permPrefix))
	rest := strings.TrimPrefix(m.Permanent, permPrefix)
	parts := strings.SplitN(rest, "/", 2)
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], 36, "uuid token")
	assert.Equal(t, "project1", parts[1])

	_, err = p.Translate("http://example.org/x")
	assert.ErrorIs(t, err, ErrNotHandled)

	p.RemoveTemporaryPrefix(tempPrefix)
	assert.Equal(t, []string{"urn:temp:"}, p.TemporaryPrefixes())
}

func TestManagerFirstMatchWins(t *testing.T) {
	first := NewSimpleProcessor("https://first/", "urn:temp:")
	second := NewSimpleProcessor("https://second/", "urn:temp:uuid:")
	m := NewManager(WithProcessor(first))
	m.Register(second)

	assert.Same(t, first, m.ProcessorFor("urn:temp:uuid:abc"))
	assert.Nil(t, m.ProcessorFor("http://example.org/abc"))
	assert.True(t, m.IsTemporary("urn:temp:x"))
}

func sample() []statement.Statement {
	return []statement.Statement{
		statement.NewIRIs("http://example.org/artifact", pred, "urn:temp:uuid:a"),
		statement.NewIRIs("urn:temp:uuid:a", pred, "urn:temp:uuid:b"),
		statement.New(statement.NewIRI("urn:temp:uuid:b"), "http://example.org/label", statement.NewLiteral("urn:temp:uuid:literal")),
		statement.NewIRIs("urn:temp:uuid:b", pred, "urn:temp:uuid:a"),
	}
}

func TestExtractStatements(t *testing.T) {
	m := NewManager(WithProcessor(NewSimpleProcessor(permPrefix, tempPrefix)))

	mappings, err := m.ExtractStatements(sample())
	require.NoError(t, err)
	require.Len(t, mappings, 2, "literals are never placeholders")
	assert.Equal(t, "urn:temp:uuid:a", mappings[0].Temporary)
	assert.Equal(t, "urn:temp:uuid:b", mappings[1].Temporary)
	assert.NotEqual(t, mappings[0].Permanent, mappings[1].Permanent)
}

func TestConvertStatements(t *testing.T) {
	m := NewManager(WithProcessor(NewSimpleProcessor(permPrefix, tempPrefix)))
	stmts := sample()

	mappings, err := m.ExtractStatements(stmts)
	require.NoError(t, err)
	converted := ConvertStatements(mappings, stmts)

	require.Len(t, converted, len(stmts))
	assert.Equal(t, stmts[0].Subject, converted[0].Subject)
	assert.Equal(t, mappings[0].Permanent, converted[0].Object.Value)
	assert.Equal(t, "urn:temp:uuid:literal", converted[2].Object.Value)

	again, err := m.ExtractStatements(converted)
	require.NoError(t, err)
	assert.Empty(t, again, "no placeholders survive conversion")
}

func TestConvertInPlace(t *testing.T) {
	ctx := context.Background()
	conn, err := store.NewMemoryRepository().Connect(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.Begin(ctx))
	require.NoError(t, conn.Add(ctx, statement.WithContext(sample(), graph)...))
	other := statement.NewIRIs("urn:temp:uuid:a", pred, "urn:x").WithContext("urn:other")
	require.NoError(t, conn.Add(ctx, other))

	m := NewManager(WithProcessor(NewSimpleProcessor(permPrefix, tempPrefix)))
	mappings, err := m.Extract(ctx, conn, graph)
	require.NoError(t, err)
	require.Len(t, mappings, 2)

	n, err := m.Convert(ctx, conn, mappings, graph)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	left, err := m.Extract(ctx, conn, graph)
	require.NoError(t, err)
	assert.Empty(t, left)

	count, err := store.Count(ctx, conn, graph)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	untouched, err := conn.Match(ctx, statement.InContext("urn:other"))
	require.NoError(t, err)
	assert.Equal(t, []statement.Statement{other}, untouched, "other contexts are not rewritten")
}

func TestFilter(t *testing.T) {
	mappings := []Mapping{{Temporary: "urn:a", Permanent: "p:a"}, {Temporary: "urn:b", Permanent: "p:b"}}
	assert.Equal(t, []Mapping{{Temporary: "urn:b", Permanent: "p:b"}}, Filter(mappings, []string{"urn:b", "urn:c"}))
	assert.Nil(t, Filter(mappings, nil))
}
