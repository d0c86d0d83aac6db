package datareference

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semvault/statement"
	vocab "github.com/c360studio/semvault/vocabulary/artifact"
)

func refStatements(id, parent, alias, location string) []statement.Statement {
	return []statement.Statement{
		statement.NewIRIs(id, vocab.RDFType, vocab.DataReference),
		statement.NewIRIs(parent, vocab.HasDataReference, id),
		statement.New(statement.NewIRI(id), vocab.HasAlias, statement.NewLiteral(alias)),
		statement.New(statement.NewIRI(id), vocab.HasLocation, statement.NewLiteral(location)),
	}
}

func TestExtract(t *testing.T) {
	stmts := append(refStatements("urn:ref:2", "urn:obj", "lab", "a/b.csv"),
		refStatements("urn:ref:1", "urn:obj", "archive", "c.txt")...)
	stmts = append(stmts, statement.New(statement.NewIRI("urn:other"), vocab.HasAlias, statement.NewLiteral("ignored")))

	refs := Extract(stmts)
	require.Len(t, refs, 2)
	assert.Equal(t, Reference{ID: "urn:ref:1", Parent: "urn:obj", Alias: "archive", Location: "c.txt"}, refs[0])
	assert.Equal(t, "urn:ref:2", refs[1].ID)

	assert.Nil(t, Extract([]statement.Statement{statement.NewIRIs("urn:a", "urn:p", "urn:b")}))
}

func TestFileVerifier(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "runs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "runs", "plate.csv"), []byte("a,b\n"), 0o644))

	v := NewFileVerifier(map[string]string{"lab": root})
	ctx := context.Background()

	ok := Reference{ID: "urn:r1", Alias: "lab", Location: "runs/plate.csv"}
	assert.True(t, v.CanHandle(ok))
	assert.NoError(t, v.Verify(ctx, ok))
	assert.NoError(t, v.Verify(ctx, Reference{Alias: "lab", Location: "file:///runs/plate.csv"}))

	assert.Error(t, v.Verify(ctx, Reference{Alias: "lab", Location: "runs/missing.csv"}))
	assert.Error(t, v.Verify(ctx, Reference{Alias: "lab", Location: "runs"}), "directories are not data")
	assert.Error(t, v.Verify(ctx, Reference{Alias: "lab", Location: "../../etc/passwd"}))
	assert.False(t, v.CanHandle(Reference{Alias: "other", Location: "x"}))
}

func TestRegistryVerifyAll(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "present.txt"), nil, 0o644))
	reg := NewRegistry(nil, NewFileVerifier(map[string]string{"lab": root}))
	ctx := context.Background()

	require.NoError(t, reg.VerifyAll(ctx, []Reference{{ID: "urn:a", Alias: "lab", Location: "present.txt"}}))
	require.NoError(t, reg.VerifyAll(ctx, nil))

	err := reg.VerifyAll(ctx, []Reference{
		{ID: "urn:a", Alias: "lab", Location: "present.txt"},
		{ID: "urn:b", Alias: "lab", Location: "absent.txt"},
		{ID: "urn:c", Alias: "ssh-host", Location: "x"},
	})
	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Failures, 2)
	assert.ErrorIs(t, verr.Failures["urn:c"], ErrNoVerifier)
	assert.Contains(t, err.Error(), "urn:b")
}
