package reasoner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semvault/statement"
)

func TestPassthrough(t *testing.T) {
	ctx := context.Background()
	engine := NewPassthrough()
	var _ Engine = engine

	asserted := []statement.Statement{statement.NewIRIs("urn:a", "urn:p", "urn:b")}
	o, err := engine.Load(ctx, "urn:a:version:1", asserted, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, engine.Loaded())

	report, err := engine.CheckProfile(ctx, o)
	require.NoError(t, err)
	assert.True(t, report.InProfile)

	r, err := engine.CreateReasoner(ctx, o)
	require.NoError(t, err)
	ok, err := r.IsConsistent(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, r.Explanation())

	inferred, err := engine.Infer(ctx, o, "urn:inferred")
	require.NoError(t, err)
	assert.Empty(t, inferred)

	require.NoError(t, engine.Release(o))
	assert.Zero(t, engine.Loaded())
	require.NoError(t, engine.Release(nil))

	_, err = engine.Load(ctx, "", nil, nil)
	assert.Error(t, err)
}
