package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "consistency", KindConsistency.String())
	assert.Equal(t, "integrity", KindIntegrity.String())
	assert.Equal(t, "concurrency", KindConcurrency.String())
	assert.Equal(t, "state", KindState.String())
	assert.Equal(t, "unknown", Kind(0).String())
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"op and sentinel", Validationf("load", ErrEmptyOntology, ""), "load: no ontology identifier found"},
		{"message", Statef("publish", ErrPublished, "artifact %s", "urn:a"), "publish: artifact urn:a: artifact is published"},
		{"bare", &Error{Kind: KindIntegrity}, "integrity error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestClassificationThroughWrapping(t *testing.T) {
	base := Integrityf("load", ErrDisconnected, "")
	base.Dangling = []string{"urn:x"}
	wrapped := fmt.Errorf("load artifact: %w", base)

	assert.True(t, IsIntegrity(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.True(t, errors.Is(wrapped, ErrDisconnected))
	assert.Equal(t, []string{"urn:x"}, DanglingOf(wrapped))

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindIntegrity, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
	assert.Nil(t, DanglingOf(nil))
}

func TestPredicates(t *testing.T) {
	c := Consistencyf("load", ErrInconsistent, "")
	c.Explanation = "A disjoint with B"

	assert.True(t, IsConsistency(c))
	assert.Equal(t, "A disjoint with B", ExplanationOf(c))
	assert.True(t, IsConcurrency(Concurrencyf("update", ErrStaleVersion, "")))
	assert.True(t, IsState(Statef("delete", ErrUnmanagedArtifact, "")))
	assert.False(t, IsState(nil))
}
