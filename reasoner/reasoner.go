// Package reasoner defines the reasoning engine consumed by the artifact
// lifecycle. Reasoning itself is out of scope; implementations wrap an
// external engine. Passthrough is a no-inference engine for deployments
// and tests without one.
package reasoner

import (
	"context"

	"github.com/c360studio/semvault/statement"
)

// Ontology is an artifact version loaded into an engine.
type Ontology struct {
	// ID is the version context the ontology was loaded from.
	ID string

	// Asserted are the artifact's own statements.
	Asserted []statement.Statement

	// Imports are the statements of the pinned schema versions, in
	// dependency order.
	Imports []statement.Statement
}

// ProfileReport is the outcome of a profile check.
type ProfileReport struct {
	Profile    string
	InProfile  bool
	Violations []string
}

// Reasoner answers questions about one loaded ontology.
type Reasoner interface {
	// IsConsistent reports whether the ontology is consistent.
	IsConsistent(ctx context.Context) (bool, error)

	// Explanation describes why the last consistency check failed.
	Explanation() string
}

// Engine loads ontologies and runs reasoning over them.
type Engine interface {
	// Load prepares an ontology for reasoning.
	Load(ctx context.Context, id string, asserted, imports []statement.Statement) (*Ontology, error)

	// CheckProfile verifies the ontology stays within the engine's profile.
	CheckProfile(ctx context.Context, o *Ontology) (ProfileReport, error)

	// CreateReasoner builds a reasoner over o.
	CreateReasoner(ctx context.Context, o *Ontology) (Reasoner, error)

	// Infer returns the inferred statements of o placed in context.
	Infer(ctx context.Context, o *Ontology, context string) ([]statement.Statement, error)

	// Release drops any engine state held for o.
	Release(o *Ontology) error
}
