// Package datareference finds and verifies references from artifacts to
// data held outside the store.
package datareference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/c360studio/semvault/statement"
	vocab "github.com/c360studio/semvault/vocabulary/artifact"
)

// ErrNoVerifier is recorded for references no registered verifier handles.
var ErrNoVerifier = errors.New("no verifier for data reference")

// Reference points from an artifact object to external data.
type Reference struct {
	ID       string
	Parent   string
	Alias    string
	Location string
}

// Extract returns the data references described in stmts, ordered by id.
// A reference is any subject typed as a DataReference.
func Extract(stmts []statement.Statement) []Reference {
	refs := make(map[string]*Reference)
	for _, st := range stmts {
		if st.Predicate == vocab.RDFType && st.Object.IsIRI() && st.Object.Value == vocab.DataReference && st.Subject.IsIRI() {
			refs[st.Subject.Value] = &Reference{ID: st.Subject.Value}
		}
	}
	if len(refs) == 0 {
		return nil
	}
	for _, st := range stmts {
		switch st.Predicate {
		case vocab.HasAlias:
			if r, ok := refs[st.Subject.Value]; ok {
				r.Alias = st.Object.Value
			}
		case vocab.HasLocation:
			if r, ok := refs[st.Subject.Value]; ok {
				r.Location = st.Object.Value
			}
		case vocab.HasDataReference:
			if r, ok := refs[st.Object.Value]; ok && st.Subject.IsIRI() {
				r.Parent = st.Subject.Value
			}
		}
	}

	out := make([]Reference, 0, len(refs))
	for _, r := range refs {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Verifier checks that referenced data exists.
type Verifier interface {
	// CanHandle reports whether the verifier understands ref.
	CanHandle(ref Reference) bool

	// Verify returns an error when the referenced data cannot be confirmed.
	Verify(ctx context.Context, ref Reference) error
}

// VerificationError collects per-reference failures.
type VerificationError struct {
	Failures map[string]error
}

func (e *VerificationError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s: %v", id, e.Failures[id]))
	}
	return fmt.Sprintf("%d data references failed verification: %s", len(ids), strings.Join(parts, "; "))
}

// Registry holds verifiers; the first one that can handle a reference verifies it.
type Registry struct {
	mu        sync.RWMutex
	verifiers []Verifier
	logger    *slog.Logger
}

// NewRegistry creates a registry with the given verifiers.
func NewRegistry(logger *slog.Logger, verifiers ...Verifier) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{verifiers: verifiers, logger: logger}
}

// Register adds a verifier.
func (r *Registry) Register(v Verifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verifiers = append(r.verifiers, v)
}

// VerifierFor returns the verifier for ref, or nil.
func (r *Registry) VerifierFor(ref Reference) Verifier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.verifiers {
		if v.CanHandle(ref) {
			return v
		}
	}
	return nil
}

// VerifyAll checks every reference and returns a *VerificationError listing
// each one that failed.
func (r *Registry) VerifyAll(ctx context.Context, refs []Reference) error {
	failures := make(map[string]error)
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		v := r.VerifierFor(ref)
		if v == nil {
			failures[ref.ID] = ErrNoVerifier
			continue
		}
		if err := v.Verify(ctx, ref); err != nil {
			failures[ref.ID] = err
		}
	}
	if len(failures) > 0 {
		r.logger.Warn("Data reference verification failed", "failed", len(failures), "total", len(refs))
		return &VerificationError{Failures: failures}
	}
	r.logger.Debug("Data references verified", "count", len(refs))
	return nil
}
