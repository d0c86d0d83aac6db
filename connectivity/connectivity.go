// Package connectivity checks that every identified node of an artifact is
// reachable from its root.
package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	pkgerrors "github.com/c360studio/semvault/errors"
	"github.com/c360studio/semvault/statement"
	"github.com/c360studio/semvault/store"
	vocab "github.com/c360studio/semvault/vocabulary/artifact"
)

// Policy decides what happens to disconnected nodes.
type Policy string

const (
	// PolicyIgnore skips the check.
	PolicyIgnore Policy = "ignore"
	// PolicyReport fails with an integrity error listing the dangling nodes.
	PolicyReport Policy = "report"
	// PolicyForceClean removes every statement mentioning a dangling node.
	PolicyForceClean Policy = "force-clean"
)

// ParsePolicy parses a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyIgnore, PolicyReport, PolicyForceClean:
		return p, nil
	default:
		return "", fmt.Errorf("unknown dangling object policy: %q", s)
	}
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// WithExclusions replaces the identifiers that never count as dangling.
func WithExclusions(iris ...string) Option {
	return func(v *Validator) {
		v.exclusions = make(map[string]struct{}, len(iris))
		for _, iri := range iris {
			v.exclusions[iri] = struct{}{}
		}
	}
}

// Validator finds nodes unreachable from a root.
type Validator struct {
	exclusions map[string]struct{}
	logger     *slog.Logger
}

// NewValidator creates a validator excluding the standard OWL vocabulary nodes.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{logger: slog.Default()}
	WithExclusions(vocab.ExcludedFromConnectivity...)(v)
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// FindDangling returns, sorted, every IRI subject or object of stmts that is
// not reachable from root by following subject to object edges.
func (v *Validator) FindDangling(root string, stmts []statement.Statement) []string {
	candidates := make(map[string]struct{})
	edges := make(map[string][]string)
	for _, st := range stmts {
		if st.Subject.IsIRI() {
			v.addCandidate(candidates, st.Subject.Value)
		}
		if st.Object.IsIRI() {
			v.addCandidate(candidates, st.Object.Value)
			if st.Subject.IsIRI() {
				edges[st.Subject.Value] = append(edges[st.Subject.Value], st.Object.Value)
			}
		}
	}
	delete(candidates, root)

	visited := map[string]struct{}{root: {}}
	queue := []string{root}
	for len(queue) > 0 && len(candidates) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range edges[node] {
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			delete(candidates, next)
			queue = append(queue, next)
		}
	}

	if len(candidates) == 0 {
		return nil
	}
	dangling := make([]string, 0, len(candidates))
	for node := range candidates {
		dangling = append(dangling, node)
	}
	sort.Strings(dangling)
	return dangling
}

func (v *Validator) addCandidate(candidates map[string]struct{}, iri string) {
	if _, excluded := v.exclusions[iri]; excluded {
		return
	}
	candidates[iri] = struct{}{}
}

// Apply checks the statements of one context in g and enforces policy.
// It returns the dangling nodes found; under PolicyForceClean they have
// already been removed from g.
func (v *Validator) Apply(ctx context.Context, g store.Graph, root, context string, policy Policy) ([]string, error) {
	if policy == PolicyIgnore || policy == "" {
		return nil, nil
	}

	stmts, err := g.Match(ctx, statement.InContext(context))
	if err != nil {
		return nil, fmt.Errorf("read statements: %w", err)
	}
	dangling := v.FindDangling(root, stmts)
	if len(dangling) == 0 {
		return nil, nil
	}

	switch policy {
	case PolicyReport:
		v.logger.Warn("Disconnected objects found", "root", root, "count", len(dangling))
		e := pkgerrors.Integrityf("connectivity", pkgerrors.ErrDisconnected, "%d objects unreachable from %s", len(dangling), root)
		e.Dangling = dangling
		return dangling, e
	case PolicyForceClean:
		removed := 0
		for _, node := range dangling {
			n, err := g.Remove(ctx, statement.Pattern{Subject: statement.NewIRI(node), Context: context})
			if err != nil {
				return dangling, fmt.Errorf("remove dangling subject %s: %w", node, err)
			}
			removed += n
			n, err = g.Remove(ctx, statement.Pattern{Object: statement.NewIRI(node), Context: context})
			if err != nil {
				return dangling, fmt.Errorf("remove dangling object %s: %w", node, err)
			}
			removed += n
		}
		v.logger.Info("Removed disconnected objects", "root", root, "objects", len(dangling), "statements", removed)
		return dangling, nil
	default:
		return nil, fmt.Errorf("unknown dangling object policy: %q", policy)
	}
}
