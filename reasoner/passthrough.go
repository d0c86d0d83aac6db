package reasoner

import (
	"context"
	"fmt"
	"sync"

	"github.com/c360studio/semvault/statement"
)

// ProfilePassthrough names the profile accepted by the passthrough engine.
const ProfilePassthrough = "passthrough"

// Passthrough accepts every ontology as consistent and infers nothing.
// It tracks loaded ontologies so callers can verify they release them.
type Passthrough struct {
	mu     sync.Mutex
	loaded map[string]*Ontology
}

// NewPassthrough creates a passthrough engine.
func NewPassthrough() *Passthrough {
	return &Passthrough{loaded: make(map[string]*Ontology)}
}

// Load implements Engine.
func (p *Passthrough) Load(_ context.Context, id string, asserted, imports []statement.Statement) (*Ontology, error) {
	if id == "" {
		return nil, fmt.Errorf("load ontology: empty id")
	}
	o := &Ontology{ID: id, Asserted: asserted, Imports: imports}
	p.mu.Lock()
	p.loaded[id] = o
	p.mu.Unlock()
	return o, nil
}

// CheckProfile implements Engine.
func (p *Passthrough) CheckProfile(_ context.Context, _ *Ontology) (ProfileReport, error) {
	return ProfileReport{Profile: ProfilePassthrough, InProfile: true}, nil
}

// CreateReasoner implements Engine.
func (p *Passthrough) CreateReasoner(_ context.Context, _ *Ontology) (Reasoner, error) {
	return consistent{}, nil
}

// Infer implements Engine.
func (p *Passthrough) Infer(_ context.Context, _ *Ontology, _ string) ([]statement.Statement, error) {
	return nil, nil
}

// Release implements Engine.
func (p *Passthrough) Release(o *Ontology) error {
	if o == nil {
		return nil
	}
	p.mu.Lock()
	delete(p.loaded, o.ID)
	p.mu.Unlock()
	return nil
}

// Loaded returns how many ontologies are loaded and not yet released.
func (p *Passthrough) Loaded() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.loaded)
}

type consistent struct{}

func (consistent) IsConsistent(context.Context) (bool, error) { return true, nil }

func (consistent) Explanation() string { return "" }
