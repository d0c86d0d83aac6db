// Package purl rewrites placeholder identifiers into permanent ones.
//
// Clients submit artifacts whose new objects carry temporary identifiers
// (for example "urn:temp:uuid:..."). Before anything is persisted every such
// identifier is replaced by a permanent URL minted by a registered Processor.
package purl

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrNotHandled is returned when no processor accepts an identifier.
var ErrNotHandled = errors.New("identifier not handled by processor")

// Mapping pairs a temporary identifier with its permanent replacement.
type Mapping struct {
	Temporary string `json:"temporary"`
	Permanent string `json:"permanent"`
}

// Processor mints permanent identifiers for the temporary identifiers it handles.
type Processor interface {
	// CanHandle reports whether id starts with one of the processor's
	// temporary prefixes.
	CanHandle(id string) bool

	// Translate generates the permanent identifier for id.
	Translate(id string) (Mapping, error)

	// TemporaryPrefixes lists the prefixes the processor handles.
	TemporaryPrefixes() []string
}

// SimpleProcessor builds permanent identifiers as prefix + uuid + "/" + the
// part of the temporary identifier after its temporary prefix.
type SimpleProcessor struct {
	prefix   string
	newToken func() string

	mu        sync.RWMutex
	temporary []string
}

// NewSimpleProcessor creates a processor minting under prefix.
func NewSimpleProcessor(prefix string, temporaryPrefixes ...string) *SimpleProcessor {
	p := &SimpleProcessor{
		prefix:   prefix,
		newToken: func() string { return uuid.New().String() },
	}
	for _, t := range temporaryPrefixes {
		p.AddTemporaryPrefix(t)
	}
	return p
}

// Prefix returns the permanent prefix.
func (p *SimpleProcessor) Prefix() string { return p.prefix }

// AddTemporaryPrefix registers a temporary prefix. Duplicates are ignored.
func (p *SimpleProcessor) AddTemporaryPrefix(prefix string) {
	if prefix == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.temporary {
		if t == prefix {
			return
		}
	}
	p.temporary = append(p.temporary, prefix)
}

// RemoveTemporaryPrefix unregisters a temporary prefix.
func (p *SimpleProcessor) RemoveTemporaryPrefix(prefix string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, t := range p.temporary {
		if t == prefix {
			p.temporary = append(p.temporary[:i], p.temporary[i+1:]...)
			return
		}
	}
}

// TemporaryPrefixes returns a copy of the registered temporary prefixes.
func (p *SimpleProcessor) TemporaryPrefixes() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.temporary))
	copy(out, p.temporary)
	return out
}

// CanHandle implements Processor.
func (p *SimpleProcessor) CanHandle(id string) bool {
	_, ok := p.matchPrefix(id)
	return ok
}

// Translate implements Processor.
func (p *SimpleProcessor) Translate(id string) (Mapping, error) {
	temp, ok := p.matchPrefix(id)
	if !ok {
		return Mapping{}, fmt.Errorf("translate %s: %w", id, ErrNotHandled)
	}
	suffix := strings.TrimPrefix(id, temp)
	return Mapping{
		Temporary: id,
		Permanent: p.prefix + p.newToken() + "/" + suffix,
	}, nil
}

func (p *SimpleProcessor) matchPrefix(id string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, t := range p.temporary {
		if strings.HasPrefix(id, t) {
			return t, true
		}
	}
	return "", false
}
