package artifact

import (
	"log/slog"
	"sync"

	"github.com/c360studio/semvault/reasoner"
)

// ReasoningCache holds the ontologies loaded into the reasoning engine,
// keyed by version context. Every operation removes what it put.
type ReasoningCache struct {
	mu      sync.Mutex
	engine  reasoner.Engine
	entries map[string]*reasoner.Ontology
	logger  *slog.Logger
}

// NewReasoningCache creates a cache releasing entries through engine.
func NewReasoningCache(engine reasoner.Engine, logger *slog.Logger) *ReasoningCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReasoningCache{
		engine:  engine,
		entries: make(map[string]*reasoner.Ontology),
		logger:  logger,
	}
}

// Put stores o under id, releasing any ontology it replaces.
func (c *ReasoningCache) Put(id string, o *reasoner.Ontology) {
	c.mu.Lock()
	old := c.entries[id]
	c.entries[id] = o
	c.mu.Unlock()
	if old != nil && old != o {
		c.release(id, old)
	}
}

// Get returns the ontology cached under id.
func (c *ReasoningCache) Get(id string) (*reasoner.Ontology, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.entries[id]
	return o, ok
}

// Remove evicts id and releases its engine state. Unknown ids are ignored.
func (c *ReasoningCache) Remove(id string) {
	c.mu.Lock()
	o, ok := c.entries[id]
	delete(c.entries, id)
	c.mu.Unlock()
	if ok {
		c.release(id, o)
	}
}

// Len returns the number of cached ontologies.
func (c *ReasoningCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ReasoningCache) release(id string, o *reasoner.Ontology) {
	if err := c.engine.Release(o); err != nil {
		c.logger.Warn("Failed to release ontology", "id", id, "error", err)
	}
}

// keyedMutex serializes work per artifact.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is free and returns the matching unlock.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refMutex{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
