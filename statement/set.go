package statement

// Pattern selects statements. Zero-valued fields match anything.
type Pattern struct {
	Subject   Term
	Predicate string
	Object    Term
	Context   string
}

// Any matches every statement.
var Any = Pattern{}

// InContext matches every statement in the given graph.
func InContext(context string) Pattern {
	return Pattern{Context: context}
}

// Matches reports whether st satisfies the pattern.
func (p Pattern) Matches(st Statement) bool {
	if !p.Subject.IsZero() && p.Subject != st.Subject {
		return false
	}
	if p.Predicate != "" && p.Predicate != st.Predicate {
		return false
	}
	if !p.Object.IsZero() && p.Object != st.Object {
		return false
	}
	if p.Context != "" && p.Context != st.Context {
		return false
	}
	return true
}

// Filter returns the statements that match p, preserving order.
func Filter(stmts []Statement, p Pattern) []Statement {
	var out []Statement
	for _, st := range stmts {
		if p.Matches(st) {
			out = append(out, st)
		}
	}
	return out
}

// Set is a duplicate-free collection of statements that remembers
// insertion order. The zero value is not usable; use NewSet.
type Set struct {
	items []Statement
	index map[Statement]int
}

// NewSet creates a set containing stmts.
func NewSet(stmts ...Statement) *Set {
	s := &Set{index: make(map[Statement]int, len(stmts))}
	s.Add(stmts...)
	return s
}

// Len returns the number of statements.
func (s *Set) Len() int { return len(s.items) }

// Contains reports whether st is in the set.
func (s *Set) Contains(st Statement) bool {
	_, ok := s.index[st]
	return ok
}

// Add inserts statements not already present and returns how many were added.
func (s *Set) Add(stmts ...Statement) int {
	added := 0
	for _, st := range stmts {
		if _, ok := s.index[st]; ok {
			continue
		}
		s.index[st] = len(s.items)
		s.items = append(s.items, st)
		added++
	}
	return added
}

// Remove deletes the given statements and returns how many were present.
func (s *Set) Remove(stmts ...Statement) int {
	drop := make(map[Statement]struct{}, len(stmts))
	for _, st := range stmts {
		if _, ok := s.index[st]; ok {
			drop[st] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return 0
	}
	s.compact(func(st Statement) bool {
		_, ok := drop[st]
		return ok
	})
	return len(drop)
}

// RemoveMatching deletes every statement matching p and returns them.
func (s *Set) RemoveMatching(p Pattern) []Statement {
	removed := s.Match(p)
	if len(removed) == 0 {
		return nil
	}
	s.compact(p.Matches)
	return removed
}

// Match returns the statements matching p in insertion order.
func (s *Set) Match(p Pattern) []Statement {
	return Filter(s.items, p)
}

// All returns a copy of the statements in insertion order.
func (s *Set) All() []Statement {
	out := make([]Statement, len(s.items))
	copy(out, s.items)
	return out
}

// Clone returns an independent copy of the set.
func (s *Set) Clone() *Set {
	return NewSet(s.items...)
}

// Contexts returns the distinct contexts in first-seen order.
func (s *Set) Contexts() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, st := range s.items {
		if _, ok := seen[st.Context]; ok {
			continue
		}
		seen[st.Context] = struct{}{}
		out = append(out, st.Context)
	}
	return out
}

func (s *Set) compact(drop func(Statement) bool) {
	kept := s.items[:0]
	for _, st := range s.items {
		if drop(st) {
			delete(s.index, st)
			continue
		}
		s.index[st] = len(kept)
		kept = append(kept, st)
	}
	// clear the tail so dropped statements are not retained by the backing array
	for i := len(kept); i < len(s.items); i++ {
		s.items[i] = Statement{}
	}
	s.items = kept
}
