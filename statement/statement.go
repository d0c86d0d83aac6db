// Package statement provides the graph data model used throughout semvault:
// terms, quads (statements with a named-graph context), match patterns and
// an insertion-ordered statement set.
package statement

import (
	"fmt"
	"strings"
)

// Kind identifies the type of a term.
type Kind uint8

const (
	// KindIRI is an identifier term.
	KindIRI Kind = iota
	// KindBlank is an anonymous node, scoped to the document it came from.
	KindBlank
	// KindLiteral is a value term with an optional datatype or language.
	KindLiteral
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindIRI:
		return "iri"
	case KindBlank:
		return "blank"
	case KindLiteral:
		return "literal"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Term is a subject or object of a statement.
type Term struct {
	Kind     Kind   `json:"k,omitempty"`
	Value    string `json:"v"`
	Datatype string `json:"dt,omitempty"`
	Lang     string `json:"lang,omitempty"`
}

// NewIRI creates an IRI term.
func NewIRI(iri string) Term {
	return Term{Kind: KindIRI, Value: iri}
}

// NewBlank creates a blank node term. The id is stored without the "_:" prefix.
func NewBlank(id string) Term {
	return Term{Kind: KindBlank, Value: strings.TrimPrefix(id, "_:")}
}

// NewLiteral creates a plain string literal.
func NewLiteral(value string) Term {
	return Term{Kind: KindLiteral, Value: value}
}

// NewTypedLiteral creates a literal with a datatype IRI.
func NewTypedLiteral(value, datatype string) Term {
	return Term{Kind: KindLiteral, Value: value, Datatype: datatype}
}

// NewLangLiteral creates a language-tagged literal.
func NewLangLiteral(value, lang string) Term {
	return Term{Kind: KindLiteral, Value: value, Lang: lang}
}

// IsIRI reports whether the term is an identifier.
func (t Term) IsIRI() bool { return t.Kind == KindIRI && t.Value != "" }

// IsBlank reports whether the term is a blank node.
func (t Term) IsBlank() bool { return t.Kind == KindBlank }

// IsLiteral reports whether the term is a literal.
func (t Term) IsLiteral() bool { return t.Kind == KindLiteral }

// IsZero reports whether the term is unset. Zero terms act as wildcards in patterns.
func (t Term) IsZero() bool { return t == Term{} }

// String renders the term in N-Triples syntax.
func (t Term) String() string {
	switch t.Kind {
	case KindBlank:
		return "_:" + t.Value
	case KindLiteral:
		lit := `"` + escapeString(t.Value) + `"`
		if t.Lang != "" {
			return lit + "@" + t.Lang
		}
		if t.Datatype != "" {
			return lit + "^^<" + t.Datatype + ">"
		}
		return lit
	default:
		return "<" + t.Value + ">"
	}
}

// Statement is a subject/predicate/object triple placed in a named graph.
// Statements are comparable and can be used as map keys.
type Statement struct {
	Subject   Term   `json:"s"`
	Predicate string `json:"p"`
	Object    Term   `json:"o"`
	Context   string `json:"c,omitempty"`
}

// New creates a statement without a context.
func New(subject Term, predicate string, object Term) Statement {
	return Statement{Subject: subject, Predicate: predicate, Object: object}
}

// NewIRIs creates a statement whose subject and object are both IRIs.
func NewIRIs(subject, predicate, object string) Statement {
	return Statement{Subject: NewIRI(subject), Predicate: predicate, Object: NewIRI(object)}
}

// WithContext returns a copy of the statement placed in the given graph.
func (s Statement) WithContext(context string) Statement {
	s.Context = context
	return s
}

// Validate checks that the statement is well formed.
func (s Statement) Validate() error {
	if s.Subject.Value == "" {
		return fmt.Errorf("statement has empty subject")
	}
	if s.Subject.IsLiteral() {
		return fmt.Errorf("statement subject %q is a literal", s.Subject.Value)
	}
	if s.Predicate == "" {
		return fmt.Errorf("statement %s has empty predicate", s.Subject)
	}
	if s.Object.Value == "" && !s.Object.IsLiteral() {
		return fmt.Errorf("statement %s <%s> has empty object", s.Subject, s.Predicate)
	}
	return nil
}

// String renders the statement as an N-Quads line without the trailing newline.
func (s Statement) String() string {
	var sb strings.Builder
	sb.WriteString(s.Subject.String())
	sb.WriteString(" <")
	sb.WriteString(s.Predicate)
	sb.WriteString("> ")
	sb.WriteString(s.Object.String())
	if s.Context != "" {
		sb.WriteString(" <")
		sb.WriteString(s.Context)
		sb.WriteString(">")
	}
	sb.WriteString(" .")
	return sb.String()
}

// WithContext re-homes every statement into the given graph.
func WithContext(stmts []Statement, context string) []Statement {
	out := make([]Statement, len(stmts))
	for i, st := range stmts {
		out[i] = st.WithContext(context)
	}
	return out
}

// Subjects returns the distinct IRI subjects of stmts in first-seen order.
func Subjects(stmts []Statement) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, st := range stmts {
		if !st.Subject.IsIRI() {
			continue
		}
		if _, ok := seen[st.Subject.Value]; ok {
			continue
		}
		seen[st.Subject.Value] = struct{}{}
		out = append(out, st.Subject.Value)
	}
	return out
}

// escapeString escapes special characters for N-Triples literals.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}
