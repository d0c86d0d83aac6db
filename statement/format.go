package statement

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
)

// Format specifies a serialization format.
type Format string

const (
	// FormatNTriples is line-based triples; contexts are dropped on write.
	FormatNTriples Format = "ntriples"

	// FormatNQuads is line-based quads.
	FormatNQuads Format = "nquads"

	// FormatTurtle is Turtle. Write only.
	FormatTurtle Format = "turtle"
)

// FormatInfo provides metadata about a format.
type FormatInfo struct {
	Name      Format
	MIMEType  string
	Extension string
	Readable  bool
}

// FormatRegistry contains metadata for all supported formats.
var FormatRegistry = map[Format]FormatInfo{
	FormatNTriples: {Name: FormatNTriples, MIMEType: "application/n-triples", Extension: ".nt", Readable: true},
	FormatNQuads:   {Name: FormatNQuads, MIMEType: "application/n-quads", Extension: ".nq", Readable: true},
	FormatTurtle:   {Name: FormatTurtle, MIMEType: "text/turtle", Extension: ".ttl"},
}

// ParseFormat resolves a format by name or file extension.
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, info := range FormatRegistry {
		if name == string(f) || name == info.Extension || "."+name == info.Extension {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported format: %s", name)
}

// FormatForPath picks the format from a file extension.
func FormatForPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// DefaultPrefixes are the namespace prefixes used when writing Turtle.
func DefaultPrefixes() map[string]string {
	return map[string]string{
		"rdf":  "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
		"rdfs": "http://www.w3.org/2000/01/rdf-schema#",
		"owl":  "http://www.w3.org/2002/07/owl#",
		"xsd":  "http://www.w3.org/2001/XMLSchema#",
		"dc":   "http://purl.org/dc/terms/",
		"omv":  "http://omv.ontoware.org/2005/05/ontology#",
	}
}

// Write serializes stmts in the given format.
func Write(w io.Writer, stmts []Statement, format Format) error {
	bw := bufio.NewWriter(w)
	var err error
	switch format {
	case FormatNTriples:
		err = writeLines(bw, stmts, false)
	case FormatNQuads:
		err = writeLines(bw, stmts, true)
	case FormatTurtle:
		err = writeTurtle(bw, stmts, DefaultPrefixes())
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return err
	}
	return bw.Flush()
}

// FormatString serializes stmts to a string.
func FormatString(stmts []Statement, format Format) (string, error) {
	var sb strings.Builder
	if err := Write(&sb, stmts, format); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func writeLines(w *bufio.Writer, stmts []Statement, quads bool) error {
	for _, st := range stmts {
		if !quads {
			st.Context = ""
		}
		if _, err := w.WriteString(st.String() + "\n"); err != nil {
			return fmt.Errorf("write statement: %w", err)
		}
	}
	return nil
}

// writeTurtle groups statements by subject in first-seen order.
func writeTurtle(w *bufio.Writer, stmts []Statement, prefixes map[string]string) error {
	keys := make([]string, 0, len(prefixes))
	for k := range prefixes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, prefix := range keys {
		fmt.Fprintf(w, "@prefix %s: <%s> .\n", prefix, prefixes[prefix])
	}
	w.WriteString("\n")

	var subjects []Term
	bySubject := make(map[Term][]Statement)
	for _, st := range stmts {
		if _, ok := bySubject[st.Subject]; !ok {
			subjects = append(subjects, st.Subject)
		}
		bySubject[st.Subject] = append(bySubject[st.Subject], st)
	}

	for _, subj := range subjects {
		group := bySubject[subj]
		w.WriteString(compactTerm(subj, prefixes) + "\n")
		for i, st := range group {
			pred := compactIRI(st.Predicate, prefixes)
			if st.Predicate == "http://www.w3.org/1999/02/22-rdf-syntax-ns#type" {
				pred = "a"
			}
			fmt.Fprintf(w, "    %s %s", pred, compactTerm(st.Object, prefixes))
			if i < len(group)-1 {
				w.WriteString(" ;\n")
			} else {
				w.WriteString(" .\n")
			}
		}
		if _, err := w.WriteString("\n"); err != nil {
			return fmt.Errorf("write turtle: %w", err)
		}
	}
	return nil
}

func compactTerm(t Term, prefixes map[string]string) string {
	switch t.Kind {
	case KindIRI:
		return compactIRI(t.Value, prefixes)
	case KindLiteral:
		if t.Datatype != "" && t.Lang == "" {
			return `"` + escapeString(t.Value) + `"^^` + compactIRI(t.Datatype, prefixes)
		}
	}
	return t.String()
}

func compactIRI(iri string, prefixes map[string]string) string {
	for prefix, ns := range prefixes {
		local, ok := strings.CutPrefix(iri, ns)
		if ok && isLocalName(local) {
			return prefix + ":" + local
		}
	}
	return "<" + iri + ">"
}

func isLocalName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isAlnum(c) && c != '_' && c != '-' {
			return false
		}
	}
	return true
}
