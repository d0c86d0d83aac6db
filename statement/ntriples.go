package statement

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxLineSize bounds a single N-Quads line; literals can be long.
const maxLineSize = 4 * 1024 * 1024

// SyntaxError reports a malformed line.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Parse reads N-Triples or N-Quads from r. Statements without a graph term
// are placed in defaultContext.
func Parse(r io.Reader, defaultContext string) ([]Statement, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var out []Statement
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		st, ok, err := parseLine(scanner.Text())
		if err != nil {
			return nil, &SyntaxError{Line: lineNo, Msg: err.Error()}
		}
		if !ok {
			continue
		}
		if st.Context == "" {
			st.Context = defaultContext
		}
		out = append(out, st)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read statements: %w", err)
	}
	return out, nil
}

// ParseString is Parse over a string.
func ParseString(s, defaultContext string) ([]Statement, error) {
	return Parse(strings.NewReader(s), defaultContext)
}

type lexer struct {
	s   string
	pos int
}

func parseLine(line string) (Statement, bool, error) {
	lx := &lexer{s: line}
	lx.skipSpace()
	if lx.done() || lx.peek() == '#' {
		return Statement{}, false, nil
	}

	var st Statement
	subj, err := lx.term()
	if err != nil {
		return st, false, fmt.Errorf("subject: %w", err)
	}
	if subj.IsLiteral() {
		return st, false, fmt.Errorf("subject: literal not allowed")
	}
	st.Subject = subj

	lx.skipSpace()
	pred, err := lx.term()
	if err != nil {
		return st, false, fmt.Errorf("predicate: %w", err)
	}
	if pred.Kind != KindIRI {
		return st, false, fmt.Errorf("predicate: must be an IRI")
	}
	st.Predicate = pred.Value

	lx.skipSpace()
	if st.Object, err = lx.term(); err != nil {
		return st, false, fmt.Errorf("object: %w", err)
	}

	lx.skipSpace()
	if !lx.done() && lx.peek() == '<' {
		graph, err := lx.term()
		if err != nil {
			return st, false, fmt.Errorf("graph: %w", err)
		}
		st.Context = graph.Value
		lx.skipSpace()
	}

	if lx.done() || lx.peek() != '.' {
		return st, false, fmt.Errorf("expected '.' at column %d", lx.pos+1)
	}
	lx.pos++
	lx.skipSpace()
	if !lx.done() && lx.peek() != '#' {
		return st, false, fmt.Errorf("unexpected trailing content %q", lx.s[lx.pos:])
	}
	return st, true, nil
}

func (lx *lexer) done() bool { return lx.pos >= len(lx.s) }

func (lx *lexer) peek() byte { return lx.s[lx.pos] }

func (lx *lexer) skipSpace() {
	for !lx.done() && (lx.peek() == ' ' || lx.peek() == '\t') {
		lx.pos++
	}
}

func (lx *lexer) term() (Term, error) {
	if lx.done() {
		return Term{}, fmt.Errorf("unexpected end of line")
	}
	switch lx.peek() {
	case '<':
		iri, err := lx.iri()
		return NewIRI(iri), err
	case '_':
		return lx.blank()
	case '"':
		return lx.literal()
	default:
		return Term{}, fmt.Errorf("unexpected character %q at column %d", lx.peek(), lx.pos+1)
	}
}

func (lx *lexer) iri() (string, error) {
	end := strings.IndexByte(lx.s[lx.pos:], '>')
	if end < 0 {
		return "", fmt.Errorf("unterminated IRI")
	}
	raw := lx.s[lx.pos+1 : lx.pos+end]
	lx.pos += end + 1
	if raw == "" {
		return "", fmt.Errorf("empty IRI")
	}
	if strings.ContainsAny(raw, " \t\"{}|^`") {
		return "", fmt.Errorf("invalid character in IRI %q", raw)
	}
	return unescape(raw)
}

func (lx *lexer) blank() (Term, error) {
	if !strings.HasPrefix(lx.s[lx.pos:], "_:") {
		return Term{}, fmt.Errorf("malformed blank node")
	}
	start := lx.pos + 2
	end := start
	for end < len(lx.s) && isLabelChar(lx.s[end]) {
		end++
	}
	// a label cannot end with '.', that is the statement terminator
	for end > start && lx.s[end-1] == '.' {
		end--
	}
	if end == start {
		return Term{}, fmt.Errorf("empty blank node label")
	}
	lx.pos = end
	return NewBlank(lx.s[start:end]), nil
}

func isLabelChar(c byte) bool {
	return c == '_' || c == '-' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
		c >= utf8.RuneSelf
}

func (lx *lexer) literal() (Term, error) {
	i := lx.pos + 1
	for i < len(lx.s) {
		if lx.s[i] == '\\' {
			i += 2
			continue
		}
		if lx.s[i] == '"' {
			break
		}
		i++
	}
	if i >= len(lx.s) {
		return Term{}, fmt.Errorf("unterminated literal")
	}
	value, err := unescape(lx.s[lx.pos+1 : i])
	if err != nil {
		return Term{}, err
	}
	lx.pos = i + 1

	if strings.HasPrefix(lx.s[lx.pos:], "^^") {
		lx.pos += 2
		if lx.done() || lx.peek() != '<' {
			return Term{}, fmt.Errorf("datatype must be an IRI")
		}
		dt, err := lx.iri()
		if err != nil {
			return Term{}, fmt.Errorf("datatype: %w", err)
		}
		return NewTypedLiteral(value, dt), nil
	}
	if !lx.done() && lx.peek() == '@' {
		start := lx.pos + 1
		end := start
		for end < len(lx.s) && (isAlnum(lx.s[end]) || lx.s[end] == '-') {
			end++
		}
		if end == start {
			return Term{}, fmt.Errorf("empty language tag")
		}
		lx.pos = end
		return NewLangLiteral(value, lx.s[start:end]), nil
	}
	return NewLiteral(value), nil
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func unescape(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			return "", fmt.Errorf("dangling escape")
		}
		i++
		switch s[i] {
		case 't':
			sb.WriteByte('\t')
		case 'b':
			sb.WriteByte('\b')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 'f':
			sb.WriteByte('\f')
		case '"', '\'', '\\':
			sb.WriteByte(s[i])
		case 'u', 'U':
			width := 4
			if s[i] == 'U' {
				width = 8
			}
			if i+1+width > len(s) {
				return "", fmt.Errorf("short unicode escape")
			}
			code, err := strconv.ParseUint(s[i+1:i+1+width], 16, 32)
			if err != nil {
				return "", fmt.Errorf("invalid unicode escape: %w", err)
			}
			sb.WriteRune(rune(code))
			i += width
		default:
			return "", fmt.Errorf("unknown escape \\%c", s[i])
		}
	}
	return sb.String(), nil
}
