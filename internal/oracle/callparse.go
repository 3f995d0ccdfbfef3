package oracle

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/xkilldash9x/pathwright/api/schemas"
)

// ParseCall reads the call-string form of a step, name(key='value', ...).
// Only keyword arguments are accepted, and only quoted strings, numbers and
// booleans as values. Nothing is ever evaluated.
func ParseCall(s string) (schemas.ToolCall, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '(')
	if open <= 0 || !strings.HasSuffix(s, ")") {
		return schemas.ToolCall{}, fmt.Errorf("not a call: %q", s)
	}
	name := strings.TrimSpace(s[:open])
	if !isIdent(name) {
		return schemas.ToolCall{}, fmt.Errorf("invalid tool name %q", name)
	}

	args, err := parseKwargs(s[open+1 : len(s)-1])
	if err != nil {
		return schemas.ToolCall{}, fmt.Errorf("%s: %w", name, err)
	}
	return schemas.ToolCall{Name: name, Args: args}, nil
}

type kwScanner struct {
	src string
	pos int
}

func parseKwargs(src string) (map[string]any, error) {
	sc := &kwScanner{src: src}
	args := make(map[string]any)
	for {
		sc.skipSpace()
		if sc.done() {
			return args, nil
		}

		key := sc.ident()
		if key == "" {
			return nil, fmt.Errorf("expected argument name at offset %d", sc.pos)
		}
		sc.skipSpace()
		if !sc.consume('=') {
			return nil, fmt.Errorf("expected '=' after %q", key)
		}
		sc.skipSpace()
		value, err := sc.value()
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", key, err)
		}
		if _, dup := args[key]; dup {
			return nil, fmt.Errorf("argument %q given twice", key)
		}
		args[key] = value

		sc.skipSpace()
		if sc.done() {
			return args, nil
		}
		if !sc.consume(',') {
			return nil, fmt.Errorf("expected ',' at offset %d", sc.pos)
		}
	}
}

func (sc *kwScanner) done() bool { return sc.pos >= len(sc.src) }

func (sc *kwScanner) skipSpace() {
	for !sc.done() && unicode.IsSpace(rune(sc.src[sc.pos])) {
		sc.pos++
	}
}

func (sc *kwScanner) consume(b byte) bool {
	if !sc.done() && sc.src[sc.pos] == b {
		sc.pos++
		return true
	}
	return false
}

func (sc *kwScanner) ident() string {
	start := sc.pos
	for !sc.done() {
		c := sc.src[sc.pos]
		if c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || (sc.pos > start && '0' <= c && c <= '9') {
			sc.pos++
			continue
		}
		break
	}
	return sc.src[start:sc.pos]
}

func (sc *kwScanner) value() (any, error) {
	if sc.done() {
		return nil, fmt.Errorf("missing value")
	}
	if q := sc.src[sc.pos]; q == '\'' || q == '"' {
		return sc.quoted(q)
	}

	start := sc.pos
	for !sc.done() && sc.src[sc.pos] != ',' && !unicode.IsSpace(rune(sc.src[sc.pos])) {
		sc.pos++
	}
	literal := sc.src[start:sc.pos]
	switch literal {
	case "true", "True":
		return true, nil
	case "false", "False":
		return false, nil
	}
	if f, err := strconv.ParseFloat(literal, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("unsupported literal %q", literal)
}

func (sc *kwScanner) quoted(q byte) (string, error) {
	sc.pos++
	var b strings.Builder
	for !sc.done() {
		c := sc.src[sc.pos]
		sc.pos++
		switch c {
		case q:
			return b.String(), nil
		case '\\':
			if sc.done() {
				return "", fmt.Errorf("unterminated escape")
			}
			e := sc.src[sc.pos]
			sc.pos++
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(e)
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", fmt.Errorf("unterminated string")
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
