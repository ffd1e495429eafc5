package filter

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLBrack
	tokRBrack
	tokLParen
	tokRParen
	tokComma
	tokString
	tokNumber
	tokIdent
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokLBrack:
		return "'['"
	case tokRBrack:
		return "']'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	case tokString:
		return "string"
	case tokNumber:
		return "number"
	case tokIdent:
		return "identifier"
	}
	return "unknown"
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lex splits a filter expression into tokens.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '[':
			toks = append(toks, token{kind: tokLBrack, pos: i})
			i++
		case c == ']':
			toks = append(toks, token{kind: tokRBrack, pos: i})
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, pos: i})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, pos: i})
			i++
		case c == '\'' || c == '"':
			s, n, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokString, text: s, pos: i})
			i = n
		case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
			n := lexNumber(src, i)
			if n == i {
				return nil, fmt.Errorf("unexpected character %q at %d", c, i)
			}
			toks = append(toks, token{kind: tokNumber, text: src[i:n], pos: i})
			i = n
		case unicode.IsLetter(rune(c)) || c == '_':
			n := i
			for n < len(src) && (unicode.IsLetter(rune(src[n])) || unicode.IsDigit(rune(src[n])) || src[n] == '_') {
				n++
			}
			toks = append(toks, token{kind: tokIdent, text: src[i:n], pos: i})
			i = n
		default:
			return nil, fmt.Errorf("unexpected character %q at %d", c, i)
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

func lexString(src string, start int) (string, int, error) {
	quoteChar := src[start]
	var b strings.Builder
	i := start + 1
	for i < len(src) {
		c := src[i]
		if c == quoteChar {
			return b.String(), i + 1, nil
		}
		if c == '\\' {
			if i+1 >= len(src) {
				break
			}
			i++
			switch src[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(src[i])
			}
			i++
			continue
		}
		b.WriteByte(c)
		i++
	}
	return "", 0, fmt.Errorf("unterminated string starting at %d", start)
}

func lexNumber(src string, start int) int {
	i := start
	if i < len(src) && (src[i] == '-' || src[i] == '+') {
		i++
	}
	digits := 0
	for i < len(src) && src[i] >= '0' && src[i] <= '9' {
		i++
		digits++
	}
	if i < len(src) && src[i] == '.' {
		i++
		for i < len(src) && src[i] >= '0' && src[i] <= '9' {
			i++
			digits++
		}
	}
	if digits == 0 {
		return start
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '-' || src[j] == '+') {
			j++
		}
		k := j
		for k < len(src) && src[k] >= '0' && src[k] <= '9' {
			k++
		}
		if k > j {
			i = k
		}
	}
	return i
}
