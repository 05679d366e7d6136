package tokens

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
)

// Tokenize scans text and returns a fresh stream over its tokens.
func Tokenize(text string) (*Stream, error) {
	tokens, err := NewLexer(text).Tokenize()
	if err != nil {
		return nil, err
	}
	return NewStream(tokens, len([]rune(text))), nil
}

// Lexer tokenizes filter expressions. Runs of characters that are not
// strings, numbers, brackets or punctuation accumulate in a buffer and are
// classified as a keyword, literal or identifier once a separator is hit.
type Lexer struct {
	src         []rune
	position    int
	buffer      strings.Builder
	bufferStart int
	tokens      []Token
}

func NewLexer(text string) *Lexer {
	return &Lexer{src: []rune(text)}
}

func (l *Lexer) Tokenize() ([]Token, error) {
	for l.position < len(l.src) {
		c := l.src[l.position]
		var err error
		switch {
		case unicode.IsSpace(c):
			err = l.flush()
			l.position++
		case l.buffer.Len() == 0 && l.isNumberStart():
			err = l.scanNumber()
		case c == '[':
			if err = l.flush(); err == nil {
				err = l.scanBracketed()
			}
		case c == '"' || c == '\'':
			if err = l.flush(); err == nil {
				err = l.scanString(c)
			}
		default:
			if kind, ok := punctuation[c]; ok {
				if err = l.flush(); err == nil {
					l.emit(kind, string(c), l.position)
					l.position++
				}
				break
			}
			if l.buffer.Len() == 0 {
				l.bufferStart = l.position
			}
			l.buffer.WriteRune(c)
			l.position++
		}
		if err != nil {
			return nil, err
		}
	}
	if err := l.flush(); err != nil {
		return nil, err
	}
	return l.tokens, nil
}

func (l *Lexer) emit(kind Kind, value string, position int) {
	l.tokens = append(l.tokens, Token{Kind: kind, Value: value, Position: position})
}

func (l *Lexer) isNumberStart() bool {
	c := l.src[l.position]
	if isDigit(c) {
		return true
	}
	return c == '.' && l.position+1 < len(l.src) && isDigit(l.src[l.position+1])
}

func (l *Lexer) scanNumber() error {
	start := l.position
	for l.position < len(l.src) && (isDigit(l.src[l.position]) || l.src[l.position] == '.') {
		l.position++
	}
	raw := string(l.src[start:l.position])
	if !strings.Contains(raw, ".") {
		if _, err := strconv.ParseInt(raw, 10, strconv.IntSize); err != nil {
			return failure.Lexicalf("Integer constant '%s' is out of range", raw).At(start)
		}
		l.emit(KindInteger, raw, start)
		return nil
	}
	if strings.Count(raw, ".") > 1 {
		return failure.Lexicalf("Invalid numeric constant '%s'", raw).At(start)
	}
	normalized := raw
	if strings.HasPrefix(normalized, ".") {
		normalized = "0" + normalized
	}
	if strings.HasSuffix(normalized, ".") {
		normalized += "0"
	}
	l.emit(KindDecimal, normalized, start)
	return nil
}

func (l *Lexer) scanBracketed() error {
	start := l.position
	l.position++
	end := l.position
	for end < len(l.src) && l.src[end] != ']' {
		end++
	}
	if end >= len(l.src) {
		return failure.Lexicalf("Non-terminated member expression").At(start)
	}
	l.emit(KindIdentifier, string(l.src[l.position:end]), start)
	l.position = end + 1
	return nil
}

func (l *Lexer) scanString(quote rune) error {
	start := l.position
	l.position++
	var sb strings.Builder
	for {
		if l.position >= len(l.src) {
			return failure.Lexicalf("Non-terminated string constant").At(start)
		}
		c := l.src[l.position]
		switch {
		case c == quote:
			l.position++
			l.emit(KindString, sb.String(), start)
			return nil
		case c == '\\':
			if l.position+1 >= len(l.src) {
				return failure.Lexicalf("Non-terminated string constant").At(start)
			}
			escaped := l.src[l.position+1]
			switch escaped {
			case 't':
				sb.WriteRune('\t')
			case 'n':
				sb.WriteRune('\n')
			case 'r':
				sb.WriteRune('\r')
			case '"', '\'':
				sb.WriteRune(escaped)
			default:
				return failure.Lexicalf("Invalid escape sequence: \\%c", escaped).At(l.position)
			}
			l.position += 2
		default:
			sb.WriteRune(c)
			l.position++
		}
	}
}

func (l *Lexer) flush() error {
	if l.buffer.Len() == 0 {
		return nil
	}
	word := l.buffer.String()
	l.buffer.Reset()
	start := l.bufferStart

	if kind, ok := keywords[word]; ok {
		l.emit(kind, word, start)
		return nil
	}
	switch word {
	case "null":
		l.emit(KindNull, word, start)
		return nil
	case "true":
		l.emit(KindTrue, word, start)
		return nil
	case "false":
		l.emit(KindFalse, word, start)
		return nil
	case ContextIdentifier:
		l.emit(KindIdentifier, word, start)
		return nil
	}
	if !IsPlainIdentifier(word) {
		err := failure.Lexicalf("Invalid identifier: '%s'", word).At(start)
		if kind, ok := hints[word]; ok {
			err = err.WithHint("Did you intend to use '" + string(kind) + "'?")
		}
		return err
	}
	l.emit(KindIdentifier, word, start)
	return nil
}

// IsPlainIdentifier reports whether name can be written without brackets.
func IsPlainIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, c := range name {
		if i == 0 {
			if !unicode.IsLetter(c) && c != '_' {
				return false
			}
			continue
		}
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
			return false
		}
	}
	_, reserved := keywords[name]
	return !reserved && name != "null" && name != "true" && name != "false"
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}
