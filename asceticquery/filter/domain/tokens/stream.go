package tokens

import (
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
)

// Stream is a forward-only cursor over tokens. Next, Expect, Match and
// MatchSequence are the only operations that move the cursor.
type Stream struct {
	tokens []Token
	ptr    int
	end    int
}

// NewStream wraps tokens; end is the source length used as the position of
// end-of-input errors.
func NewStream(tokens []Token, end int) *Stream {
	return &Stream{tokens: tokens, end: end}
}

func (s *Stream) Empty() bool {
	return s.ptr >= len(s.tokens)
}

// Peek returns the next token without consuming it.
func (s *Stream) Peek() (Token, bool) {
	if s.Empty() {
		return Token{}, false
	}
	return s.tokens[s.ptr], true
}

func (s *Stream) Next() (Token, error) {
	if s.Empty() {
		return Token{}, failure.Syntacticf("Unexpected end of filter expression").At(s.end)
	}
	tok := s.tokens[s.ptr]
	s.ptr++
	return tok, nil
}

func (s *Stream) Expect(kind Kind) (Token, error) {
	tok, err := s.Next()
	if err != nil {
		return Token{}, err
	}
	if tok.Kind != kind {
		return Token{}, failure.Syntacticf("Expected '%s' but found '%s'", kind, tok).At(tok.Position)
	}
	return tok, nil
}

// Match consumes the next token if its kind is one of kinds.
func (s *Stream) Match(kinds ...Kind) (Token, bool) {
	tok, ok := s.Peek()
	if !ok {
		return Token{}, false
	}
	for _, kind := range kinds {
		if tok.Kind == kind {
			s.ptr++
			return tok, true
		}
	}
	return Token{}, false
}

// MatchSequence consumes len(kinds) tokens if they match kinds in order,
// otherwise it consumes nothing.
func (s *Stream) MatchSequence(kinds ...Kind) ([]Token, bool) {
	if s.ptr+len(kinds) > len(s.tokens) {
		return nil, false
	}
	for i, kind := range kinds {
		if s.tokens[s.ptr+i].Kind != kind {
			return nil, false
		}
	}
	matched := s.tokens[s.ptr : s.ptr+len(kinds)]
	s.ptr += len(kinds)
	return matched, true
}
