package tokens

import (
	"errors"
	"testing"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
)

func TestStream_NextAtEnd(t *testing.T) {
	s, err := Tokenize("a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Next(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = s.Next()
	if !errors.Is(err, failure.ErrSyntactic) {
		t.Fatalf("expected syntactic error, got %v", err)
	}
	if err.Error() != "Unexpected end of filter expression" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestStream_Expect(t *testing.T) {
	s, _ := Tokenize("( x")
	if _, err := s.Expect(KindLParen); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := s.Expect(KindRParen)
	if err == nil || err.Error() != "Expected ')' but found 'x'" {
		t.Errorf("unexpected error %v", err)
	}
}

func TestStream_MatchSequenceDoesNotConsumeOnMismatch(t *testing.T) {
	s, _ := Tokenize("e . Grade")
	if _, ok := s.MatchSequence(KindIdentifier, KindColon); ok {
		t.Fatal("expected no match")
	}
	tok, ok := s.Match(KindIdentifier)
	if !ok || tok.Value != "e" {
		t.Fatalf("expected identifier e, got %#v", tok)
	}
	if _, ok := s.MatchSequence(KindDot, KindIdentifier, KindColon); ok {
		t.Fatal("expected no match past the end")
	}
	if _, ok := s.MatchSequence(KindDot, KindIdentifier); !ok {
		t.Fatal("expected a match")
	}
	if !s.Empty() {
		t.Error("expected the stream to be exhausted")
	}
}
