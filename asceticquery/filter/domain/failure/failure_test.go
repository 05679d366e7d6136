package failure

import (
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
)

func TestError_Is(t *testing.T) {
	err := Coercionf("Operator '%s' cannot be applied", "+")
	if !errors.Is(err, ErrCoercion) {
		t.Fatal("expected coercion kind to match")
	}
	if errors.Is(err, ErrBinding) {
		t.Fatal("binding kind must not match")
	}
	wrapped := pkgerrors.Wrap(err, "sum()")
	if !errors.Is(wrapped, ErrCoercion) {
		t.Fatal("kind must match through wrappers")
	}
	if KindOf(wrapped) != Coercion {
		t.Fatalf("expected Coercion, got %v", KindOf(wrapped))
	}
	if KindOf(errors.New("plain")) != 0 {
		t.Fatal("plain errors have no kind")
	}
}

func TestError_Hint(t *testing.T) {
	err := Lexicalf("Invalid identifier: '%s'", "&&").WithHint("Did you intend to use 'and'?").At(4)
	if err.Error() != "Invalid identifier: '&&'. Did you intend to use 'and'?" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if err.Position != 4 {
		t.Fatalf("expected position 4, got %d", err.Position)
	}
}

func TestCause(t *testing.T) {
	inner := Argumentf("Division by zero")
	wrapped := pkgerrors.Wrapf(pkgerrors.Wrap(inner, "sum()"), "count()")
	if Cause(wrapped) != error(inner) {
		t.Fatalf("expected the innermost failure, got %v", Cause(wrapped))
	}
	if Cause(nil) != nil {
		t.Fatal("Cause(nil) must be nil")
	}
}
