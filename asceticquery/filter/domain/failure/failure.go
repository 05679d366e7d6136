package failure

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind categorizes a filter failure by the stage that detected it.
type Kind int

const (
	// Lexical: unterminated string or bracket, invalid escape, invalid identifier.
	Lexical Kind = iota + 1
	// Syntactic: unexpected token, unexpected end of input, trailing content.
	Syntactic
	// Binding: unknown member, redeclared parameter, missing ambient context.
	Binding
	// Dispatch: unknown function or no matching overload.
	Dispatch
	// Coercion: unsupported operand type pair.
	Coercion
	// Argument: function specific precondition failure.
	Argument
)

func (k Kind) String() string {
	switch k {
	case Lexical:
		return "lexical"
	case Syntactic:
		return "syntactic"
	case Binding:
		return "binding"
	case Dispatch:
		return "dispatch"
	case Coercion:
		return "coercion"
	case Argument:
		return "argument"
	}
	return "unknown"
}

var (
	ErrLexical   = &Error{Kind: Lexical}
	ErrSyntactic = &Error{Kind: Syntactic}
	ErrBinding   = &Error{Kind: Binding}
	ErrDispatch  = &Error{Kind: Dispatch}
	ErrCoercion  = &Error{Kind: Coercion}
	ErrArgument  = &Error{Kind: Argument}
)

// Error is a failure raised while compiling or evaluating a filter.
type Error struct {
	Kind Kind

	// Message identifies the offending token or expression.
	Message string

	// Hint is an optional suggestion appended to the message.
	Hint string

	// Position is the rune offset in the source text, -1 when unknown.
	Position int
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return e.Message + ". " + e.Hint
	}
	return e.Message
}

// Is matches kind sentinels: errors.Is(err, failure.ErrCoercion).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message == "" {
		return t.Kind == e.Kind
	}
	return t == e
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Position: -1,
	}
}

func Lexicalf(format string, args ...any) *Error   { return newError(Lexical, format, args...) }
func Syntacticf(format string, args ...any) *Error { return newError(Syntactic, format, args...) }
func Bindingf(format string, args ...any) *Error   { return newError(Binding, format, args...) }
func Dispatchf(format string, args ...any) *Error  { return newError(Dispatch, format, args...) }
func Coercionf(format string, args ...any) *Error  { return newError(Coercion, format, args...) }
func Argumentf(format string, args ...any) *Error  { return newError(Argument, format, args...) }

// WithHint returns a copy of e carrying hint.
func (e *Error) WithHint(hint string) *Error {
	c := *e
	c.Hint = hint
	return &c
}

// At returns a copy of e carrying the source position.
func (e *Error) At(position int) *Error {
	c := *e
	c.Position = position
	return &c
}

// KindOf reports the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// Cause strips invocation wrappers and returns the most specific
// underlying failure.
func Cause(err error) error {
	if err == nil {
		return nil
	}
	return errors.Cause(err)
}
