// Package tokens splits filter text into tokens and exposes them as a
// forward-only stream for the parser.
package tokens

import (
	"fmt"
	"strconv"
)

// Kind represents the type of a token.
type Kind string

const (
	KindTrue       Kind = "true"
	KindFalse      Kind = "false"
	KindInteger    Kind = "INTEGER"
	KindDecimal    Kind = "DECIMAL"
	KindString     Kind = "STRING"
	KindNull       Kind = "null"
	KindIdentifier Kind = "IDENTIFIER"

	KindEq  Kind = "eq"
	KindNeq Kind = "neq"
	KindGt  Kind = "gt"
	KindLt  Kind = "lt"
	KindGte Kind = "gte"
	KindLte Kind = "lte"
	KindAnd Kind = "and"
	KindOr  Kind = "or"
	KindNot Kind = "not"

	KindLParen  Kind = "("
	KindRParen  Kind = ")"
	KindDot     Kind = "."
	KindColon   Kind = ":"
	KindComma   Kind = ","
	KindPlus    Kind = "+"
	KindMinus   Kind = "-"
	KindStar    Kind = "*"
	KindSlash   Kind = "/"
	KindPercent Kind = "%"
)

// ContextIdentifier is the reserved identifier of the ambient context value.
const ContextIdentifier = "$"

var keywords = map[string]Kind{
	"eq":  KindEq,
	"neq": KindNeq,
	"gt":  KindGt,
	"lt":  KindLt,
	"gte": KindGte,
	"lte": KindLte,
	"and": KindAnd,
	"or":  KindOr,
	"not": KindNot,
}

var punctuation = map[rune]Kind{
	'(': KindLParen,
	')': KindRParen,
	'.': KindDot,
	':': KindColon,
	',': KindComma,
	'+': KindPlus,
	'-': KindMinus,
	'*': KindStar,
	'/': KindSlash,
	'%': KindPercent,
}

// Symbols people type out of habit, mapped to the keyword they meant.
var hints = map[string]Kind{
	">":  KindGt,
	"<":  KindLt,
	">=": KindGte,
	"<=": KindLte,
	"=":  KindEq,
	"!=": KindNeq,
	"!":  KindNot,
	"||": KindOr,
	"&&": KindAnd,
}

// Token is one lexical unit. Value holds the raw text for literals and
// identifiers; decimal values are normalized to always carry digits on
// both sides of the point.
type Token struct {
	Kind     Kind
	Value    string
	Position int
}

func (t Token) String() string {
	switch t.Kind {
	case KindString:
		return strconv.Quote(t.Value)
	case KindIdentifier, KindInteger, KindDecimal:
		return t.Value
	}
	return string(t.Kind)
}

// GoString is used by %#v in diagnostics.
func (t Token) GoString() string {
	return fmt.Sprintf("Token(%s, %q, %d)", t.Kind, t.Value, t.Position)
}
