// Package syntax holds the abstract syntax tree of filter expressions and
// the recursive-descent parser that builds it.
package syntax

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/tokens"
)

// Node is a closed set of syntax variants; only this package implements it.
type Node interface {
	String() string
	node()
}

type UnaryOp int

const (
	Not UnaryOp = iota + 1
	Negate
)

func (op UnaryOp) String() string {
	if op == Not {
		return "not"
	}
	return "-"
}

type BinaryOp int

const (
	Or BinaryOp = iota + 1
	And
	Equal
	NotEqual
	Greater
	GreaterOrEqual
	Less
	LessOrEqual
	Add
	Subtract
	Multiply
	Divide
	Modulo
)

var binarySymbols = map[BinaryOp]string{
	Or:             "or",
	And:            "and",
	Equal:          "eq",
	NotEqual:       "neq",
	Greater:        "gt",
	GreaterOrEqual: "gte",
	Less:           "lt",
	LessOrEqual:    "lte",
	Add:            "+",
	Subtract:       "-",
	Multiply:       "*",
	Divide:         "/",
	Modulo:         "%",
}

func (op BinaryOp) String() string {
	return binarySymbols[op]
}

func (op BinaryOp) IsLogical() bool {
	return op == Or || op == And
}

func (op BinaryOp) IsEquality() bool {
	return op == Equal || op == NotEqual
}

func (op BinaryOp) IsComparison() bool {
	return op >= Equal && op <= LessOrEqual
}

func (op BinaryOp) IsArithmetic() bool {
	return op >= Add && op <= Modulo
}

// Constant is a literal: nil (null), bool, int, apd.Decimal or string.
type Constant struct {
	Value any
}

type Identifier struct {
	Name string
}

// MemberAccess reads Name from Target; a nil Target means the record under test.
type MemberAccess struct {
	Name   string
	Target Node
}

type Unary struct {
	Op      UnaryOp
	Operand Node
}

type Binary struct {
	Op    BinaryOp
	Left  Node
	Right Node
}

// Lambda binds Parameter over Body. Parameter is empty for the anonymous
// lambdas built around filtered include expressions.
type Lambda struct {
	Parameter string
	Body      Node
}

type Call struct {
	Target Node
	Args   []Node
}

func (*Constant) node()     {}
func (*Identifier) node()   {}
func (*MemberAccess) node() {}
func (*Unary) node()        {}
func (*Binary) node()       {}
func (*Lambda) node()       {}
func (*Call) node()         {}

func (n *Constant) String() string {
	switch v := n.Value.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case apd.Decimal:
		text := v.Text('f')
		if !strings.Contains(text, ".") {
			text += ".0"
		}
		return text
	case string:
		return quote(v)
	}
	return "null"
}

func (n *Identifier) String() string {
	return renderName(n.Name)
}

func (n *MemberAccess) String() string {
	if n.Target == nil {
		return renderName(n.Name)
	}
	return n.Target.String() + "." + renderName(n.Name)
}

func (n *Unary) String() string {
	if n.Op == Not {
		return "(not " + n.Operand.String() + ")"
	}
	return "(-" + n.Operand.String() + ")"
}

func (n *Binary) String() string {
	return "(" + n.Left.String() + " " + n.Op.String() + " " + n.Right.String() + ")"
}

func (n *Lambda) String() string {
	if n.Parameter == "" {
		return n.Body.String()
	}
	return "(" + renderName(n.Parameter) + ": " + n.Body.String() + ")"
}

func (n *Call) String() string {
	args := make([]string, len(n.Args))
	for i := range n.Args {
		args[i] = n.Args[i].String()
	}
	return n.Target.String() + "(" + strings.Join(args, ", ") + ")"
}

// KindName names the variant of n for diagnostics.
func KindName(n Node) string {
	switch n.(type) {
	case *Constant:
		return "Constant"
	case *Identifier:
		return "Identifier"
	case *MemberAccess:
		return "MemberAccess"
	case *Unary:
		return "Unary"
	case *Binary:
		return "Binary"
	case *Lambda:
		return "Lambda"
	case *Call:
		return "Call"
	}
	return "Unknown"
}

func renderName(name string) string {
	if name == tokens.ContextIdentifier || tokens.IsPlainIdentifier(name) {
		return name
	}
	return "[" + name + "]"
}

var quoteReplacer = strings.NewReplacer("\t", `\t`, "\n", `\n`, "\r", `\r`, `"`, `\"`)

func quote(s string) string {
	return `"` + quoteReplacer.Replace(s) + `"`
}
