// Package expression is the compiled form of a filter: a typed tree that
// can be evaluated against a record or rendered by a visitor such as the
// SQL compiler.
package expression

import (
	"reflect"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/expression/operators"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/typeinfo"
)

type Associativity string

const (
	LeftAssociative  Associativity = "LEFT"
	RightAssociative Associativity = "RIGHT"
	NonAssociative   Associativity = "NON"
)

type Operable interface {
	Associativity() Associativity
	Operator() operators.Operator
}

type Visitable interface {
	Accept(Visitor) error
}

// Expression is a typed node of the compiled tree.
type Expression interface {
	Visitable
	Type() reflect.Type
}

type Visitor interface {
	VisitConstant(ConstantNode) error
	VisitParameter(ParameterNode) error
	VisitContext(ContextNode) error
	VisitMember(MemberNode) error
	VisitConvert(ConvertNode) error
	VisitPrefix(PrefixNode) error
	VisitInfix(InfixNode) error
	VisitLambda(LambdaNode) error
	VisitCall(CallNode) error
}

// GlobalParameterName names the parameter bound to the record under test.
const GlobalParameterName = "@"

func Constant(value any, typ reflect.Type) ConstantNode {
	return ConstantNode{
		value: value,
		typ:   typ,
	}
}

// Null is the untyped null literal.
func Null() ConstantNode {
	return Constant(nil, typeinfo.TypeNull)
}

type ConstantNode struct {
	value any
	typ   reflect.Type
}

func (n ConstantNode) Value() any {
	return n.value
}

func (n ConstantNode) Type() reflect.Type {
	return n.typ
}

func (n ConstantNode) Accept(v Visitor) error {
	return v.VisitConstant(n)
}

func Parameter(name string, typ reflect.Type) ParameterNode {
	return ParameterNode{
		name: name,
		typ:  typ,
	}
}

type ParameterNode struct {
	name string
	typ  reflect.Type
}

func (n ParameterNode) Name() string {
	return n.name
}

func (n ParameterNode) IsGlobal() bool {
	return n.name == GlobalParameterName
}

func (n ParameterNode) Type() reflect.Type {
	return n.typ
}

func (n ParameterNode) Accept(v Visitor) error {
	return v.VisitParameter(n)
}

// Context references the ambient value supplied by the caller.
func Context(typ reflect.Type) ContextNode {
	return ContextNode{
		typ: typ,
	}
}

type ContextNode struct {
	typ reflect.Type
}

func (n ContextNode) Type() reflect.Type {
	return n.typ
}

func (n ContextNode) Accept(v Visitor) error {
	return v.VisitContext(n)
}

func Member(target Expression, field reflect.StructField) MemberNode {
	return MemberNode{
		target: target,
		field:  field,
	}
}

type MemberNode struct {
	target Expression
	field  reflect.StructField
}

func (n MemberNode) Target() Expression {
	return n.target
}

func (n MemberNode) Name() string {
	return n.field.Name
}

func (n MemberNode) Field() reflect.StructField {
	return n.field
}

func (n MemberNode) Type() reflect.Type {
	return n.field.Type
}

func (n MemberNode) Accept(v Visitor) error {
	return v.VisitMember(n)
}

// Convert changes the static type of operand, e.g. widening int to int64
// or lifting *int to int.
func Convert(operand Expression, typ reflect.Type) ConvertNode {
	return ConvertNode{
		operand: operand,
		typ:     typ,
	}
}

type ConvertNode struct {
	operand Expression
	typ     reflect.Type
}

func (n ConvertNode) Operand() Expression {
	return n.operand
}

func (n ConvertNode) Type() reflect.Type {
	return n.typ
}

func (n ConvertNode) Accept(v Visitor) error {
	return v.VisitConvert(n)
}

func Not(operand Expression) PrefixNode {
	return NewPrefixNode(operators.OperatorNot, operand, operand.Type())
}

func Neg(operand Expression) PrefixNode {
	return NewPrefixNode(operators.OperatorNeg, operand, operand.Type())
}

func NewPrefixNode(operator operators.Operator, operand Expression, typ reflect.Type) PrefixNode {
	return PrefixNode{
		operator:      operator,
		operand:       operand,
		typ:           typ,
		associativity: RightAssociative,
	}
}

type PrefixNode struct {
	operator      operators.Operator
	operand       Expression
	typ           reflect.Type
	associativity Associativity
}

func (n PrefixNode) Operand() Expression {
	return n.operand
}

func (n PrefixNode) Operator() operators.Operator {
	return n.operator
}

func (n PrefixNode) Associativity() Associativity {
	return n.associativity
}

func (n PrefixNode) Type() reflect.Type {
	return n.typ
}

func (n PrefixNode) Accept(v Visitor) error {
	return v.VisitPrefix(n)
}

func NewInfixNode(left Expression, operator operators.Operator, right Expression, typ reflect.Type) InfixNode {
	associativity := LeftAssociative
	if operator.IsComparison() {
		associativity = NonAssociative
	}
	return InfixNode{
		left:          left,
		operator:      operator,
		right:         right,
		typ:           typ,
		associativity: associativity,
	}
}

func And(left, right Expression) InfixNode {
	return NewInfixNode(left, operators.OperatorAnd, right, typeinfo.TypeBool)
}

func Or(left, right Expression) InfixNode {
	return NewInfixNode(left, operators.OperatorOr, right, typeinfo.TypeBool)
}

func Equal(left, right Expression) InfixNode {
	return NewInfixNode(left, operators.OperatorEq, right, typeinfo.TypeBool)
}

type InfixNode struct {
	left          Expression
	operator      operators.Operator
	right         Expression
	typ           reflect.Type
	associativity Associativity
}

func (n InfixNode) Left() Expression {
	return n.left
}

func (n InfixNode) Operator() operators.Operator {
	return n.operator
}

func (n InfixNode) Right() Expression {
	return n.right
}

func (n InfixNode) Associativity() Associativity {
	return n.associativity
}

func (n InfixNode) Type() reflect.Type {
	return n.typ
}

func (n InfixNode) Accept(v Visitor) error {
	return v.VisitInfix(n)
}

func Lambda(parameter ParameterNode, body Expression) LambdaNode {
	return LambdaNode{
		parameter: parameter,
		body:      body,
	}
}

// LambdaNode is a single-parameter function. Evaluated, it yields a Func.
type LambdaNode struct {
	parameter ParameterNode
	body      Expression
}

func (n LambdaNode) Parameter() ParameterNode {
	return n.parameter
}

func (n LambdaNode) Body() Expression {
	return n.body
}

func (n LambdaNode) Type() reflect.Type {
	return reflect.FuncOf([]reflect.Type{n.parameter.Type()}, []reflect.Type{n.body.Type()}, false)
}

func (n LambdaNode) Accept(v Visitor) error {
	return v.VisitLambda(n)
}

// Func is the runtime value of a lambda.
type Func func(arg any) (any, error)

// Impl evaluates a function call from its evaluated arguments. Lambda
// arguments arrive as Func.
type Impl func(args []any) (any, error)

func Call(name string, args []Expression, typ reflect.Type, impl Impl) CallNode {
	return CallNode{
		name: name,
		args: args,
		typ:  typ,
		impl: impl,
	}
}

type CallNode struct {
	name string
	args []Expression
	typ  reflect.Type
	impl Impl
}

// Name is the canonical (lower case) function name.
func (n CallNode) Name() string {
	return n.name
}

func (n CallNode) Args() []Expression {
	return n.args
}

func (n CallNode) Impl() Impl {
	return n.impl
}

func (n CallNode) Type() reflect.Type {
	return n.typ
}

func (n CallNode) Accept(v Visitor) error {
	return v.VisitCall(n)
}
