// Package compiler turns a syntax tree into a typed expression tree bound
// to a record type.
package compiler

import (
	"reflect"
	"strings"
	"time"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/coercion"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/expression"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/expression/operators"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/functions"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/scope"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/syntax"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/tokens"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/typeinfo"
)

type Option func(*Compiler)

func WithFunctions(t *functions.Table) Option {
	return func(c *Compiler) {
		c.table = t
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Compiler) {
		c.clock = now
	}
}

// WithContextType makes `$` resolvable with static type t.
func WithContextType(t reflect.Type) Option {
	return func(c *Compiler) {
		c.scopeOpts = append(c.scopeOpts, scope.WithContext(t))
	}
}

// Compiler is single use: one compiler per filter text.
type Compiler struct {
	scope     *scope.Scope
	scopeOpts []scope.Option
	table     *functions.Table
	clock     func() time.Time
}

func New(recordType reflect.Type, opts ...Option) *Compiler {
	c := &Compiler{
		table: functions.Default(),
		clock: time.Now,
	}
	for i := range opts {
		opts[i](c)
	}
	c.scope = scope.New(recordType, c.scopeOpts...)
	return c
}

// CompilePredicate compiles n as a predicate over the record type.
func (c *Compiler) CompilePredicate(n syntax.Node) (expression.LambdaNode, error) {
	body, err := c.Compile(n)
	if err != nil {
		return expression.LambdaNode{}, err
	}
	if t := body.Type(); typeinfo.Core(t).Kind() != reflect.Bool && !typeinfo.IsNull(t) {
		return expression.LambdaNode{}, failure.Coercionf("Filter expression %s must be of type bool, not %s", n, typeinfo.Name(t))
	}
	return expression.Lambda(c.scope.Global(), body), nil
}

func (c *Compiler) Clock() func() time.Time {
	return c.clock
}

func (c *Compiler) Compile(n syntax.Node) (expression.Expression, error) {
	switch n := n.(type) {
	case *syntax.Constant:
		if n.Value == nil {
			return expression.Null(), nil
		}
		return expression.Constant(n.Value, reflect.TypeOf(n.Value)), nil
	case *syntax.Identifier:
		return c.compileName(n.Name)
	case *syntax.MemberAccess:
		if n.Target == nil {
			return c.compileName(n.Name)
		}
		target, err := c.Compile(n.Target)
		if err != nil {
			return nil, err
		}
		return member(target, n.Name)
	case *syntax.Unary:
		return c.compileUnary(n)
	case *syntax.Binary:
		return c.compileBinary(n)
	case *syntax.Lambda:
		return nil, failure.Bindingf("Lambda expression %s is only allowed as a function argument", n)
	case *syntax.Call:
		return c.compileCall(n)
	}
	return nil, failure.Syntacticf("Unsupported node %s", syntax.KindName(n))
}

// CompileLambda compiles n as a function of one parameter of type param.
func (c *Compiler) CompileLambda(n syntax.Node, param reflect.Type) (expression.LambdaNode, error) {
	name := ""
	body := n
	if l, ok := n.(*syntax.Lambda); ok {
		name, body = l.Parameter, l.Body
	}
	p, release, err := c.scope.Enter(name, param)
	if err != nil {
		return expression.LambdaNode{}, err
	}
	defer release()
	compiled, err := c.Compile(body)
	if err != nil {
		return expression.LambdaNode{}, err
	}
	return expression.Lambda(p, compiled), nil
}

// compileName resolves a bare name: the context, an active lambda
// parameter, or a member of the current record.
func (c *Compiler) compileName(name string) (expression.Expression, error) {
	if name == tokens.ContextIdentifier {
		return c.scope.Context()
	}
	if p, ok := c.scope.Lookup(name); ok {
		return p, nil
	}
	return member(c.scope.Current(), name)
}

func member(target expression.Expression, name string) (expression.Expression, error) {
	t := typeinfo.Core(target.Type())
	if !typeinfo.IsRecord(t) {
		return nil, failure.Bindingf("Unable to bind identifier '%s' on value of type %s", name, typeinfo.Name(t))
	}
	field, err := LookupField(t, name)
	if err != nil {
		return nil, err
	}
	return expression.Member(target, field), nil
}

// LookupField matches the exported field name exactly, then a `filter`
// struct tag (the way to name members that need brackets, such as
// [Full Name]), then falls back to a unique case-insensitive match.
func LookupField(t reflect.Type, name string) (reflect.StructField, error) {
	if f, ok := t.FieldByName(name); ok && f.IsExported() {
		return f, nil
	}
	var (
		matches []reflect.StructField
		names   []string
	)
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		if f.Tag.Get("filter") == name {
			return f, nil
		}
		names = append(names, f.Name)
		if strings.EqualFold(f.Name, name) {
			matches = append(matches, f)
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	err := failure.Bindingf("Unable to bind identifier '%s'", name)
	if len(matches) > 1 {
		return reflect.StructField{}, err.WithHint("The name is ambiguous")
	}
	if closest := functions.Closest(name, names); closest != "" {
		err = err.WithHint("Did you mean '" + closest + "'?")
	}
	return reflect.StructField{}, err
}

func (c *Compiler) compileUnary(n *syntax.Unary) (expression.Expression, error) {
	operand, err := c.Compile(n.Operand)
	if err != nil {
		return nil, err
	}
	var result expression.PrefixNode
	switch n.Op {
	case syntax.Not:
		if operand, err = coercion.Boolean(operators.OperatorNot, operand); err != nil {
			return nil, err
		}
		result = expression.NewPrefixNode(operators.OperatorNot, operand, typeinfo.TypeBool)
	case syntax.Negate:
		if operand, err = coercion.Negatable(operand); err != nil {
			return nil, err
		}
		result = expression.Neg(operand)
	}
	if _, ok := operand.(expression.ConstantNode); ok {
		value, err := expression.Evaluate(result, nil)
		if err != nil {
			return nil, err
		}
		return expression.Constant(value, result.Type()), nil
	}
	return result, nil
}

var binaryOperators = map[syntax.BinaryOp]operators.Operator{
	syntax.Or:             operators.OperatorOr,
	syntax.And:            operators.OperatorAnd,
	syntax.Equal:          operators.OperatorEq,
	syntax.NotEqual:       operators.OperatorNe,
	syntax.Greater:        operators.OperatorGt,
	syntax.GreaterOrEqual: operators.OperatorGte,
	syntax.Less:           operators.OperatorLt,
	syntax.LessOrEqual:    operators.OperatorLte,
	syntax.Add:            operators.OperatorAdd,
	syntax.Subtract:       operators.OperatorSub,
	syntax.Multiply:       operators.OperatorMul,
	syntax.Divide:         operators.OperatorDiv,
	syntax.Modulo:         operators.OperatorMod,
}

func (c *Compiler) compileBinary(n *syntax.Binary) (expression.Expression, error) {
	left, err := c.Compile(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.Compile(n.Right)
	if err != nil {
		return nil, err
	}
	op := binaryOperators[n.Op]
	if n.Op.IsLogical() {
		if left, err = coercion.Boolean(op, left); err != nil {
			return nil, err
		}
		if right, err = coercion.Boolean(op, right); err != nil {
			return nil, err
		}
		return expression.NewInfixNode(left, op, right, typeinfo.TypeBool), nil
	}
	if left, right, err = coercion.Normalize(op, left, right); err != nil {
		return nil, err
	}
	typ, err := coercion.ResultType(op, left.Type(), right.Type())
	if err != nil {
		return nil, err
	}
	return expression.NewInfixNode(left, op, right, typ), nil
}

// compileCall dispatches `name(args)` and `target.name(args)`; the target
// of a method-style call is passed as the first argument.
func (c *Compiler) compileCall(n *syntax.Call) (expression.Expression, error) {
	var (
		name string
		args []syntax.Node
	)
	switch t := n.Target.(type) {
	case *syntax.Identifier:
		name, args = t.Name, n.Args
	case *syntax.MemberAccess:
		name = t.Name
		if t.Target != nil {
			args = append([]syntax.Node{t.Target}, n.Args...)
		} else {
			args = n.Args
		}
	default:
		return nil, failure.Dispatchf("Expression %s is not callable", n.Target)
	}
	return c.table.Bind(c, name, args)
}
