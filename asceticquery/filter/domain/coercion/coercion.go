// Package coercion brings the operands of a comparison or arithmetic
// operator to a common type before the operator is composed.
package coercion

import (
	"reflect"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/expression"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/expression/operators"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/typeinfo"
)

// Normalize converts left and right to a common type. Rules apply in order:
// identical types, null, nullable lifting, enumerations, temporal and
// identifier parsing from strings, integer literals, then numeric
// precedence.
func Normalize(op operators.Operator, left, right expression.Expression) (expression.Expression, expression.Expression, error) {
	lt, rt := left.Type(), right.Type()
	if lt == rt {
		return left, right, nil
	}
	if typeinfo.IsNull(lt) {
		return Null(rt), right, nil
	}
	if typeinfo.IsNull(rt) {
		return left, Null(lt), nil
	}

	left, lt = lift(left)
	right, rt = lift(right)
	if lt == rt {
		return left, right, nil
	}

	switch {
	case typeinfo.IsEnum(lt) || typeinfo.IsEnum(rt):
		return normalizeEnum(left, right)
	case typeinfo.IsTemporal(lt) && typeinfo.IsString(rt):
		right, err := To(right, lt)
		return left, right, err
	case typeinfo.IsTemporal(rt) && typeinfo.IsString(lt):
		left, err := To(left, rt)
		return left, right, err
	case typeinfo.IsIdentifier(lt) && typeinfo.IsString(rt):
		right, err := To(right, lt)
		return left, right, err
	case typeinfo.IsIdentifier(rt) && typeinfo.IsString(lt):
		left, err := To(left, rt)
		return left, right, err
	}

	if op.IsArithmetic() {
		if typeinfo.IsTemporal(lt) || typeinfo.IsTemporal(rt) {
			// time - time and time +/- duration are resolved by ResultType
			if typeinfo.IsTemporal(lt) && typeinfo.IsTemporal(rt) {
				return left, right, nil
			}
			return nil, nil, operatorError(op, lt, rt)
		}
		if !isArithmeticOperand(lt) || !isArithmeticOperand(rt) {
			return nil, nil, operatorError(op, lt, rt)
		}
	}

	if l, r, ok := adoptLiteral(left, right); ok {
		return l, r, nil
	}

	pl, pr := typeinfo.Precedence(lt), typeinfo.Precedence(rt)
	if pl < 0 || pr < 0 {
		return nil, nil, failure.Coercionf("Type conversion between %s and %s is not implemented", typeinfo.Name(lt), typeinfo.Name(rt))
	}
	var err error
	switch {
	case pl < pr:
		right, err = To(right, lt)
		return left, right, err
	case pr < pl:
		left, err = To(left, rt)
		return left, right, err
	}
	common, err := typeinfo.CommonType(lt, rt)
	if err != nil {
		return nil, nil, err
	}
	if left, err = To(left, common); err != nil {
		return nil, nil, err
	}
	if right, err = To(right, common); err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

// adoptLiteral gives an integer literal the integer type of the other
// operand when the value fits, so `U64 eq 5` compiles without ulong().
func adoptLiteral(left, right expression.Expression) (expression.Expression, expression.Expression, bool) {
	if v, ok := literalAs(right, left); ok {
		return left, v, true
	}
	if v, ok := literalAs(left, right); ok {
		return v, right, true
	}
	return left, right, false
}

func literalAs(literal, other expression.Expression) (expression.Expression, bool) {
	c, ok := literal.(expression.ConstantNode)
	if !ok || c.Type() != typeinfo.TypeInt {
		return nil, false
	}
	if _, ok := other.(expression.ConstantNode); ok || !typeinfo.IsInteger(other.Type()) {
		return nil, false
	}
	v, err := typeinfo.ChangeType(c.Value(), other.Type())
	if err != nil {
		return nil, false
	}
	return expression.Constant(v, other.Type()), true
}

func normalizeEnum(left, right expression.Expression) (expression.Expression, expression.Expression, error) {
	lt, rt := left.Type(), right.Type()
	if typeinfo.IsEnum(lt) && typeinfo.IsEnum(rt) {
		return nil, nil, failure.Coercionf("Type conversion between %s and %s is not implemented", typeinfo.Name(lt), typeinfo.Name(rt))
	}
	var err error
	if typeinfo.IsEnum(lt) {
		if !typeinfo.IsString(rt) && !typeinfo.IsInteger(rt) {
			return nil, nil, failure.Coercionf("Type conversion between %s and %s is not implemented", typeinfo.Name(lt), typeinfo.Name(rt))
		}
		right, err = To(right, lt)
		return left, right, err
	}
	if !typeinfo.IsString(lt) && !typeinfo.IsInteger(lt) {
		return nil, nil, failure.Coercionf("Type conversion between %s and %s is not implemented", typeinfo.Name(lt), typeinfo.Name(rt))
	}
	left, err = To(left, rt)
	return left, right, err
}

func isArithmeticOperand(t reflect.Type) bool {
	return typeinfo.IsNumeric(t) || typeinfo.IsNull(t)
}

func operatorError(op operators.Operator, lt, rt reflect.Type) error {
	return failure.Coercionf("Operator '%s' cannot be applied to operands of type %s and %s", symbol(op), typeinfo.Name(lt), typeinfo.Name(rt))
}

func symbol(op operators.Operator) string {
	if op == operators.OperatorNeg {
		return "-"
	}
	return string(op)
}

// lift strips the nullable wrapper of a scalar operand.
func lift(e expression.Expression) (expression.Expression, reflect.Type) {
	t := e.Type()
	if t.Kind() == reflect.Pointer && typeinfo.IsScalar(t) {
		core := typeinfo.Core(t)
		return expression.Convert(e, core), core
	}
	return e, t
}

// Null returns the null literal typed as t: a typed nil when t is
// nullable, its zero value otherwise.
func Null(t reflect.Type) expression.ConstantNode {
	if typeinfo.IsNullable(t) {
		return expression.Constant(nil, t)
	}
	return expression.Constant(typeinfo.Zero(t), t)
}

// To converts e to type t. Constants fold at compile time so conversion
// errors surface before evaluation.
func To(e expression.Expression, t reflect.Type) (expression.Expression, error) {
	if e.Type() == t {
		return e, nil
	}
	if c, ok := e.(expression.ConstantNode); ok {
		value, err := typeinfo.ChangeType(c.Value(), t)
		if err != nil {
			return nil, err
		}
		return expression.Constant(value, t), nil
	}
	return expression.Convert(e, t), nil
}
