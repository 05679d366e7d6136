package coercion

import (
	"reflect"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/expression"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/expression/operators"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/typeinfo"
)

// ResultType is the static type of `left op right` once both operands are
// normalized.
func ResultType(op operators.Operator, lt, rt reflect.Type) (reflect.Type, error) {
	if op.IsComparison() {
		if err := checkComparable(op, lt, rt); err != nil {
			return nil, err
		}
		return typeinfo.TypeBool, nil
	}
	if !op.IsArithmetic() {
		return nil, failure.Coercionf("Operator '%s' is not a binary operator", op)
	}

	switch {
	case typeinfo.IsNull(lt) && typeinfo.IsNull(rt):
		return typeinfo.TypeNull, nil
	case lt == typeinfo.TypeTime && rt == typeinfo.TypeTime && op == operators.OperatorSub:
		return typeinfo.TypeDuration, nil
	case lt == typeinfo.TypeTime && rt == typeinfo.TypeDuration &&
		(op == operators.OperatorAdd || op == operators.OperatorSub):
		return typeinfo.TypeTime, nil
	case lt == typeinfo.TypeDuration && rt == typeinfo.TypeDuration &&
		(op == operators.OperatorAdd || op == operators.OperatorSub):
		return typeinfo.TypeDuration, nil
	case lt == rt && typeinfo.IsNumeric(lt):
		return lt, nil
	}
	return nil, operatorError(op, lt, rt)
}

func checkComparable(op operators.Operator, lt, rt reflect.Type) error {
	if typeinfo.IsNull(lt) || typeinfo.IsNull(rt) {
		return nil
	}
	if lt != rt {
		return failure.Coercionf("Type conversion between %s and %s is not implemented", typeinfo.Name(lt), typeinfo.Name(rt))
	}
	if op == operators.OperatorEq || op == operators.OperatorNe {
		if typeinfo.IsScalar(lt) || typeinfo.IsEnum(lt) || typeinfo.IsNullable(lt) || lt.Comparable() {
			return nil
		}
		return operatorError(op, lt, rt)
	}
	if ordered(lt) {
		return nil
	}
	return operatorError(op, lt, rt)
}

func ordered(t reflect.Type) bool {
	if t == typeinfo.TypeBool || t == typeinfo.TypeUUID || t == typeinfo.TypeBytes {
		return false
	}
	return typeinfo.IsScalar(t) || typeinfo.IsEnum(t) || implementsOrdering(t)
}

var greaterThanOperand = reflect.TypeOf((*operators.GreaterThanOperand)(nil)).Elem()

func implementsOrdering(t reflect.Type) bool {
	return t.Implements(greaterThanOperand)
}

// Boolean checks that e can be an operand of and/or/not, lifting *bool.
func Boolean(op operators.Operator, e expression.Expression) (expression.Expression, error) {
	t := e.Type()
	switch {
	case t == typeinfo.TypeBool || typeinfo.IsNull(t):
		return e, nil
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Bool:
		return expression.Convert(e, typeinfo.TypeBool), nil
	case t.Kind() == reflect.Bool:
		return expression.Convert(e, typeinfo.TypeBool), nil
	}
	return nil, failure.Coercionf("Operator '%s' cannot be applied to operand of type %s", op, typeinfo.Name(t))
}

// Negatable checks the operand of unary minus, lifting nullable numerics.
func Negatable(e expression.Expression) (expression.Expression, error) {
	e, t := lift(e)
	if typeinfo.IsNumeric(t) || t == typeinfo.TypeDuration || typeinfo.IsNull(t) {
		return e, nil
	}
	return nil, failure.Coercionf("Operator '-' cannot be applied to operand of type %s", typeinfo.Name(t))
}
