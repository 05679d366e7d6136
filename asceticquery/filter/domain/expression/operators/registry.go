package operators

import (
	"fmt"
	"reflect"
)

type BinaryOp func(left, right any) (any, error)
type UnaryOp func(operand any) (any, error)

type binaryKey struct {
	left  reflect.Type
	op    Operator
	right reflect.Type
}

type unaryKey struct {
	op      Operator
	operand reflect.Type
}

type OperatorRegistry struct {
	binary map[binaryKey]BinaryOp
	unary  map[unaryKey]UnaryOp
}

func NewOperatorRegistry() *OperatorRegistry {
	return &OperatorRegistry{
		binary: make(map[binaryKey]BinaryOp),
		unary:  make(map[unaryKey]UnaryOp),
	}
}

func RegisterBinary[L, R any](reg *OperatorRegistry, op Operator, fn func(L, R) (any, error)) {
	var zeroL L
	var zeroR R
	key := binaryKey{
		left:  reflect.TypeOf(zeroL),
		op:    op,
		right: reflect.TypeOf(zeroR),
	}
	reg.binary[key] = func(left, right any) (any, error) {
		return fn(left.(L), right.(R))
	}
}

func RegisterUnary[T any](reg *OperatorRegistry, op Operator, fn func(T) (any, error)) {
	var zero T
	key := unaryKey{
		op:      op,
		operand: reflect.TypeOf(zero),
	}
	reg.unary[key] = func(operand any) (any, error) {
		return fn(operand.(T))
	}
}

// ExecBinary executes a binary operator with lifted null semantics:
// null eq null is true, value eq null is false, AND/OR are three-valued and
// every other operator yields null when an operand is null.
func (r *OperatorRegistry) ExecBinary(left any, op Operator, right any) (any, error) {
	if op == OperatorAnd {
		return execAnd(left, right)
	}
	if op == OperatorOr {
		return execOr(left, right)
	}

	if left == nil || right == nil {
		switch op {
		case OperatorEq:
			return left == nil && right == nil, nil
		case OperatorNe:
			return left != nil || right != nil, nil
		}
		return nil, nil
	}

	fn, err := r.lookupBinary(left, op, right)
	if err != nil {
		return nil, err
	}
	return fn(left, right)
}

func (r *OperatorRegistry) ExecUnary(op Operator, operand any) (any, error) {
	if op == OperatorIsNull {
		return operand == nil, nil
	}
	if op == OperatorIsNotNull {
		return operand != nil, nil
	}

	if operand == nil {
		return nil, nil
	}

	fn, err := r.lookupUnary(op, operand)
	if err != nil {
		return nil, err
	}
	return fn(operand)
}

func (r *OperatorRegistry) lookupBinary(left any, op Operator, right any) (BinaryOp, error) {
	key := binaryKey{
		left:  reflect.TypeOf(left),
		op:    op,
		right: reflect.TypeOf(right),
	}
	fn, ok := r.binary[key]
	if ok {
		return fn, nil
	}

	// Named types such as enums or `type Celsius float64` run on their
	// underlying basic type and convert the result back.
	if fn := r.underlyingFallback(key); fn != nil {
		return fn, nil
	}

	if fallback := interfaceFallback(left, op, right); fallback != nil {
		return fallback, nil
	}

	return nil, fmt.Errorf("operator \"%s\" is not supported for %T and %T", op, left, right)
}

func (r *OperatorRegistry) underlyingFallback(key binaryKey) BinaryOp {
	basicLeft, okLeft := basicTypes[key.left.Kind()]
	basicRight, okRight := basicTypes[key.right.Kind()]
	if !okLeft || !okRight || (basicLeft == key.left && basicRight == key.right) {
		return nil
	}
	fn, ok := r.binary[binaryKey{left: basicLeft, op: key.op, right: basicRight}]
	if !ok {
		return nil
	}
	resultType := key.left
	return func(left, right any) (any, error) {
		l := reflect.ValueOf(left).Convert(basicLeft).Interface()
		rr := reflect.ValueOf(right).Convert(basicRight).Interface()
		result, err := fn(l, rr)
		if err != nil || result == nil {
			return result, err
		}
		rv := reflect.ValueOf(result)
		if rv.Type() == basicLeft && basicLeft != resultType {
			return rv.Convert(resultType).Interface(), nil
		}
		return result, nil
	}
}

var basicTypes = map[reflect.Kind]reflect.Type{
	reflect.Bool:    reflect.TypeOf(false),
	reflect.Int:     reflect.TypeOf(int(0)),
	reflect.Int8:    reflect.TypeOf(int8(0)),
	reflect.Int16:   reflect.TypeOf(int16(0)),
	reflect.Int32:   reflect.TypeOf(int32(0)),
	reflect.Int64:   reflect.TypeOf(int64(0)),
	reflect.Uint:    reflect.TypeOf(uint(0)),
	reflect.Uint8:   reflect.TypeOf(uint8(0)),
	reflect.Uint16:  reflect.TypeOf(uint16(0)),
	reflect.Uint32:  reflect.TypeOf(uint32(0)),
	reflect.Uint64:  reflect.TypeOf(uint64(0)),
	reflect.Float32: reflect.TypeOf(float32(0)),
	reflect.Float64: reflect.TypeOf(float64(0)),
	reflect.String:  reflect.TypeOf(""),
}

func interfaceFallback(left any, op Operator, right any) BinaryOp {
	switch op {
	case OperatorEq:
		return operandFallback(left, func(l, r EqualOperand) bool { return l.Equal(r) })
	case OperatorNe:
		return operandFallback(left, func(l, r EqualOperand) bool { return !l.Equal(r) })
	case OperatorGt:
		return operandFallback(left, func(l, r GreaterThanOperand) bool { return l.GreaterThan(r) })
	case OperatorGte:
		return operandFallback(left, func(l, r GreaterThanEqualOperand) bool { return l.GreaterThanEqual(r) })
	case OperatorLt:
		return operandFallback(left, func(l, r LessThanOperand) bool { return l.LessThan(r) })
	case OperatorLte:
		return operandFallback(left, func(l, r LessThanEqualOperand) bool { return l.LessThanEqual(r) })
	}
	return nil
}

func operandFallback[I any](left any, compare func(l, r I) bool) BinaryOp {
	if _, ok := left.(I); !ok {
		return nil
	}
	return func(left, right any) (any, error) {
		l, ok := left.(I)
		if !ok {
			return nil, fmt.Errorf("left operand %T does not implement %s", left, reflect.TypeOf((*I)(nil)).Elem().Name())
		}
		r, ok := right.(I)
		if !ok {
			return nil, fmt.Errorf("right operand %T does not implement %s", right, reflect.TypeOf((*I)(nil)).Elem().Name())
		}
		return compare(l, r), nil
	}
}

func (r *OperatorRegistry) lookupUnary(op Operator, operand any) (UnaryOp, error) {
	t := reflect.TypeOf(operand)
	key := unaryKey{
		op:      op,
		operand: t,
	}
	if fn, ok := r.unary[key]; ok {
		return fn, nil
	}
	if basic, ok := basicTypes[t.Kind()]; ok && basic != t {
		if fn, ok := r.unary[unaryKey{op: op, operand: basic}]; ok {
			return func(operand any) (any, error) {
				result, err := fn(reflect.ValueOf(operand).Convert(basic).Interface())
				if err != nil || result == nil {
					return result, err
				}
				if rv := reflect.ValueOf(result); rv.Type() == basic {
					return rv.Convert(t).Interface(), nil
				}
				return result, nil
			}, nil
		}
	}
	return nil, fmt.Errorf("operator \"%s\" is not supported for %T", op, operand)
}

// Three-valued logic: NULL AND FALSE = FALSE, NULL AND TRUE = NULL
func execAnd(left, right any) (any, error) {
	if left == nil {
		if val, ok := right.(bool); ok && !val {
			return false, nil
		}
		return nil, nil
	}
	if right == nil {
		if val, ok := left.(bool); ok && !val {
			return false, nil
		}
		return nil, nil
	}
	l, ok := left.(bool)
	if !ok {
		return nil, fmt.Errorf("operator \"AND\" requires bool, got %T", left)
	}
	r, ok := right.(bool)
	if !ok {
		return nil, fmt.Errorf("operator \"AND\" requires bool, got %T", right)
	}
	return l && r, nil
}

// Three-valued logic: NULL OR TRUE = TRUE, NULL OR FALSE = NULL
func execOr(left, right any) (any, error) {
	if left == nil {
		if val, ok := right.(bool); ok && val {
			return true, nil
		}
		return nil, nil
	}
	if right == nil {
		if val, ok := left.(bool); ok && val {
			return true, nil
		}
		return nil, nil
	}
	l, ok := left.(bool)
	if !ok {
		return nil, fmt.Errorf("operator \"OR\" requires bool, got %T", left)
	}
	r, ok := right.(bool)
	if !ok {
		return nil, fmt.Errorf("operator \"OR\" requires bool, got %T", right)
	}
	return l || r, nil
}
