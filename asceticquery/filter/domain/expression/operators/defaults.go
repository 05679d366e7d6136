package operators

import (
	"cmp"
	"math"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/typeinfo"
)

func registerComparison[T cmp.Ordered](reg *OperatorRegistry) {
	RegisterBinary[T, T](reg, OperatorEq, func(a, b T) (any, error) { return a == b, nil })
	RegisterBinary[T, T](reg, OperatorNe, func(a, b T) (any, error) { return a != b, nil })
	RegisterBinary[T, T](reg, OperatorGt, func(a, b T) (any, error) { return a > b, nil })
	RegisterBinary[T, T](reg, OperatorGte, func(a, b T) (any, error) { return a >= b, nil })
	RegisterBinary[T, T](reg, OperatorLt, func(a, b T) (any, error) { return a < b, nil })
	RegisterBinary[T, T](reg, OperatorLte, func(a, b T) (any, error) { return a <= b, nil })
}

func registerEquality[T comparable](reg *OperatorRegistry) {
	RegisterBinary[T, T](reg, OperatorEq, func(a, b T) (any, error) { return a == b, nil })
	RegisterBinary[T, T](reg, OperatorNe, func(a, b T) (any, error) { return a != b, nil })
}

type integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

func registerArithmetic[T integer | ~float32 | ~float64](reg *OperatorRegistry) {
	RegisterBinary[T, T](reg, OperatorAdd, func(a, b T) (any, error) { return a + b, nil })
	RegisterBinary[T, T](reg, OperatorSub, func(a, b T) (any, error) { return a - b, nil })
	RegisterBinary[T, T](reg, OperatorMul, func(a, b T) (any, error) { return a * b, nil })
	RegisterBinary[T, T](reg, OperatorDiv, func(a, b T) (any, error) {
		if b == 0 {
			return nil, failure.Argumentf("Division by zero")
		}
		return a / b, nil
	})
	RegisterUnary[T](reg, OperatorNeg, func(a T) (any, error) { return -a, nil })
}

func registerModulo[T integer](reg *OperatorRegistry) {
	RegisterBinary[T, T](reg, OperatorMod, func(a, b T) (any, error) {
		if b == 0 {
			return nil, failure.Argumentf("Modulo by zero")
		}
		return a % b, nil
	})
}

func registerFloatModulo[T ~float32 | ~float64](reg *OperatorRegistry) {
	RegisterBinary[T, T](reg, OperatorMod, func(a, b T) (any, error) {
		if b == 0 {
			return nil, failure.Argumentf("Modulo by zero")
		}
		return T(math.Mod(float64(a), float64(b))), nil
	})
}

func registerInteger[T integer](reg *OperatorRegistry) {
	registerComparison[T](reg)
	registerArithmetic[T](reg)
	registerModulo[T](reg)
}

func registerDecimal(reg *OperatorRegistry) {
	ctx := typeinfo.DecimalContext
	compare := func(a, b apd.Decimal) int { return a.Cmp(&b) }
	RegisterBinary[apd.Decimal, apd.Decimal](reg, OperatorEq, func(a, b apd.Decimal) (any, error) { return compare(a, b) == 0, nil })
	RegisterBinary[apd.Decimal, apd.Decimal](reg, OperatorNe, func(a, b apd.Decimal) (any, error) { return compare(a, b) != 0, nil })
	RegisterBinary[apd.Decimal, apd.Decimal](reg, OperatorGt, func(a, b apd.Decimal) (any, error) { return compare(a, b) > 0, nil })
	RegisterBinary[apd.Decimal, apd.Decimal](reg, OperatorGte, func(a, b apd.Decimal) (any, error) { return compare(a, b) >= 0, nil })
	RegisterBinary[apd.Decimal, apd.Decimal](reg, OperatorLt, func(a, b apd.Decimal) (any, error) { return compare(a, b) < 0, nil })
	RegisterBinary[apd.Decimal, apd.Decimal](reg, OperatorLte, func(a, b apd.Decimal) (any, error) { return compare(a, b) <= 0, nil })

	arithmetic := func(op Operator, fn func(d, x, y *apd.Decimal) (apd.Condition, error)) {
		RegisterBinary[apd.Decimal, apd.Decimal](reg, op, func(a, b apd.Decimal) (any, error) {
			if (op == OperatorDiv || op == OperatorMod) && b.IsZero() {
				return nil, failure.Argumentf("Division by zero")
			}
			var result apd.Decimal
			if _, err := fn(&result, &a, &b); err != nil {
				return nil, failure.Argumentf("Decimal %s failed: %v", op, err)
			}
			return result, nil
		})
	}
	arithmetic(OperatorAdd, ctx.Add)
	arithmetic(OperatorSub, ctx.Sub)
	arithmetic(OperatorMul, ctx.Mul)
	arithmetic(OperatorDiv, ctx.Quo)
	arithmetic(OperatorMod, ctx.Rem)
	RegisterUnary[apd.Decimal](reg, OperatorNeg, func(a apd.Decimal) (any, error) {
		var result apd.Decimal
		result.Neg(&a)
		return result, nil
	})
}

// NewDefaultRegistry creates a registry covering every scalar type a
// filter can produce.
func NewDefaultRegistry() *OperatorRegistry {
	reg := NewOperatorRegistry()

	// bool
	RegisterBinary[bool, bool](reg, OperatorEq, func(a, b bool) (any, error) { return a == b, nil })
	RegisterBinary[bool, bool](reg, OperatorNe, func(a, b bool) (any, error) { return a != b, nil })
	RegisterUnary[bool](reg, OperatorNot, func(a bool) (any, error) { return !a, nil })

	registerInteger[int](reg)
	registerInteger[int8](reg)
	registerInteger[int16](reg)
	registerInteger[int32](reg)
	registerInteger[int64](reg)
	registerInteger[uint](reg)
	registerInteger[uint8](reg)
	registerInteger[uint16](reg)
	registerInteger[uint32](reg)
	registerInteger[uint64](reg)

	registerComparison[float32](reg)
	registerArithmetic[float32](reg)
	registerFloatModulo[float32](reg)
	registerComparison[float64](reg)
	registerArithmetic[float64](reg)
	registerFloatModulo[float64](reg)

	registerDecimal(reg)

	// string
	registerComparison[string](reg)

	// time.Duration (interval)
	registerComparison[time.Duration](reg)
	RegisterBinary[time.Duration, time.Duration](reg, OperatorAdd, func(a, b time.Duration) (any, error) { return a + b, nil })
	RegisterBinary[time.Duration, time.Duration](reg, OperatorSub, func(a, b time.Duration) (any, error) { return a - b, nil })
	RegisterUnary[time.Duration](reg, OperatorNeg, func(a time.Duration) (any, error) { return -a, nil })

	// time.Time (timestamp)
	RegisterBinary[time.Time, time.Time](reg, OperatorEq, func(a, b time.Time) (any, error) { return a.Equal(b), nil })
	RegisterBinary[time.Time, time.Time](reg, OperatorNe, func(a, b time.Time) (any, error) { return !a.Equal(b), nil })
	RegisterBinary[time.Time, time.Time](reg, OperatorGt, func(a, b time.Time) (any, error) { return a.After(b), nil })
	RegisterBinary[time.Time, time.Time](reg, OperatorGte, func(a, b time.Time) (any, error) { return !a.Before(b), nil })
	RegisterBinary[time.Time, time.Time](reg, OperatorLt, func(a, b time.Time) (any, error) { return a.Before(b), nil })
	RegisterBinary[time.Time, time.Time](reg, OperatorLte, func(a, b time.Time) (any, error) { return !a.After(b), nil })

	// Mixed: timestamp - timestamp = interval
	RegisterBinary[time.Time, time.Time](reg, OperatorSub, func(a, b time.Time) (any, error) { return a.Sub(b), nil })

	// Mixed: timestamp +/- interval = timestamp
	RegisterBinary[time.Time, time.Duration](reg, OperatorAdd, func(a time.Time, b time.Duration) (any, error) { return a.Add(b), nil })
	RegisterBinary[time.Time, time.Duration](reg, OperatorSub, func(a time.Time, b time.Duration) (any, error) { return a.Add(-b), nil })

	// Opaque identifiers
	registerEquality[uuid.UUID](reg)
	registerEquality[ulid.ULID](reg)
	RegisterBinary[ulid.ULID, ulid.ULID](reg, OperatorGt, func(a, b ulid.ULID) (any, error) { return a.Compare(b) > 0, nil })
	RegisterBinary[ulid.ULID, ulid.ULID](reg, OperatorGte, func(a, b ulid.ULID) (any, error) { return a.Compare(b) >= 0, nil })
	RegisterBinary[ulid.ULID, ulid.ULID](reg, OperatorLt, func(a, b ulid.ULID) (any, error) { return a.Compare(b) < 0, nil })
	RegisterBinary[ulid.ULID, ulid.ULID](reg, OperatorLte, func(a, b ulid.ULID) (any, error) { return a.Compare(b) <= 0, nil })

	return reg
}
