package typeinfo

import (
	"reflect"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
)

// Precedence ranks the types that take part in implicit widening; a lower
// rank wins. -1 means the type never widens implicitly.
//
//	string 0, decimal 1, float64 2, float32 3, int64/int/uint64/uint 4,
//	int32/uint32 5, int16/uint16 6, int8/uint8 7, bool 9
//
// Rank 8 (char) has no Go counterpart: rune is int32.
func Precedence(t reflect.Type) int {
	if t == TypeDecimal {
		return 1
	}
	if IsEnum(t) || IsTemporal(t) || IsIdentifier(t) {
		return -1
	}
	switch t.Kind() {
	case reflect.String:
		return 0
	case reflect.Float64:
		return 2
	case reflect.Float32:
		return 3
	case reflect.Int64, reflect.Int, reflect.Uint64, reflect.Uint:
		return 4
	case reflect.Int32, reflect.Uint32:
		return 5
	case reflect.Int16, reflect.Uint16:
		return 6
	case reflect.Int8, reflect.Uint8:
		return 7
	case reflect.Bool:
		return 9
	}
	return -1
}

// CommonType returns the type both a and b widen to when they share a
// precedence rank but differ.
func CommonType(a, b reflect.Type) (reflect.Type, error) {
	if a.Kind() == b.Kind() {
		switch {
		case a.PkgPath() == "":
			return b, nil
		case b.PkgPath() == "":
			return a, nil
		}
		return nil, failure.Coercionf("Type conversion between %s and %s is not implemented", Name(a), Name(b))
	}
	switch Precedence(a) {
	case 7:
		return TypeInt16, nil
	case 6:
		return TypeInt32, nil
	case 5:
		return TypeInt64, nil
	case 4:
		if IsUnsigned(a) != IsUnsigned(b) {
			return nil, failure.Coercionf("No implicit conversion between %s and %s exists, use ulong() or long() to explicitly convert", Name(a), Name(b))
		}
		if IsUnsigned(a) {
			return TypeUint64, nil
		}
		return TypeInt64, nil
	}
	return nil, failure.Coercionf("Type conversion between %s and %s is not implemented", Name(a), Name(b))
}
