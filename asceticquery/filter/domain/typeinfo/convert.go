package typeinfo

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime accepts RFC 3339 and the common date/datetime layouts.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, failure.Coercionf("'%s' is not a valid date/time", s)
}

// Zero returns the default value of t as an interface value.
func Zero(t reflect.Type) any {
	return reflect.Zero(t).Interface()
}

// Deref follows pointers; ok is false when a nil pointer is reached.
func Deref(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer {
		return v, true
	}
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	return rv.Interface(), true
}

// ChangeType converts v to type to. A nil value, or a nil pointer, stays
// nil: callers that need the default value of a value type ask for Zero.
func ChangeType(v any, to reflect.Type) (any, error) {
	v, ok := Deref(v)
	if !ok {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type() == to {
		return v, nil
	}
	if to.Kind() == reflect.Pointer {
		inner, err := ChangeType(v, to.Elem())
		if err != nil {
			return nil, err
		}
		p := reflect.New(to.Elem())
		p.Elem().Set(reflect.ValueOf(inner))
		return p.Interface(), nil
	}
	if to == TypeNull {
		return v, nil
	}

	switch {
	case to == TypeString:
		return toString(rv), nil
	case to == TypeDecimal:
		return toDecimal(rv)
	case IsEnum(to):
		if IsString(rv.Type()) {
			return ParseEnum(to, rv.String())
		}
		if IsInteger(rv.Type()) || IsEnum(rv.Type()) {
			return rv.Convert(to).Interface(), nil
		}
	case to == TypeTime:
		if IsString(rv.Type()) {
			return ParseTime(rv.String())
		}
	case to == TypeDuration:
		if IsString(rv.Type()) {
			d, err := time.ParseDuration(rv.String())
			if err != nil {
				return nil, failure.Coercionf("'%s' is not a valid duration", rv.String())
			}
			return d, nil
		}
	case to == TypeUUID:
		if IsString(rv.Type()) {
			id, err := uuid.Parse(rv.String())
			if err != nil {
				return nil, failure.Coercionf("'%s' is not a valid uuid", rv.String())
			}
			return id, nil
		}
	case to == TypeULID:
		if IsString(rv.Type()) {
			id, err := ulid.Parse(rv.String())
			if err != nil {
				return nil, failure.Coercionf("'%s' is not a valid ulid", rv.String())
			}
			return id, nil
		}
	case to.Kind() == reflect.Bool:
		if rv.Kind() == reflect.Bool {
			return rv.Convert(to).Interface(), nil
		}
		if IsString(rv.Type()) {
			b, err := strconv.ParseBool(rv.String())
			if err != nil {
				return nil, failure.Coercionf("'%s' is not a valid bool", rv.String())
			}
			return reflect.ValueOf(b).Convert(to).Interface(), nil
		}
	case to.Kind() == reflect.String:
		return reflect.ValueOf(toString(rv)).Convert(to).Interface(), nil
	case IsInteger(to) || IsFloat(to):
		return toNumber(rv, to)
	}
	if rv.Type().ConvertibleTo(to) && rv.Kind() == to.Kind() {
		return rv.Convert(to).Interface(), nil
	}
	return nil, failure.Coercionf("Unable to convert %s to %s", Name(rv.Type()), Name(to))
}

func toString(rv reflect.Value) string {
	switch v := rv.Interface().(type) {
	case apd.Decimal:
		return v.String()
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return v.String()
	}
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	}
	return fmt.Sprint(rv.Interface())
}

func toDecimal(rv reflect.Value) (any, error) {
	t := rv.Type()
	switch {
	case IsString(t):
		d, _, err := apd.NewFromString(rv.String())
		if err != nil {
			return nil, failure.Coercionf("'%s' is not a valid decimal", rv.String())
		}
		return *d, nil
	case IsFloat(t):
		d, err := DecimalFromFloat(rv.Float())
		if err != nil {
			return nil, failure.Coercionf("%v is not representable as decimal", rv.Float())
		}
		return d, nil
	case IsUnsigned(t) && IsInteger(t):
		return DecimalFromUint(rv.Uint()), nil
	case IsInteger(t) || IsEnum(t):
		if IsUnsigned(t) {
			return DecimalFromUint(rv.Uint()), nil
		}
		return DecimalFromInt(rv.Int()), nil
	}
	return nil, failure.Coercionf("Unable to convert %s to decimal", Name(t))
}

func toNumber(rv reflect.Value, to reflect.Type) (any, error) {
	from := rv.Type()
	if d, ok := rv.Interface().(apd.Decimal); ok {
		if IsFloat(to) {
			f, err := d.Float64()
			if err != nil {
				return nil, failure.Coercionf("%s is not representable as %s", d.String(), Name(to))
			}
			return reflect.ValueOf(f).Convert(to).Interface(), nil
		}
		i, err := DecimalToInt(d)
		if err != nil {
			return nil, failure.Coercionf("%s is not representable as %s", d.String(), Name(to))
		}
		return checkedConvert(reflect.ValueOf(i), to)
	}
	if IsString(from) {
		s := rv.String()
		if IsFloat(to) {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, failure.Coercionf("'%s' is not a valid %s", s, Name(to))
			}
			return reflect.ValueOf(f).Convert(to).Interface(), nil
		}
		if IsUnsigned(to) {
			u, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return nil, failure.Coercionf("'%s' is not a valid %s", s, Name(to))
			}
			return checkedConvert(reflect.ValueOf(u), to)
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, failure.Coercionf("'%s' is not a valid %s", s, Name(to))
		}
		return checkedConvert(reflect.ValueOf(i), to)
	}
	if IsNumeric(from) || IsEnum(from) {
		return checkedConvert(rv, to)
	}
	return nil, failure.Coercionf("Unable to convert %s to %s", Name(from), Name(to))
}

// checkedConvert converts between numeric kinds and fails when an integer
// target cannot hold the value.
func checkedConvert(rv reflect.Value, to reflect.Type) (any, error) {
	if !rv.Type().ConvertibleTo(to) {
		return nil, failure.Coercionf("Unable to convert %s to %s", Name(rv.Type()), Name(to))
	}
	out := rv.Convert(to)
	if IsInteger(to) || IsEnum(to) {
		var lossless bool
		if IsFloat(rv.Type()) {
			lossless = out.Convert(TypeFloat64).Float() == math.Trunc(rv.Float())
		} else {
			lossless = out.Convert(rv.Type()).Equal(rv) && !signFlipped(rv, out)
		}
		if !lossless {
			return nil, failure.Coercionf("%v overflows %s", rv.Interface(), Name(to))
		}
	}
	return out.Interface(), nil
}

func signFlipped(from, to reflect.Value) bool {
	if !IsUnsigned(from.Type()) && IsUnsigned(to.Type()) {
		return from.Int() < 0
	}
	if IsUnsigned(from.Type()) && !IsUnsigned(to.Type()) {
		return to.Int() < 0
	}
	return false
}
