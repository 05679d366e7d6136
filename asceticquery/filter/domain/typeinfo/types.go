// Package typeinfo classifies the Go types that filter expressions operate
// on and converts values between them.
package typeinfo

import (
	"reflect"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	TypeString   = reflect.TypeOf("")
	TypeBool     = reflect.TypeOf(false)
	TypeInt      = reflect.TypeOf(int(0))
	TypeInt8     = reflect.TypeOf(int8(0))
	TypeInt16    = reflect.TypeOf(int16(0))
	TypeInt32    = reflect.TypeOf(int32(0))
	TypeInt64    = reflect.TypeOf(int64(0))
	TypeUint     = reflect.TypeOf(uint(0))
	TypeUint8    = reflect.TypeOf(uint8(0))
	TypeUint16   = reflect.TypeOf(uint16(0))
	TypeUint32   = reflect.TypeOf(uint32(0))
	TypeUint64   = reflect.TypeOf(uint64(0))
	TypeFloat32  = reflect.TypeOf(float32(0))
	TypeFloat64  = reflect.TypeOf(float64(0))
	TypeDecimal  = reflect.TypeOf(apd.Decimal{})
	TypeTime     = reflect.TypeOf(time.Time{})
	TypeDuration = reflect.TypeOf(time.Duration(0))
	TypeUUID     = reflect.TypeOf(uuid.UUID{})
	TypeULID     = reflect.TypeOf(ulid.ULID{})
	TypeBytes    = reflect.TypeOf([]byte(nil))

	// TypeNull is the static type of the null literal.
	TypeNull = reflect.TypeOf((*any)(nil)).Elem()
)

// Core strips pointer indirections: *int and **int classify as int.
func Core(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// IsNullable reports whether a value of t can be nil.
func IsNullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return true
	}
	return false
}

func IsNull(t reflect.Type) bool {
	return t == TypeNull
}

func IsInteger(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return t != TypeDuration && !IsEnum(t)
	}
	return false
}

func IsUnsigned(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func IsFloat(t reflect.Type) bool {
	k := t.Kind()
	return k == reflect.Float32 || k == reflect.Float64
}

// IsNumeric covers integers, floats and decimals; enums and durations are
// excluded even though their kind is integral.
func IsNumeric(t reflect.Type) bool {
	return t == TypeDecimal || IsFloat(t) || IsInteger(t)
}

func IsString(t reflect.Type) bool {
	return t.Kind() == reflect.String
}

func IsTemporal(t reflect.Type) bool {
	return t == TypeTime || t == TypeDuration
}

// IsIdentifier reports whether t is an opaque identifier type parsed from
// its canonical string form.
func IsIdentifier(t reflect.Type) bool {
	return t == TypeUUID || t == TypeULID
}

// IsCollection reports whether t is a slice or array of records or values.
// Byte slices are opaque scalars.
func IsCollection(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return t != TypeBytes && !IsIdentifier(t)
	}
	return false
}

// ElemType returns the element type of a collection.
func ElemType(t reflect.Type) reflect.Type {
	return t.Elem()
}

// IsRecord reports whether t (after pointer stripping) is a struct with
// members, as opposed to a struct-shaped scalar such as time.Time.
func IsRecord(t reflect.Type) bool {
	c := Core(t)
	return c.Kind() == reflect.Struct && !IsScalar(c)
}

// IsScalar reports whether values of t are atomic: graph traversal never
// descends into them.
func IsScalar(t reflect.Type) bool {
	c := Core(t)
	if c == TypeDecimal || IsTemporal(c) || IsIdentifier(c) || c == TypeBytes {
		return true
	}
	switch c.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// Name renders t for diagnostics.
func Name(t reflect.Type) string {
	if t == nil || IsNull(t) {
		return "null"
	}
	if t == TypeDecimal {
		return "decimal"
	}
	return t.String()
}
