package typeinfo

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
)

// Enum is implemented by named integer types used as enumerations.
// EnumValues lists every member; String renders a member's name.
type Enum interface {
	fmt.Stringer
	EnumValues() []Enum
}

var enumType = reflect.TypeOf((*Enum)(nil)).Elem()

func IsEnum(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return t.Implements(enumType)
	}
	return false
}

// ParseEnum finds the member of enum type t named s, ignoring case.
func ParseEnum(t reflect.Type, s string) (any, error) {
	zero, ok := reflect.Zero(t).Interface().(Enum)
	if !ok {
		return nil, failure.Coercionf("Type %s is not an enumeration", Name(t))
	}
	for _, member := range zero.EnumValues() {
		if strings.EqualFold(member.String(), s) {
			return reflect.ValueOf(member).Convert(t).Interface(), nil
		}
	}
	return nil, failure.Coercionf("'%s' is not a valid value of %s", s, Name(t))
}
