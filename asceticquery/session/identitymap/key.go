package identitymap

import (
	"fmt"
	"reflect"
)

// Key identifies a record by its type and key value. Id must be comparable.
type Key struct {
	Type reflect.Type
	Id   any
}

func KeyOf(t reflect.Type, id any) Key {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return Key{Type: t, Id: id}
}

func (k Key) String() string {
	return fmt.Sprintf("%s(%v)", k.Type.Name(), k.Id)
}
