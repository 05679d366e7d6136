package identitymap

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type course struct {
	Id int
}

type student struct {
	Id int
}

func courseKey(id int) Key {
	return KeyOf(reflect.TypeOf(&course{}), id)
}

func TestGet(t *testing.T) {
	im := New(100, Serializable)
	obj := &course{Id: 3}
	im.Add(courseKey(3), obj)

	result, err := im.Get(courseKey(3))
	assert.NoError(t, err)
	assert.Same(t, obj, result)

	_, err = im.Get(courseKey(10))
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestKeyOfIgnoresPointers(t *testing.T) {
	assert.Equal(t, KeyOf(reflect.TypeOf(course{}), 1), KeyOf(reflect.TypeOf(&course{}), 1))
	assert.Equal(t, "course(1)", courseKey(1).String())
}

func TestGetLruEviction(t *testing.T) {
	im := New(1, Serializable)
	im.Add(courseKey(3), &course{Id: 3})
	im.Add(courseKey(10), &course{Id: 10})

	_, err := im.Get(courseKey(3))
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.True(t, im.Has(courseKey(10)))
}

func TestSetSizeEvicts(t *testing.T) {
	im := New(3, Serializable)
	for id := 1; id <= 3; id++ {
		im.Add(courseKey(id), &course{Id: id})
	}
	_, _ = im.Get(courseKey(1))
	im.SetSize(1)

	assert.True(t, im.Has(courseKey(1)))
	assert.False(t, im.Has(courseKey(2)))
	assert.False(t, im.Has(courseKey(3)))
}

func TestRemoveAndClear(t *testing.T) {
	im := New(100, Serializable)
	im.Add(courseKey(1), &course{Id: 1})
	im.Add(courseKey(2), &course{Id: 2})

	im.Remove(courseKey(1))
	_, err := im.Get(courseKey(1))
	assert.ErrorIs(t, err, ErrKeyNotFound)

	im.Clear()
	_, err = im.Get(courseKey(2))
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestDifferentRecordTypesSameId(t *testing.T) {
	im := New(100, Serializable)
	c := &course{Id: 1}
	s := &student{Id: 1}
	im.Add(courseKey(1), c)
	im.Add(KeyOf(reflect.TypeOf(s), 1), s)

	result, err := im.Get(courseKey(1))
	assert.NoError(t, err)
	assert.Same(t, c, result)

	result, err = im.Get(KeyOf(reflect.TypeOf(student{}), 1))
	assert.NoError(t, err)
	assert.Same(t, s, result)
}

func TestSerializableAbsent(t *testing.T) {
	im := New(100, Serializable)
	im.AddAbsent(courseKey(1))

	_, err := im.Get(courseKey(1))
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.True(t, im.Has(courseKey(1)))
	assert.False(t, im.Has(courseKey(2)))
}

func TestRepeatableReads(t *testing.T) {
	im := New(100, RepeatableReads)
	obj := &course{Id: 1}
	assert.False(t, im.Has(courseKey(1)))

	im.Add(courseKey(1), obj)
	result, err := im.Get(courseKey(1))
	assert.NoError(t, err)
	assert.Same(t, obj, result)

	im.AddAbsent(courseKey(2))
	_, err = im.Get(courseKey(2))
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.False(t, im.Has(courseKey(2)))
}

func TestDisabledLevels(t *testing.T) {
	for _, level := range []IsolationLevel{ReadUncommitted, ReadCommitted} {
		im := New(100, level)
		im.Add(courseKey(1), &course{Id: 1})

		_, err := im.Get(courseKey(1))
		assert.ErrorIs(t, err, ErrKeyNotFound)
		assert.False(t, im.Has(courseKey(1)))
	}
}
