package scope

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/expression"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
)

type Record struct {
	Name string
}

var (
	recordType = reflect.TypeOf(Record{})
	stringType = reflect.TypeOf("")
)

func TestScope_EnterRelease(t *testing.T) {
	s := New(recordType)

	param, release, err := s.Enter("x", stringType)
	require.NoError(t, err)
	assert.Equal(t, "x", param.Name())

	found, ok := s.Lookup("x")
	assert.True(t, ok)
	assert.Equal(t, param, found)
	assert.Equal(t, 1, s.Depth())

	release()
	_, ok = s.Lookup("x")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Depth())
}

func TestScope_Redeclare(t *testing.T) {
	s := New(recordType)

	_, release, err := s.Enter("x", stringType)
	require.NoError(t, err)
	defer release()

	_, _, err = s.Enter("x", recordType)
	assert.True(t, errors.Is(err, failure.ErrBinding))
	assert.Equal(t, "Scope already contains a parameter with name 'x'", err.Error())
}

func TestScope_SiblingsMayReuseName(t *testing.T) {
	s := New(recordType)

	_, release, err := s.Enter("x", stringType)
	require.NoError(t, err)
	release()

	_, release, err = s.Enter("x", stringType)
	require.NoError(t, err)
	release()
}

func TestScope_Unnamed(t *testing.T) {
	s := New(recordType)
	assert.True(t, s.Current().IsGlobal())

	param, release, err := s.Enter("", stringType)
	require.NoError(t, err)
	assert.Equal(t, param, s.Current())
	assert.False(t, param.IsGlobal())

	release()
	assert.Equal(t, expression.GlobalParameterName, s.Current().Name())
}

func TestScope_Context(t *testing.T) {
	_, err := New(recordType).Context()
	assert.True(t, errors.Is(err, failure.ErrBinding))
	assert.Equal(t, "Cannot use context reference without a source", err.Error())

	ctx, err := New(recordType, WithContext(stringType)).Context()
	require.NoError(t, err)
	assert.Equal(t, stringType, ctx.Type())
}
