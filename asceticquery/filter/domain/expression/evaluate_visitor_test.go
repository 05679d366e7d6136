package expression

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/expression/operators"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/typeinfo"
)

type Address struct {
	City string
}

type Tag struct {
	Name string
}

type Person struct {
	Name    string
	Age     int
	Nick    *string
	Address *Address
	Tags    []Tag
}

func field(t reflect.Type, name string) reflect.StructField {
	f, ok := t.FieldByName(name)
	if !ok {
		panic(name)
	}
	return f
}

var personType = reflect.TypeOf(Person{})

func global() ParameterNode {
	return Parameter(GlobalParameterName, personType)
}

func TestEvaluate_Member(t *testing.T) {
	e := Equal(Member(global(), field(personType, "Name")), Constant("Ann", typeinfo.TypeString))

	result, err := Evaluate(e, Person{Name: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, true, result)

	result, err = Evaluate(e, &Person{Name: "Bob"})
	require.NoError(t, err)
	assert.Equal(t, false, result)
}

func TestEvaluate_NullableMember(t *testing.T) {
	nick := "a"
	e := Member(global(), field(personType, "Nick"))

	result, err := Evaluate(e, Person{Nick: &nick})
	require.NoError(t, err)
	assert.Equal(t, "a", result)

	result, err = Evaluate(e, Person{})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestEvaluate_MemberThroughNilPointer(t *testing.T) {
	address := Member(global(), field(personType, "Address"))
	e := Equal(Member(address, field(reflect.TypeOf(Address{}), "City")), Constant("Oslo", typeinfo.TypeString))

	result, err := Evaluate(e, Person{})
	require.NoError(t, err)
	assert.Equal(t, false, result)

	result, err = Evaluate(e, Person{Address: &Address{City: "Oslo"}})
	require.NoError(t, err)
	assert.Equal(t, true, result)
}

func TestEvaluate_Arithmetic(t *testing.T) {
	age := Member(global(), field(personType, "Age"))
	e := NewInfixNode(
		NewInfixNode(age, operators.OperatorAdd, Constant(1, typeinfo.TypeInt), typeinfo.TypeInt),
		operators.OperatorGt,
		Constant(30, typeinfo.TypeInt),
		typeinfo.TypeBool,
	)

	result, err := Evaluate(e, Person{Age: 30})
	require.NoError(t, err)
	assert.Equal(t, true, result)
}

func TestEvaluate_Convert(t *testing.T) {
	e := Convert(Member(global(), field(personType, "Age")), typeinfo.TypeInt64)

	result, err := Evaluate(e, Person{Age: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result)
}

func TestEvaluate_Context(t *testing.T) {
	e := Equal(Member(global(), field(personType, "Name")), Context(typeinfo.TypeString))

	result, err := Evaluate(e, Person{Name: "Ann"}, WithAmbient("Ann"))
	require.NoError(t, err)
	assert.Equal(t, true, result)
}

func TestEvaluate_LambdaCall(t *testing.T) {
	tagType := reflect.TypeOf(Tag{})
	param := Parameter("t", tagType)
	lambda := Lambda(param, Equal(Member(param, field(tagType, "Name")), Constant("go", typeinfo.TypeString)))
	anyImpl := func(args []any) (any, error) {
		items := reflect.ValueOf(args[0])
		predicate := args[1].(Func)
		for i := 0; i < items.Len(); i++ {
			ok, err := predicate(Normalize(items.Index(i)))
			if err != nil {
				return nil, err
			}
			if ok == true {
				return true, nil
			}
		}
		return false, nil
	}
	e := Call("any", []Expression{Member(global(), field(personType, "Tags")), lambda}, typeinfo.TypeBool, anyImpl)

	result, err := Evaluate(e, Person{Tags: []Tag{{"c"}, {"go"}}})
	require.NoError(t, err)
	assert.Equal(t, true, result)

	result, err = Evaluate(e, Person{Tags: []Tag{{"c"}}})
	require.NoError(t, err)
	assert.Equal(t, false, result)
}

func TestEvaluate_LambdaReleasesBinding(t *testing.T) {
	tagType := reflect.TypeOf(Tag{})
	outer := Parameter("a", tagType)
	inner := Parameter("b", tagType)
	body := Equal(Member(outer, field(tagType, "Name")), Member(inner, field(tagType, "Name")))

	v := NewEvaluateVisitor(DefaultRegistry())
	require.NoError(t, Lambda(outer, Lambda(inner, body)).Accept(v))
	outerFn := v.CurrentValue().(Func)

	innerValue, err := outerFn(Tag{"x"})
	require.NoError(t, err)
	_, err = innerValue.(Func)(Tag{"x"})
	assert.Error(t, err)
}

func TestEvaluateVisitor_Result(t *testing.T) {
	v := NewEvaluateVisitor(DefaultRegistry())

	require.NoError(t, Null().Accept(v))
	ok, err := v.Result()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, Constant(1, typeinfo.TypeInt).Accept(v))
	_, err = v.Result()
	assert.Error(t, err)
}

func TestEvaluate_UnboundParameter(t *testing.T) {
	_, err := Evaluate(Parameter("x", typeinfo.TypeInt), nil)
	assert.Error(t, err)
}
