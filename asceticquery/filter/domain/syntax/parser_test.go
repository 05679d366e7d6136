package syntax

import (
	"errors"
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/go-cmp/cmp"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
)

func mustParse(t *testing.T, text string) Node {
	t.Helper()
	n, err := ParseText(text)
	if err != nil {
		t.Fatalf("unexpected error parsing %q: %v", text, err)
	}
	return n
}

func TestParse_Rendering(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{`Name eq "Foo"`, `(Name eq "Foo")`},
		{"a or b and c", "(a or (b and c))"},
		{"a and b or c", "((a and b) or c)"},
		{"a eq 1 and b neq 2", "((a eq 1) and (b neq 2))"},
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"(1 + 2) * 3", "((1 + 2) * 3)"},
		{"10 - 4 - 3", "((10 - 4) - 3)"},
		{"a gt 1 eq true", "((a gt 1) eq true)"},
		{"not not a", "(not (not a))"},
		{"-x % 2", "((-x) % 2)"},
		{"Credits gte 3.5", "(Credits gte 3.5)"},
		{"Enrollments.any(e: e.Grade eq \"A\")", `Enrollments.any((e: (e.Grade eq "A")))`},
		{"any(Enrollments)", "any(Enrollments)"},
		{"Title.startsWith(\"Intro\")", `Title.startsWith("Intro")`},
		{"now()", "now()"},
		{"$.Tenant eq TenantId", "($.Tenant eq TenantId)"},
		{"[first name] eq 'x\ty'", `([first name] eq "x\ty")`},
		{"a eq null", "(a eq null)"},
		{"Student.LastName", "Student.LastName"},
	}
	for _, c := range cases {
		t.Run(c.input, func(t *testing.T) {
			got := mustParse(t, c.input).String()
			if got != c.want {
				t.Errorf("expected %s, got %s", c.want, got)
			}
		})
	}
}

func TestParse_Shapes(t *testing.T) {
	n := mustParse(t, "Enrollments.any(e: e.Grade eq \"A\")")
	call, ok := n.(*Call)
	if !ok {
		t.Fatalf("expected *Call, got %T", n)
	}
	target, ok := call.Target.(*MemberAccess)
	if !ok || target.Name != "any" {
		t.Fatalf("expected member access 'any', got %#v", call.Target)
	}
	if _, ok := target.Target.(*Identifier); !ok {
		t.Errorf("expected identifier receiver, got %T", target.Target)
	}
	lambda, ok := call.Args[0].(*Lambda)
	if !ok || lambda.Parameter != "e" {
		t.Fatalf("expected lambda over e, got %#v", call.Args[0])
	}

	bare := mustParse(t, "Name")
	member, ok := bare.(*MemberAccess)
	if !ok || member.Target != nil || member.Name != "Name" {
		t.Errorf("expected normalized member access, got %#v", bare)
	}

	identCall := mustParse(t, "any(Items)").(*Call)
	if _, ok := identCall.Target.(*Identifier); !ok {
		t.Errorf("expected identifier call target, got %T", identCall.Target)
	}
	if arg, ok := identCall.Args[0].(*MemberAccess); !ok || arg.Target != nil {
		t.Errorf("expected normalized argument, got %#v", identCall.Args[0])
	}
}

func TestParse_Literals(t *testing.T) {
	cases := []struct {
		input string
		want  any
	}{
		{"42", 42},
		{`"s"`, "s"},
		{"true", true},
		{"false", false},
		{"null", nil},
	}
	for _, c := range cases {
		n := mustParse(t, c.input).(*Constant)
		if n.Value != c.want {
			t.Errorf("%s: expected %#v, got %#v", c.input, c.want, n.Value)
		}
	}
	d := mustParse(t, "1.50").(*Constant).Value.(apd.Decimal)
	if d.String() != "1.50" {
		t.Errorf("expected 1.50, got %s", d.String())
	}
}

func TestParse_Blank(t *testing.T) {
	for _, input := range []string{"", "   ", "\t\n"} {
		n, err := ParseText(input)
		if err != nil || n != nil {
			t.Errorf("%q: expected nil node and no error, got %v, %v", input, n, err)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		input   string
		kind    *failure.Error
		message string
	}{
		{"1,5 eq x", failure.ErrSyntactic, "Unexpected trailing comma, did you use the correct decimal separator?"},
		{"a eq 1 b", failure.ErrSyntactic, "Unexpected trailing content: b"},
		{"a eq", failure.ErrSyntactic, "Unexpected end of filter expression"},
		{"(a eq 1", failure.ErrSyntactic, "Unexpected end of filter expression"},
		{"(a eq 1 b", failure.ErrSyntactic, "Expected ')' but found 'b'"},
		{"a eq )", failure.ErrSyntactic, "Unexpected token ')'"},
		{"a.1", failure.ErrSyntactic, "Expected 'IDENTIFIER' but found '1'"},
		{"f(a, )", failure.ErrSyntactic, "Unexpected token ')'"},
		{"Age > 5", failure.ErrLexical, "Invalid identifier: '>'. Did you intend to use 'gt'?"},
	}
	for _, c := range cases {
		t.Run(c.input, func(t *testing.T) {
			_, err := ParseText(c.input)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.Is(err, c.kind) {
				t.Errorf("expected %s error, got %v", c.kind.Kind, err)
			}
			if err.Error() != c.message {
				t.Errorf("expected %q, got %q", c.message, err.Error())
			}
		})
	}
}

var decimalComparer = cmp.Comparer(func(a, b apd.Decimal) bool {
	return a.Cmp(&b) == 0
})

func TestParse_RoundTrip(t *testing.T) {
	inputs := []string{
		`(Name eq "Foo")`,
		`((Credits gt 3) and Title.startsWith("Intro"))`,
		`Enrollments.any((e: (e.Grade eq "A")))`,
		`((1 + (2 * 3)) eq 7.25)`,
		`(not (-(a - b) lt 0))`,
		`coalesce(Nickname, "n/a")`,
		`([odd name] neq null)`,
		`(Items.count() gte 2)`,
		`("tab\there" eq "q\"uote")`,
	}
	for _, input := range inputs {
		first := mustParse(t, input)
		second := mustParse(t, first.String())
		if diff := cmp.Diff(first, second, decimalComparer); diff != "" {
			t.Errorf("%s: round trip changed the tree (-first +second):\n%s", input, diff)
		}
	}
}

func TestHasContextReference(t *testing.T) {
	cases := map[string]bool{
		"$.Tenant eq 1":          true,
		"$ eq null":              true,
		"Items.any(i: i eq $.X)": true,
		"Name eq \"$\"":          false,
		"Name eq 1":              false,
	}
	for input, want := range cases {
		if got := HasContextReference(mustParse(t, input)); got != want {
			t.Errorf("%s: expected %v, got %v", input, want, got)
		}
	}
}
