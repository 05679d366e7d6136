package infrastructure

import (
	"reflect"
	"strings"
	"testing"
)

func TestLoadMapping(t *testing.T) {
	for _, path := range []string{"testdata/mapping.yaml", "testdata/mapping.cue"} {
		t.Run(path, func(t *testing.T) {
			m, err := LoadMapping(path)
			if err != nil {
				t.Fatalf("LoadMapping failed: %v", err)
			}
			schema := NewSchema()
			if err := m.Apply(schema, courseType, reflect.TypeOf(&Enrollment{})); err != nil {
				t.Fatalf("Apply failed: %v", err)
			}

			sql, _ := compile(t, `Credits gt 3 and Enrollments.any(e: e.Student.LastName eq "Alexander")`, courseType, WithSchema(schema))
			expected := "c.credit_points > $1 AND EXISTS (SELECT 1 FROM enrollments AS enrollment_1 WHERE enrollment_1.course_ref = c.id" +
				" AND (SELECT student_2.last_name FROM students AS student_2 WHERE student_2.id = enrollment_1.student_ref) = $2)"
			if sql != expected {
				t.Errorf("Expected SQL: %s, got: %s", expected, sql)
			}

			sql, _ = compile(t, `Tags.contains("lab")`, courseType, WithSchema(schema))
			if sql != "$1 = ANY(c.tag_list)" {
				t.Errorf("Expected SQL: $1 = ANY(c.tag_list), got: %s", sql)
			}

			enrollment, err := schema.Mapped(enrollmentType)
			if err != nil {
				t.Fatalf("Mapped failed: %v", err)
			}
			if enrollment.Key != "enrollment_id" || enrollment.Table != "enrollments" {
				t.Errorf("Unexpected enrollment mapping: %s %s", enrollment.Table, enrollment.Key)
			}
		})
	}
}

func TestLoadMappingFailures(t *testing.T) {
	cases := []struct {
		path    string
		message string
	}{
		{"testdata/invalid_mapping.cue", "mapping: invalid CUE mapping"},
		{"testdata/unknown_field.yaml", "mapping: failed to parse YAML"},
		{"testdata/missing.yaml", "mapping: failed to read file"},
	}
	for _, c := range cases {
		_, err := LoadMapping(c.path)
		if err == nil || !strings.HasPrefix(err.Error(), c.message) {
			t.Errorf("%s: expected %q, got %v", c.path, c.message, err)
		}
	}
	if _, err := LoadMapping("testdata/postgresql.golden"); err == nil || !strings.Contains(err.Error(), "unsupported file type") {
		t.Errorf("Expected an unsupported file type error, got %v", err)
	}
}

func TestMappingApplyUnknownEntity(t *testing.T) {
	m := &Mapping{Entities: map[string]EntityConfig{
		"Course":     {Table: "courses"},
		"Instructor": {Table: "instructors"},
		"Student":    {Navigations: map[string]NavigationConfig{"Enrollments": {Relation: "manyToMany"}}},
	}}
	err := m.Apply(NewSchema(), courseType, studentType)
	if err == nil {
		t.Fatal("Expected an error")
	}
	for _, part := range []string{"entity Instructor matches none of the given types", `entity Student: mapping: unknown relation "manyToMany"`} {
		if !strings.Contains(err.Error(), part) {
			t.Errorf("Expected %q in %q", part, err.Error())
		}
	}
}

func TestParseRelation(t *testing.T) {
	for _, r := range []Relation{BelongsTo, HasMany, Embedded} {
		parsed, err := ParseRelation(r.String())
		if err != nil || parsed != r {
			t.Errorf("ParseRelation(%s) = %v, %v", r, parsed, err)
		}
	}
}
