package infrastructure

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// snakeCase maps Go identifiers to column names: CourseId -> course_id,
// HTTPServer -> http_server.
func snakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// tableName is the default table of a record type: Course -> courses.
func tableName(typeName string) string {
	return inflection.Plural(snakeCase(typeName))
}

// aliasBase is the default alias prefix of a table: courses -> course.
func aliasBase(table string) string {
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		table = table[i+1:]
	}
	return inflection.Singular(table)
}
