package infrastructure

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Dialect renders the parts of a predicate that differ between databases.
type Dialect interface {
	Name() string
	// Placeholder renders the n-th (1-based) parameter.
	Placeholder(n int) string
	// Contains renders a substring test.
	Contains(haystack, needle string) string
	// StartsWith renders a case-sensitive prefix test.
	StartsWith(haystack, needle string) string
	// EndsWith renders a case-sensitive suffix test; the needle is
	// rendered twice so that each copy binds its own parameter.
	EndsWith(haystack, needle, needleAgain string) string
	// DatePart extracts an integer part of a timestamp.
	DatePart(part, operand string) (string, error)
	// DateAdd shifts a timestamp by amount units of part.
	DateAdd(operand, part, amount string) (string, error)
	// CastType names the SQL type of a conversion function.
	CastType(function string) (string, bool)
	// SupportsArrays reports whether embedded array columns can be queried.
	SupportsArrays() bool
}

var (
	PostgreSQL Dialect = postgresql{}
	SQLite     Dialect = sqlite{}
)

// DialectByName accepts "postgres", "postgresql", "pg" and "sqlite".
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pg":
		return PostgreSQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return nil, errors.Errorf("infrastructure: unknown dialect %q", name)
}

type postgresql struct{}

func (postgresql) Name() string { return "postgresql" }

func (postgresql) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (postgresql) Contains(haystack, needle string) string {
	return "strpos(" + haystack + ", " + needle + ") > 0"
}

func (postgresql) StartsWith(haystack, needle string) string {
	return "starts_with(" + haystack + ", " + needle + ")"
}

func (postgresql) EndsWith(haystack, needle, needleAgain string) string {
	return "right(" + haystack + ", char_length(CAST(" + needle + " AS TEXT))) = " + needleAgain
}

var postgresqlParts = map[string]string{
	"year":        "YEAR",
	"month":       "MONTH",
	"day":         "DAY",
	"hour":        "HOUR",
	"minute":      "MINUTE",
	"second":      "SECOND",
	"millisecond": "MILLISECONDS",
	"dayofweek":   "DOW",
	"dayofyear":   "DOY",
}

func (postgresql) DatePart(part, operand string) (string, error) {
	field, ok := postgresqlParts[part]
	if !ok {
		return "", errors.Errorf("infrastructure: date part '%s' has no postgresql translation", part)
	}
	if part == "millisecond" {
		return "(CAST(EXTRACT(MILLISECONDS FROM " + operand + ") AS INTEGER) % 1000)", nil
	}
	return "CAST(EXTRACT(" + field + " FROM " + operand + ") AS INTEGER)", nil
}

var postgresqlUnits = map[string]string{
	"years":        "1 year",
	"months":       "1 month",
	"days":         "1 day",
	"hours":        "1 hour",
	"minutes":      "1 minute",
	"seconds":      "1 second",
	"milliseconds": "1 millisecond",
}

func (postgresql) DateAdd(operand, part, amount string) (string, error) {
	unit, ok := postgresqlUnits[part]
	if !ok {
		return "", errors.Errorf("infrastructure: date part '%s' has no postgresql translation", part)
	}
	return "(" + operand + " + " + amount + " * INTERVAL '" + unit + "')", nil
}

var postgresqlTypes = map[string]string{
	"int":     "INTEGER",
	"uint":    "BIGINT",
	"short":   "SMALLINT",
	"ushort":  "INTEGER",
	"byte":    "SMALLINT",
	"sbyte":   "SMALLINT",
	"long":    "BIGINT",
	"ulong":   "NUMERIC",
	"decimal": "NUMERIC",
	"double":  "DOUBLE PRECISION",
	"float":   "REAL",
}

func (postgresql) CastType(function string) (string, bool) {
	t, ok := postgresqlTypes[function]
	return t, ok
}

func (postgresql) SupportsArrays() bool { return true }

type sqlite struct{}

func (sqlite) Name() string { return "sqlite" }

func (sqlite) Placeholder(int) string {
	return "?"
}

func (sqlite) Contains(haystack, needle string) string {
	return "instr(" + haystack + ", " + needle + ") > 0"
}

func (sqlite) StartsWith(haystack, needle string) string {
	return "instr(" + haystack + ", " + needle + ") = 1"
}

// EndsWith treats an empty needle as no match: substr(x, 0) is x.
func (sqlite) EndsWith(haystack, needle, needleAgain string) string {
	return "substr(" + haystack + ", -length(" + needle + ")) = " + needleAgain
}

var sqliteParts = map[string]string{
	"year":      "%Y",
	"month":     "%m",
	"day":       "%d",
	"hour":      "%H",
	"minute":    "%M",
	"second":    "%S",
	"dayofweek": "%w",
	"dayofyear": "%j",
}

func (sqlite) DatePart(part, operand string) (string, error) {
	if part == "millisecond" {
		return "CAST(substr(strftime('%f', " + operand + "), 4) AS INTEGER)", nil
	}
	format, ok := sqliteParts[part]
	if !ok {
		return "", errors.Errorf("infrastructure: date part '%s' has no sqlite translation", part)
	}
	return "CAST(strftime('" + format + "', " + operand + ") AS INTEGER)", nil
}

var sqliteUnits = map[string]string{
	"years":   "years",
	"months":  "months",
	"days":    "days",
	"hours":   "hours",
	"minutes": "minutes",
	"seconds": "seconds",
}

func (sqlite) DateAdd(operand, part, amount string) (string, error) {
	unit, ok := sqliteUnits[part]
	if !ok {
		return "", errors.Errorf("infrastructure: date part '%s' has no sqlite translation", part)
	}
	return "datetime(" + operand + ", printf('%+d " + unit + "', " + amount + "))", nil
}

var sqliteTypes = map[string]string{
	"int":     "INTEGER",
	"uint":    "INTEGER",
	"short":   "INTEGER",
	"ushort":  "INTEGER",
	"byte":    "INTEGER",
	"sbyte":   "INTEGER",
	"long":    "INTEGER",
	"ulong":   "INTEGER",
	"decimal": "NUMERIC",
	"double":  "REAL",
	"float":   "REAL",
}

func (sqlite) CastType(function string) (string, bool) {
	t, ok := sqliteTypes[function]
	return t, ok
}

func (sqlite) SupportsArrays() bool { return false }
