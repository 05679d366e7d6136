package main

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cobra"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/infrastructure"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/query"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/repository"
	"github.com/krew-solutions/ascetic-query-go/examples/contoso"
)

type sqlStatement struct {
	Include string `json:"include,omitempty"`
	Sql     string `json:"sql"`
	Params  []any  `json:"params"`
}

type sqlOptions struct {
	typeName string
	dialect  string
	mapping  string
	includes []string
}

func NewSqlCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &sqlOptions{}

	cmd := &cobra.Command{
		Use:   "sql --type <record> <filter>",
		Short: "Translate a filter to SQL",
		Long: `Print the SELECT a repository issues for a filter, followed by the
conditions of filtered includes. The bundled contoso mapping is used
unless --mapping names a .yaml or .cue file.

The dialect defaults to $FILTERC_DIALECT, then postgres.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSql(rootOpts, opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.typeName, "type", "Course", "record type (Course|Enrollment|Student)")
	cmd.Flags().StringVar(&opts.dialect, "dialect", getEnv("FILTERC_DIALECT", "postgres"), "SQL dialect (postgres|sqlite)")
	cmd.Flags().StringVar(&opts.mapping, "mapping", "", "relational mapping file")
	cmd.Flags().StringArrayVar(&opts.includes, "include", nil, "include path, may be repeated")

	return cmd
}

func runSql(rootOpts *RootOptions, opts *sqlOptions, cmd *cobra.Command, text string) error {
	out := rootOpts.formatter(cmd)
	t, err := recordType(opts.typeName)
	if err != nil {
		return err
	}
	dialect, err := infrastructure.DialectByName(opts.dialect)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid dialect", err)
	}
	schema, err := loadSchema(opts.mapping)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid mapping", err)
	}
	out.VerboseLog("dialect %s, %d mapped types", dialect.Name(), len(schema.Types()))

	q, err := query.Prepare(t, opts.includes, text, rootOpts.filterOptions(cmd)...)
	if err != nil {
		return out.Failure(ExitFailure, "compile failed", err, nil)
	}
	statements, err := render(schema, dialect, q)
	if err != nil {
		return out.Failure(ExitFailure, "translation failed", err, nil)
	}

	lines := make([]string, 0, len(statements)*2)
	for _, s := range statements {
		if s.Include != "" {
			lines = append(lines, "-- include "+s.Include)
		}
		lines = append(lines, s.Sql, formatParams(s.Params))
	}
	return out.Success(strings.Join(lines, "\n"), statements)
}

func loadSchema(path string) (*infrastructure.Schema, error) {
	if path == "" {
		return contoso.NewSchema()
	}
	m, err := infrastructure.LoadMapping(path)
	if err != nil {
		return nil, err
	}
	types := make([]reflect.Type, 0, len(contoso.Types))
	for _, t := range contoso.Types {
		types = append(types, t)
	}
	schema := infrastructure.NewSchema()
	if err := m.Apply(schema, types...); err != nil {
		return nil, err
	}
	return schema, nil
}

// render returns the root statement, then one condition per filtered include
// aliased like the included table.
func render(schema *infrastructure.Schema, dialect infrastructure.Dialect, q *query.Query) ([]sqlStatement, error) {
	sql, params, err := repository.Statement(schema, dialect, q)
	if err != nil {
		return nil, err
	}
	result := []sqlStatement{{Sql: sql, Params: params}}
	for _, d := range q.Directives() {
		if d.Filter == nil || d.Filter.IsMatchAll() {
			continue
		}
		sql, params, err := infrastructure.Compile(d.Filter,
			infrastructure.WithDialect(dialect),
			infrastructure.WithSchema(schema),
			infrastructure.WithRootAlias(schema.Entity(d.Target).AliasBase()),
		)
		if err != nil {
			return nil, err
		}
		result = append(result, sqlStatement{Include: d.String(), Sql: sql, Params: params})
	}
	return result, nil
}

func formatParams(params []any) string {
	items := make([]string, len(params))
	for i, p := range params {
		items[i] = fmt.Sprintf("%T(%v)", p, p)
	}
	return "-- params: [" + strings.Join(items, ", ") + "]"
}
