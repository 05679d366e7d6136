package infrastructure

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/jinzhu/inflection"
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/expression"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/expression/operators"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/typeinfo"
)

// Compile renders the WHERE condition of f. A match-all filter renders as
// an empty string.
func Compile(f *filter.Filter, opts ...VisitorOption) (sql string, params []any, err error) {
	if f.IsMatchAll() {
		return "", nil, nil
	}
	if ambient, ok := f.Ambient(); ok {
		opts = append([]VisitorOption{WithAmbient(ambient)}, opts...)
	}
	v := NewSqlVisitor(opts...)
	if err := v.Render(f.Lambda().Body()); err != nil {
		return "", nil, err
	}
	return v.Result()
}

type VisitorOption func(*SqlVisitor)

// PlaceholderIndex is the number of parameters bound before the rendered
// condition; numbering continues after it.
func PlaceholderIndex(index int) VisitorOption {
	return func(v *SqlVisitor) {
		v.placeholderIndex = index
	}
}

func WithDialect(d Dialect) VisitorOption {
	return func(v *SqlVisitor) {
		v.dialect = d
	}
}

// WithSchema sets the table mappings used for columns and navigations
func WithSchema(schema *Schema) VisitorOption {
	return func(v *SqlVisitor) {
		v.schema = schema
	}
}

// WithRootAlias names the alias of the filtered table (defaults to the
// singularized table name).
func WithRootAlias(alias string) VisitorOption {
	return func(v *SqlVisitor) {
		v.rootAlias = alias
	}
}

// WithAmbient supplies the value of `$` for subtrees evaluated before
// rendering.
func WithAmbient(value any) VisitorOption {
	return func(v *SqlVisitor) {
		v.ambient = value
	}
}

func NewSqlVisitor(opts ...VisitorOption) *SqlVisitor {
	v := &SqlVisitor{
		precedenceMapping: make(map[string]int),
		dialect:           PostgreSQL,
		schema:            NewSchema(),
		aliases:           make(map[string]string),
	}
	// https://www.postgresql.org/docs/14/sql-syntax-lexical.html#SQL-PRECEDENCE-TABLE
	v.setPrecedence(160, ". LEFT")
	v.setPrecedence(160, ":: LEFT")
	v.setPrecedence(150, "[ LEFT")
	v.setPrecedence(140, "+ RIGHT", "- RIGHT")
	v.setPrecedence(130, "^ LEFT")
	v.setPrecedence(120, "* LEFT", "/ LEFT", "% LEFT")
	v.setPrecedence(110, "+ LEFT", "- LEFT")
	// all other native and user-defined operators 👇️
	v.setPrecedence(100, "(any other operator) LEFT")
	v.setPrecedence(90, "BETWEEN NON", "IN NON", "LIKE NON", "ILIKE NON", "SIMILAR NON")
	v.setPrecedence(80, "< NON", "> NON", "= NON", "<= NON", ">= NON", "!= NON")
	v.setPrecedence(70, "IS NON", "ISNULL NON", "NOTNULL NON")
	v.setPrecedence(60, "NOT RIGHT")
	v.setPrecedence(50, "AND LEFT")
	v.setPrecedence(40, "OR LEFT")
	for i := range opts {
		opts[i](v)
	}
	return v
}

// SqlVisitor renders a compiled predicate as a SQL condition. Members of
// the record become alias.column references, many-to-one navigations
// become scalar subqueries and collection functions become correlated
// subqueries. Subtrees that do not depend on the record are evaluated up
// front and bound as parameters.
type SqlVisitor struct {
	sql               string
	placeholderIndex  int
	parameters        []any
	precedence        int
	precedenceMapping map[string]int
	dialect           Dialect
	schema            *Schema
	ambient           any
	// Lambda parameter name -> alias of the rows it ranges over
	rootAlias    string
	aliases      map[string]string
	aliasCounter int
}

func sqlOperator(op operators.Operator) string {
	if op == operators.OperatorNeg {
		return "-"
	}
	return string(op)
}

func (v SqlVisitor) getNodePrecedenceKey(n expression.Operable) string {
	return fmt.Sprintf("%s %s", sqlOperator(n.Operator()), n.Associativity())
}

func (v SqlVisitor) setPrecedence(precedence int, operators ...string) {
	for _, op := range operators {
		v.precedenceMapping[op] = precedence
	}
}

func (v *SqlVisitor) visit(precedenceKey string, callable func() error) error {
	outerPrecedence := v.precedence
	innerPrecedence, ok := v.precedenceMapping[precedenceKey]
	if !ok {
		innerPrecedence, ok = v.precedenceMapping["(any other operator) LEFT"]
		if !ok {
			innerPrecedence = outerPrecedence
		}
	}
	v.precedence = innerPrecedence
	if innerPrecedence < outerPrecedence {
		v.sql += "("
	}
	err := callable()
	if err != nil {
		return err
	}
	if innerPrecedence < outerPrecedence {
		v.sql += ")"
	}
	v.precedence = outerPrecedence
	return nil
}

// group renders callable inside explicit delimiters, such as function
// arguments or a subquery, where operator precedence starts over.
func (v *SqlVisitor) group(callable func() error) error {
	outerPrecedence := v.precedence
	v.precedence = 0
	err := callable()
	v.precedence = outerPrecedence
	return err
}

// fragment renders e on its own, for dialect templates that splice it.
// Fragments must be spliced in rendering order for positional placeholders.
func (v *SqlVisitor) fragment(e expression.Expression) (string, error) {
	saved := v.sql
	v.sql = ""
	err := v.group(func() error { return v.Render(e) })
	result := v.sql
	v.sql = saved
	return result, err
}

// Render writes e, binding record independent subtrees as parameters.
func (v *SqlVisitor) Render(e expression.Expression) error {
	if _, ok := e.(expression.ConstantNode); !ok && isClosed(e, nil) {
		value, err := expression.Evaluate(e, nil, expression.WithAmbient(v.ambient))
		if err != nil {
			return err
		}
		v.bind(value)
		return nil
	}
	return e.Accept(v)
}

// isClosed reports whether e references no parameter bound outside of it.
func isClosed(e expression.Expression, bound map[string]bool) bool {
	switch n := e.(type) {
	case expression.ConstantNode, expression.ContextNode:
		return true
	case expression.ParameterNode:
		return bound[n.Name()]
	case expression.MemberNode:
		return isClosed(n.Target(), bound)
	case expression.ConvertNode:
		return isClosed(n.Operand(), bound)
	case expression.PrefixNode:
		return isClosed(n.Operand(), bound)
	case expression.InfixNode:
		return isClosed(n.Left(), bound) && isClosed(n.Right(), bound)
	case expression.LambdaNode:
		inner := map[string]bool{n.Parameter().Name(): true}
		for name := range bound {
			inner[name] = true
		}
		return isClosed(n.Body(), inner)
	case expression.CallNode:
		for _, arg := range n.Args() {
			if !isClosed(arg, bound) {
				return false
			}
		}
		return true
	}
	return false
}

func (v *SqlVisitor) bind(value any) {
	if value == nil {
		v.sql += "NULL"
		return
	}
	v.parameters = append(v.parameters, sqlValue(value))
	v.sql += v.dialect.Placeholder(v.placeholderIndex + len(v.parameters))
}

// sqlValue adapts values the drivers cannot encode: enums bind as their
// integer value, decimals as text.
func sqlValue(value any) any {
	switch x := value.(type) {
	case apd.Decimal:
		return x.Text('f')
	case *apd.Decimal:
		return x.Text('f')
	case typeinfo.Enum:
		rv := reflect.Indirect(reflect.ValueOf(x))
		if rv.CanInt() {
			return rv.Int()
		}
		return int64(rv.Uint())
	}
	return value
}

func (v *SqlVisitor) aliasOf(p expression.ParameterNode) string {
	if alias, ok := v.aliases[p.Name()]; ok {
		return alias
	}
	alias := v.rootAlias
	if alias == "" {
		alias = v.schema.Entity(p.Type()).AliasBase()
	}
	v.aliases[p.Name()] = alias
	return alias
}

func (v *SqlVisitor) nextAlias(base string) string {
	v.aliasCounter++
	return fmt.Sprintf("%s_%d", strings.ToLower(base), v.aliasCounter)
}

func (v *SqlVisitor) VisitConstant(n expression.ConstantNode) error {
	v.bind(n.Value())
	return nil
}

func (v *SqlVisitor) VisitParameter(n expression.ParameterNode) error {
	v.sql += v.aliasOf(n)
	return nil
}

func (v *SqlVisitor) VisitContext(_ expression.ContextNode) error {
	v.bind(v.ambient)
	return nil
}

func (v *SqlVisitor) VisitMember(n expression.MemberNode) error {
	owner := v.schema.Entity(n.Target().Type())
	field := n.Field()
	if !typeinfo.IsRecord(field.Type) && !typeinfo.IsCollection(typeinfo.Core(field.Type)) {
		return v.column(n.Target(), owner.Column(field))
	}
	nav, err := owner.Navigation(field)
	if err != nil {
		return err
	}
	switch {
	case nav.Relation == Embedded:
		return v.column(n.Target(), nav.Column)
	case nav.Relation == BelongsTo && len(nav.ForeignKeys) == 1:
		return v.column(n.Target(), nav.ForeignKeys[0].ChildColumn)
	}
	return errors.Errorf("infrastructure: %s.%s can only be used as a function argument", owner.Type.Name(), field.Name)
}

// column writes a reference to column of the row record evaluates to.
// Records reached through many-to-one navigations are read with scalar
// subqueries.
func (v *SqlVisitor) column(record expression.Expression, column string) error {
	switch r := record.(type) {
	case expression.ParameterNode:
		v.sql += v.aliasOf(r) + "." + column
		return nil
	case expression.ConvertNode:
		return v.column(r.Operand(), column)
	case expression.MemberNode:
		owner := v.schema.Entity(r.Target().Type())
		nav, err := owner.Navigation(r.Field())
		if err != nil {
			return err
		}
		if nav.Relation != BelongsTo {
			return errors.Errorf("infrastructure: %s.%s is not a reference", owner.Type.Name(), r.Name())
		}
		if len(nav.ForeignKeys) == 1 && nav.ForeignKeys[0].ParentColumn == column {
			return v.column(r.Target(), nav.ForeignKeys[0].ChildColumn)
		}
		target := v.schema.Entity(nav.Target)
		alias := v.nextAlias(target.AliasBase())
		v.sql += "(SELECT " + alias + "." + column + " FROM " + target.Table + " AS " + alias + " WHERE "
		for i, fk := range nav.ForeignKeys {
			if i > 0 {
				v.sql += " AND "
			}
			v.sql += alias + "." + fk.ParentColumn + " = "
			if err := v.column(r.Target(), fk.ChildColumn); err != nil {
				return err
			}
		}
		v.sql += ")"
		return nil
	}
	return errors.Errorf("infrastructure: cannot read a column of %T", record)
}

func (v *SqlVisitor) VisitConvert(n expression.ConvertNode) error {
	return v.Render(n.Operand())
}

func (v *SqlVisitor) VisitPrefix(node expression.PrefixNode) error {
	precedenceKey := v.getNodePrecedenceKey(node)
	return v.visit(precedenceKey, func() error {
		operator := node.Operator()
		if operator == operators.OperatorNeg {
			v.sql += "-"
		} else {
			v.sql += fmt.Sprintf("%s ", operator)
		}
		return v.Render(node.Operand())
	})
}

func isNullConstant(e expression.Expression) bool {
	c, ok := e.(expression.ConstantNode)
	return ok && c.Value() == nil
}

func (v *SqlVisitor) VisitInfix(n expression.InfixNode) error {
	if op := n.Operator(); op == operators.OperatorEq || op == operators.OperatorNe {
		operand := n.Left()
		if isNullConstant(operand) {
			operand = n.Right()
		}
		if isNullConstant(n.Left()) || isNullConstant(n.Right()) {
			postfix := operators.OperatorIsNull
			if op == operators.OperatorNe {
				postfix = operators.OperatorIsNotNull
			}
			return v.visit("IS NON", func() error {
				if err := v.Render(operand); err != nil {
					return err
				}
				v.sql += fmt.Sprintf(" %s", postfix)
				return nil
			})
		}
	}
	precedenceKey := v.getNodePrecedenceKey(n)
	return v.visit(precedenceKey, func() error {
		err := v.Render(n.Left())
		if err != nil {
			return err
		}
		v.sql += fmt.Sprintf(" %s ", sqlOperator(n.Operator()))
		return v.Render(n.Right())
	})
}

func (v *SqlVisitor) VisitLambda(n expression.LambdaNode) error {
	return errors.Errorf("infrastructure: lambda %s can only be rendered as a function argument", n.Parameter().Name())
}

func (v SqlVisitor) Result() (sql string, params []any, err error) {
	return v.sql, v.parameters, nil
}

// source is the row set of a collection navigation.
type source struct {
	alias  string
	owner  expression.Expression
	nav    NavigationMapping
	target *EntityMapping
}

func (v *SqlVisitor) collection(items expression.Expression) (source, error) {
	if c, ok := items.(expression.ConvertNode); ok {
		items = c.Operand()
	}
	m, ok := items.(expression.MemberNode)
	if !ok {
		return source{}, errors.Errorf("infrastructure: collection of type %s has no SQL translation", typeinfo.Name(items.Type()))
	}
	owner := v.schema.Entity(m.Target().Type())
	nav, err := owner.Navigation(m.Field())
	if err != nil {
		return source{}, err
	}
	s := source{owner: m.Target(), nav: nav}
	switch nav.Relation {
	case HasMany:
		s.target = v.schema.Entity(nav.Target)
		s.alias = v.nextAlias(s.target.AliasBase())
	case Embedded:
		if !v.dialect.SupportsArrays() {
			return source{}, errors.Errorf("infrastructure: %s does not support array column %s", v.dialect.Name(), nav.Column)
		}
		s.alias = v.nextAlias(inflection.Singular(snakeCase(m.Name())))
	default:
		return source{}, errors.Errorf("infrastructure: %s.%s is not a collection", owner.Type.Name(), m.Name())
	}
	return s, nil
}

// from writes the FROM clause of s and reports whether it opened a WHERE
// clause.
func (v *SqlVisitor) from(s source) (bool, error) {
	if s.nav.Relation == Embedded {
		v.sql += "FROM unnest("
		if err := v.column(s.owner, s.nav.Column); err != nil {
			return false, err
		}
		v.sql += ") AS " + s.alias
		return false, nil
	}
	v.sql += "FROM " + s.target.Table + " AS " + s.alias + " WHERE "
	for i, fk := range s.nav.ForeignKeys {
		if i > 0 {
			v.sql += " AND "
		}
		v.sql += s.alias + "." + fk.ChildColumn + " = "
		if err := v.column(s.owner, fk.ParentColumn); err != nil {
			return false, err
		}
	}
	return true, nil
}

// subquery writes "(SELECT <head> FROM <items> [WHERE <where>])". The
// lambda parameters of where and selector range over the collection rows.
func (v *SqlVisitor) subquery(items expression.Expression, head string, selector, where *expression.LambdaNode, negate bool) error {
	s, err := v.collection(items)
	if err != nil {
		return err
	}
	for _, l := range []*expression.LambdaNode{selector, where} {
		if l != nil {
			defer v.scope(l.Parameter().Name(), s.alias)()
		}
	}
	return v.group(func() error {
		v.sql += "(SELECT "
		switch {
		case selector == nil:
			v.sql += head
		case head == "SUM":
			v.sql += "COALESCE(SUM("
			if err := v.Render(selector.Body()); err != nil {
				return err
			}
			v.sql += "), 0)"
		default:
			v.sql += head + "("
			if err := v.Render(selector.Body()); err != nil {
				return err
			}
			v.sql += ")"
		}
		v.sql += " "
		hasWhere, err := v.from(s)
		if err != nil {
			return err
		}
		if where != nil {
			if hasWhere {
				v.sql += " AND "
			} else {
				v.sql += " WHERE "
			}
			if negate {
				v.sql += "NOT "
				v.precedence = v.precedenceMapping["NOT RIGHT"]
			} else {
				v.precedence = v.precedenceMapping["AND LEFT"]
			}
			if err := v.Render(where.Body()); err != nil {
				return err
			}
		}
		v.sql += ")"
		return nil
	})
}

// scope points a lambda parameter at alias until the returned func runs.
func (v *SqlVisitor) scope(name, alias string) (restore func()) {
	outer, shadowed := v.aliases[name]
	v.aliases[name] = alias
	return func() {
		if shadowed {
			v.aliases[name] = outer
		} else {
			delete(v.aliases, name)
		}
	}
}

func lambdaArg(args []expression.Expression, i int) (*expression.LambdaNode, error) {
	if len(args) <= i {
		return nil, nil
	}
	l, ok := args[i].(expression.LambdaNode)
	if !ok {
		return nil, errors.Errorf("infrastructure: argument %d is not a lambda", i+1)
	}
	return &l, nil
}

func isCollection(e expression.Expression) bool {
	return typeinfo.IsCollection(typeinfo.Core(e.Type()))
}

func (v *SqlVisitor) VisitCall(n expression.CallNode) error {
	args := n.Args()
	name := n.Name()
	switch name {
	case "any", "all":
		where, err := lambdaArg(args, 1)
		if err != nil {
			return err
		}
		if name == "any" {
			v.sql += "EXISTS "
			return v.subquery(args[0], "1", nil, where, false)
		}
		return v.visit("NOT RIGHT", func() error {
			v.sql += "NOT EXISTS "
			return v.subquery(args[0], "1", nil, where, true)
		})
	case "count":
		where, err := lambdaArg(args, 1)
		if err != nil {
			return err
		}
		return v.subquery(args[0], "COUNT(*)", nil, where, false)
	case "sum", "max", "min":
		selector, err := lambdaArg(args, 1)
		if err != nil {
			return err
		}
		return v.subquery(args[0], strings.ToUpper(name), selector, nil, false)
	case "length":
		if isCollection(args[0]) {
			return v.subquery(args[0], "COUNT(*)", nil, nil, false)
		}
		return v.function("LENGTH", args...)
	case "empty":
		if isCollection(args[0]) {
			return v.visit("NOT RIGHT", func() error {
				v.sql += "NOT EXISTS "
				return v.subquery(args[0], "1", nil, nil, false)
			})
		}
		return v.visit("= NON", func() error {
			if err := v.Render(args[0]); err != nil {
				return err
			}
			v.sql += " = ''"
			return nil
		})
	case "contains":
		return v.contains(args[0], args[1])
	case "startswith":
		return v.template(func(f []string) string { return v.dialect.StartsWith(f[0], f[1]) }, args[0], args[1])
	case "endswith":
		return v.template(func(f []string) string { return v.dialect.EndsWith(f[0], f[1], f[2]) }, args[0], args[1], args[1])
	case "lower", "upper", "trim", "coalesce":
		return v.function(strings.ToUpper(name), args...)
	case "substring":
		return v.substring(args)
	case "tostring":
		return v.cast(args[0], "TEXT")
	case "isnull":
		return v.visit("IS NON", func() error {
			if err := v.Render(args[0]); err != nil {
				return err
			}
			v.sql += " IS NULL"
			return nil
		})
	case "datepart":
		part := constantString(args[1])
		operand, err := v.fragment(args[0])
		if err != nil {
			return err
		}
		sql, err := v.dialect.DatePart(part, operand)
		if err != nil {
			return err
		}
		v.sql += sql
		return nil
	case "dateadd":
		part := constantString(args[1])
		operand, err := v.fragment(args[0])
		if err != nil {
			return err
		}
		amount, err := v.fragment(args[2])
		if err != nil {
			return err
		}
		sql, err := v.dialect.DateAdd(operand, part, amount)
		if err != nil {
			return err
		}
		v.sql += sql
		return nil
	case "bool":
		if typeinfo.Core(args[0].Type()).Kind() == reflect.Bool {
			return v.Render(args[0])
		}
		if !typeinfo.IsNumeric(typeinfo.Core(args[0].Type())) {
			return errors.Errorf("infrastructure: bool(%s) has no SQL translation", typeinfo.Name(args[0].Type()))
		}
		return v.visit("!= NON", func() error {
			if err := v.Render(args[0]); err != nil {
				return err
			}
			v.sql += " != 0"
			return nil
		})
	}
	if sqlType, ok := v.dialect.CastType(name); ok {
		return v.cast(args[0], sqlType)
	}
	return errors.Errorf("infrastructure: function %s() has no SQL translation", name)
}

func constantString(e expression.Expression) string {
	if c, ok := e.(expression.ConstantNode); ok {
		s, _ := c.Value().(string)
		return s
	}
	return ""
}

func (v *SqlVisitor) function(name string, args ...expression.Expression) error {
	v.sql += name + "("
	err := v.group(func() error {
		for i, arg := range args {
			if i > 0 {
				v.sql += ", "
			}
			if err := v.Render(arg); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	v.sql += ")"
	return nil
}

func (v *SqlVisitor) cast(e expression.Expression, sqlType string) error {
	v.sql += "CAST("
	if err := v.group(func() error { return v.Render(e) }); err != nil {
		return err
	}
	v.sql += " AS " + sqlType + ")"
	return nil
}

// template renders args as fragments and splices them with render. The
// result is treated as a comparison.
func (v *SqlVisitor) template(render func(fragments []string) string, args ...expression.Expression) error {
	fragments := make([]string, len(args))
	for i, arg := range args {
		f, err := v.fragment(arg)
		if err != nil {
			return err
		}
		fragments[i] = f
	}
	return v.visit("= NON", func() error {
		v.sql += render(fragments)
		return nil
	})
}

func (v *SqlVisitor) substring(args []expression.Expression) error {
	v.sql += "SUBSTR("
	err := v.group(func() error {
		if err := v.Render(args[0]); err != nil {
			return err
		}
		v.sql += ", "
		v.precedence = v.precedenceMapping["+ LEFT"]
		if err := v.Render(args[1]); err != nil {
			return err
		}
		v.sql += " + 1"
		v.precedence = 0
		if len(args) > 2 {
			v.sql += ", "
			return v.Render(args[2])
		}
		return nil
	})
	if err != nil {
		return err
	}
	v.sql += ")"
	return nil
}

// contains tests a substring, membership in an embedded array or
// membership in a record independent collection.
func (v *SqlVisitor) contains(items, needle expression.Expression) error {
	if !isCollection(items) {
		return v.template(func(f []string) string { return v.dialect.Contains(f[0], f[1]) }, items, needle)
	}
	if isClosed(items, nil) {
		value, err := expression.Evaluate(items, nil, expression.WithAmbient(v.ambient))
		if err != nil {
			return err
		}
		rv := reflect.ValueOf(value)
		if value == nil || rv.Len() == 0 {
			v.sql += "1 = 0"
			return nil
		}
		return v.visit("IN NON", func() error {
			if err := v.Render(needle); err != nil {
				return err
			}
			v.sql += " IN ("
			for i := 0; i < rv.Len(); i++ {
				if i > 0 {
					v.sql += ", "
				}
				v.bind(expression.Normalize(rv.Index(i)))
			}
			v.sql += ")"
			return nil
		})
	}
	s, err := v.collection(items)
	if err != nil {
		return err
	}
	if s.nav.Relation != Embedded {
		return errors.Errorf("infrastructure: contains() over %s.%s has no SQL translation", s.target.Type.Name(), s.nav.Field)
	}
	return v.visit("= NON", func() error {
		if err := v.Render(needle); err != nil {
			return err
		}
		v.sql += " = ANY("
		if err := v.column(s.owner, s.nav.Column); err != nil {
			return err
		}
		v.sql += ")"
		return nil
	})
}
