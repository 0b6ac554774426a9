// Package sqlfilter compiles nested AND/OR filter trees into parameterized
// postgres WHERE clauses.
package sqlfilter

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

const (
	LogicAnd = "AND"
	LogicOr  = "OR"

	TransformLower = "lower"
	TransformUpper = "upper"
)

var (
	ErrUnknownOperator = errors.New("sqlfilter: unknown operator")
	ErrUnknownField    = errors.New("sqlfilter: field not allowed")
	ErrUnknownLogic    = errors.New("sqlfilter: logic must be AND or OR")
	ErrInvalidValue    = errors.New("sqlfilter: value does not fit the column")
)

var (
	identRe   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)
	likeRe    = regexp.MustCompile(`^(%?)(LIKE|NOT\s+LIKE)(%?)$`)
	spaceRe   = regexp.MustCompile(`\s+`)
	binaryOps = map[string]bool{"=": true, "!=": true, "<>": true, "<": true, "<=": true, ">": true, ">=": true}
)

// Node is either a Condition or a Group.
type Node interface {
	isNode()
}

// Condition is a single comparison. Conditions with a nil or empty-string
// Value are skipped, except for IS NULL and IS NOT NULL.
type Condition struct {
	Field     string
	Operator  string
	Value     any
	Transform string
}

// Group joins its nodes with Logic. Nested groups are parenthesized.
type Group struct {
	Logic string
	Nodes []Node
}

func (Condition) isNode() {}
func (Group) isNode()     {}

// And groups nodes with AND.
func And(nodes ...Node) Group { return Group{Logic: LogicAnd, Nodes: nodes} }

// Or groups nodes with OR.
func Or(nodes ...Node) Group { return Group{Logic: LogicOr, Nodes: nodes} }

// Compiler turns a Group into SQL. Columns maps the public field names a
// caller may filter on to their SQL expressions; a nil map accepts any plain
// identifier.
type Compiler struct {
	Columns map[string]string
}

// Allow returns a Compiler whose public field names are the column names.
func Allow(fields ...string) Compiler {
	cols := make(map[string]string, len(fields))
	for _, f := range fields {
		cols[f] = f
	}
	return Compiler{Columns: cols}
}

// Validate reports the first unknown field, operator or logic in g.
func (c Compiler) Validate(g Group) error {
	_, err := c.Compile(g, 0)
	return err
}

// Clause is a compiled WHERE fragment and its positional arguments.
type Clause struct {
	SQL  string
	Args []any
}

// Empty reports whether no condition survived compilation.
func (c Clause) Empty() bool { return c.SQL == "" }

// Compile renders g with placeholders numbered from startAt+1.
func (c Compiler) Compile(g Group, startAt int) (Clause, error) {
	b := &builder{columns: c.Columns, n: startAt}
	sql, err := b.group(g)
	if err != nil {
		return Clause{}, err
	}
	return Clause{SQL: sql, Args: b.args}, nil
}

type builder struct {
	columns map[string]string
	n       int
	args    []any
}

func (b *builder) placeholder(v any) string {
	b.n++
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", b.n)
}

func (b *builder) group(g Group) (string, error) {
	logic, err := groupLogic(g)
	if err != nil {
		return "", err
	}

	clauses := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		switch node := n.(type) {
		case Condition:
			sql, err := b.condition(node)
			if err != nil {
				return "", err
			}
			if sql != "" {
				clauses = append(clauses, sql)
			}
		case Group:
			sql, err := b.group(node)
			if err != nil {
				return "", err
			}
			if sql != "" {
				clauses = append(clauses, "("+sql+")")
			}
		}
	}
	return strings.Join(clauses, " "+logic+" "), nil
}

func groupLogic(g Group) (string, error) {
	logic := strings.ToUpper(strings.TrimSpace(g.Logic))
	if logic == "" {
		logic = LogicAnd
	}
	if logic != LogicAnd && logic != LogicOr {
		return "", fmt.Errorf("%w: %q", ErrUnknownLogic, g.Logic)
	}
	return logic, nil
}

func normalizeOperator(op string) string {
	op = strings.ToUpper(spaceRe.ReplaceAllString(strings.TrimSpace(op), " "))
	if op == "" {
		return "="
	}
	return op
}

func (b *builder) column(field string) (string, error) {
	return lookupColumn(b.columns, field)
}

func lookupColumn(columns map[string]string, field string) (string, error) {
	if columns != nil {
		col, ok := columns[field]
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
		return col, nil
	}
	if !identRe.MatchString(field) {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return field, nil
}

func (b *builder) condition(cond Condition) (string, error) {
	if cond.Field == "" {
		return "", nil
	}

	op := normalizeOperator(cond.Operator)

	nullOp := op == "IS NULL" || op == "IS NOT NULL"
	if !nullOp && isBlank(cond.Value) {
		return "", nil
	}

	col, err := b.column(cond.Field)
	if err != nil {
		return "", err
	}
	expr := col
	switch cond.Transform {
	case TransformLower:
		expr = "LOWER(" + col + ")"
	case TransformUpper:
		expr = "UPPER(" + col + ")"
	}

	switch {
	case nullOp:
		return expr + " " + op, nil

	case likeRe.MatchString(op):
		m := likeRe.FindStringSubmatch(op)
		val := m[1] + fmt.Sprint(cond.Value) + m[3]
		val = transform(cond.Transform, val)
		return expr + " " + m[2] + " " + b.placeholder(val), nil

	case op == "IN" || op == "NOT IN":
		rv := reflect.ValueOf(cond.Value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return "", nil
		}
		if rv.Len() == 0 {
			return "", nil
		}
		params := make([]string, rv.Len())
		for i := range rv.Len() {
			params[i] = b.placeholder(transformValue(cond.Transform, rv.Index(i).Interface()))
		}
		return expr + " " + op + " (" + strings.Join(params, ", ") + ")", nil

	case binaryOps[op]:
		return expr + " " + op + " " + b.placeholder(transformValue(cond.Transform, cond.Value)), nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownOperator, cond.Operator)
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func transform(t, s string) string {
	switch t {
	case TransformLower:
		return strings.ToLower(s)
	case TransformUpper:
		return strings.ToUpper(s)
	}
	return s
}

func transformValue(t string, v any) any {
	if s, ok := v.(string); ok {
		return transform(t, s)
	}
	return v
}
