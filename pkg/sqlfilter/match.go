package sqlfilter

import (
	"cmp"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
)

// Fields maps the public field names of a row to a zero value of their
// type. It is the allow list for filter trees supplied by clients.
type Fields map[string]any

// Names returns the field names in no particular order.
func (f Fields) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	return names
}

// Compiler returns a Compiler accepting exactly these fields.
func (f Fields) Compiler() Compiler { return Allow(f.Names()...) }

// Check validates g against the allow list and the field types. Values that
// could not be compared with the field fail with ErrInvalidValue.
func (f Fields) Check(g Group) error {
	c := f.Compiler()
	if err := c.Validate(g); err != nil {
		return err
	}
	_, err := c.Match(g, func(field string) any { return f[field] })
	return err
}

// Match evaluates g against a single row, where value returns the row's
// value for a field. It follows the SQL that Compile renders: skipped
// conditions and empty groups do not constrain the row, a NULL row value
// matches only IS NULL, and LIKE is case-sensitive unless a transform is
// applied.
func (c Compiler) Match(g Group, value func(field string) any) (bool, error) {
	ok, _, err := c.matchGroup(g, value)
	return ok, err
}

// matchGroup evaluates every node so that a bad value anywhere in the tree
// is reported regardless of the row.
func (c Compiler) matchGroup(g Group, value func(string) any) (result, active bool, err error) {
	logic, err := groupLogic(g)
	if err != nil {
		return false, false, err
	}

	result = logic == LogicAnd
	for _, n := range g.Nodes {
		var ok, on bool
		switch node := n.(type) {
		case Condition:
			ok, on, err = c.matchCondition(node, value)
		case Group:
			ok, on, err = c.matchGroup(node, value)
		}
		if err != nil {
			return false, false, err
		}
		if !on {
			continue
		}
		active = true
		if logic == LogicAnd {
			result = result && ok
		} else {
			result = result || ok
		}
	}
	if !active {
		return true, false, nil
	}
	return result, true, nil
}

func (c Compiler) matchCondition(cond Condition, value func(string) any) (result, active bool, err error) {
	if cond.Field == "" {
		return false, false, nil
	}
	op := normalizeOperator(cond.Operator)
	nullOp := op == "IS NULL" || op == "IS NOT NULL"
	if !nullOp && isBlank(cond.Value) {
		return false, false, nil
	}
	if _, err := lookupColumn(c.Columns, cond.Field); err != nil {
		return false, false, err
	}

	row := rowValue(value(cond.Field))
	if s, ok := row.(string); ok {
		row = transform(cond.Transform, s)
	}

	switch {
	case nullOp:
		return (row == nil) == (op == "IS NULL"), true, nil

	case likeRe.MatchString(op):
		m := likeRe.FindStringSubmatch(op)
		pattern := transform(cond.Transform, m[1]+fmt.Sprint(cond.Value)+m[3])
		if row == nil {
			return false, true, nil
		}
		s, ok := row.(string)
		if !ok {
			return false, false, fmt.Errorf("%w: %s LIKE on a non-text field", ErrInvalidValue, cond.Field)
		}
		matched := likePattern(pattern).MatchString(s)
		return matched == (m[2] == "LIKE"), true, nil

	case op == "IN" || op == "NOT IN":
		rv := reflect.ValueOf(cond.Value)
		if (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) || rv.Len() == 0 {
			return false, false, nil
		}
		found := false
		for i := range rv.Len() {
			d, err := compare(row, transformValue(cond.Transform, rv.Index(i).Interface()))
			if err != nil {
				return false, false, fmt.Errorf("%s: %w", cond.Field, err)
			}
			if d == 0 && row != nil {
				found = true
			}
		}
		if row == nil {
			return false, true, nil
		}
		return found == (op == "IN"), true, nil

	case binaryOps[op]:
		d, err := compare(row, transformValue(cond.Transform, cond.Value))
		if err != nil {
			return false, false, fmt.Errorf("%s: %w", cond.Field, err)
		}
		if row == nil {
			return false, true, nil
		}
		switch op {
		case "=":
			return d == 0, true, nil
		case "!=", "<>":
			return d != 0, true, nil
		case "<":
			return d < 0, true, nil
		case "<=":
			return d <= 0, true, nil
		case ">":
			return d > 0, true, nil
		default:
			return d >= 0, true, nil
		}
	}

	return false, false, fmt.Errorf("%w: %q", ErrUnknownOperator, cond.Operator)
}

// rowValue reduces a row value to nil, string, int64, float64 or time.Time.
func rowValue(v any) any {
	switch val := v.(type) {
	case nil, string, int64, float64, time.Time:
		return val
	case *time.Time:
		if val == nil {
			return nil
		}
		return *val
	case fmt.Stringer:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil
		}
		return val.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return rowValue(rv.Elem().Interface())
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return v
}

// compare orders a filter value against a row value. A nil row compares as
// equal to anything of a valid type; callers treat it as NULL.
func compare(row, val any) (int, error) {
	val = rowValue(val)
	switch r := row.(type) {
	case nil:
		return 0, nil
	case string:
		if s, ok := val.(string); ok {
			return strings.Compare(r, s), nil
		}
	case int64:
		if v, ok := val.(int64); ok {
			return cmp.Compare(r, v), nil
		}
	case float64:
		switch v := val.(type) {
		case float64:
			return cmp.Compare(r, v), nil
		case int64:
			return cmp.Compare(r, float64(v)), nil
		}
	case time.Time:
		switch v := val.(type) {
		case time.Time:
			return r.Compare(v), nil
		case string:
			t, err := time.Parse(time.RFC3339Nano, v)
			if err == nil {
				return r.Compare(t), nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %v", ErrInvalidValue, val)
}

// likePattern translates a LIKE pattern into an anchored regexp.
func likePattern(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString(`^(?s)`)
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(`.*`)
		case '_':
			b.WriteString(`.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`$`)
	return regexp.MustCompile(b.String())
}
