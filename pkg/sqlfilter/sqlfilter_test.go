package sqlfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_FlatAnd(t *testing.T) {
	clause, err := Compiler{}.Compile(And(
		Condition{Field: "wallet_id", Value: "w1"},
		Condition{Field: "amount", Operator: ">=", Value: int64(100)},
	), 0)
	require.NoError(t, err)

	assert.Equal(t, "wallet_id = $1 AND amount >= $2", clause.SQL)
	assert.Equal(t, []any{"w1", int64(100)}, clause.Args)
}

func TestCompile_NestedGroups(t *testing.T) {
	clause, err := Compiler{}.Compile(And(
		Condition{Field: "wallet_id", Value: "w1"},
		Or(
			Condition{Field: "type", Operator: "IN", Value: []string{"deposit", "withdraw"}},
			Condition{Field: "description", Operator: "%LIKE%", Value: "Rent", Transform: TransformLower},
		),
	), 0)
	require.NoError(t, err)

	assert.Equal(t, "wallet_id = $1 AND (type IN ($2, $3) OR LOWER(description) LIKE $4)", clause.SQL)
	assert.Equal(t, []any{"w1", "deposit", "withdraw", "%rent%"}, clause.Args)
}

func TestCompile_StartOffset(t *testing.T) {
	clause, err := Compiler{}.Compile(And(Condition{Field: "currency", Value: "USD"}), 3)
	require.NoError(t, err)
	assert.Equal(t, "currency = $4", clause.SQL)
}

func TestCompile_LikeVariants(t *testing.T) {
	tests := []struct {
		op      string
		wantSQL string
		wantArg string
	}{
		{"%LIKE%", "name LIKE $1", "%bob%"},
		{"LIKE%", "name LIKE $1", "bob%"},
		{"%LIKE", "name LIKE $1", "%bob"},
		{"like", "name LIKE $1", "bob"},
		{"NOT LIKE", "name NOT LIKE $1", "bob"},
		{"%not  like%", "name NOT LIKE $1", "%bob%"},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			clause, err := Compiler{}.Compile(And(Condition{Field: "name", Operator: tt.op, Value: "bob"}), 0)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, clause.SQL)
			assert.Equal(t, []any{tt.wantArg}, clause.Args)
		})
	}
}

func TestCompile_SkipsEmptyValues(t *testing.T) {
	clause, err := Compiler{}.Compile(And(
		Condition{Field: "owner_name", Value: ""},
		Condition{Field: "currency", Value: nil},
		Condition{Field: "type", Operator: "IN", Value: []string{}},
		Condition{Field: "amount", Value: 0},
		Condition{Field: "related_wallet_id", Operator: "IS NULL"},
		Or(Condition{Field: "x", Value: ""}),
	), 0)
	require.NoError(t, err)

	assert.Equal(t, "amount = $1 AND related_wallet_id IS NULL", clause.SQL)
	assert.Equal(t, []any{0}, clause.Args)
}

func TestCompile_EmptyTree(t *testing.T) {
	clause, err := Compiler{}.Compile(Group{}, 0)
	require.NoError(t, err)
	assert.True(t, clause.Empty())
	assert.Empty(t, clause.Args)
}

func TestCompile_ColumnAllowList(t *testing.T) {
	c := Compiler{Columns: map[string]string{"owner": "w.owner_name"}}

	clause, err := c.Compile(And(Condition{Field: "owner", Operator: "=", Value: "Ann", Transform: TransformUpper}), 0)
	require.NoError(t, err)
	assert.Equal(t, "UPPER(w.owner_name) = $1", clause.SQL)
	assert.Equal(t, []any{"ANN"}, clause.Args)

	_, err = c.Compile(And(Condition{Field: "balance", Value: 1}), 0)
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestCompile_RejectsInjection(t *testing.T) {
	_, err := Compiler{}.Compile(And(Condition{Field: "id; DROP TABLE wallets", Value: 1}), 0)
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = Compiler{}.Compile(And(Condition{Field: "id", Operator: "= 1 OR 1", Value: 1}), 0)
	assert.ErrorIs(t, err, ErrUnknownOperator)

	_, err = Compiler{}.Compile(Group{Logic: "XOR"}, 0)
	assert.ErrorIs(t, err, ErrUnknownLogic)
}

func TestParse_NumericKeysAreLeaves(t *testing.T) {
	g, err := Parse([]byte(`{
		"0": {"field": "type", "value": "deposit"},
		"OR": {
			"0": {"field": "amount", "operator": ">", "value": 100},
			"1": {"field": "description", "operator": "%LIKE%", "value": "Rent", "transform": "LOWER"}
		},
		"1": {"field": "reference_id", "operator": "IN", "value": ["a", "b"]}
	}`), LogicAnd)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 3)

	clause, err := Compiler{}.Compile(g, 0)
	require.NoError(t, err)

	assert.Equal(t, "type = $1 AND (amount > $2 OR LOWER(description) LIKE $3) AND reference_id IN ($4, $5)", clause.SQL)
	assert.Equal(t, []any{"deposit", int64(100), "%rent%", "a", "b"}, clause.Args)
}

func TestParse_DefaultLogicOr(t *testing.T) {
	g, err := Parse([]byte(`{"0": {"field": "a", "value": 1.5}, "1": {"field": "b", "value": 2}}`), LogicOr)
	require.NoError(t, err)

	clause, err := Compiler{}.Compile(g, 0)
	require.NoError(t, err)
	assert.Equal(t, "a = $1 OR b = $2", clause.SQL)
	assert.Equal(t, []any{1.5, int64(2)}, clause.Args)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte(`[1,2]`), LogicAnd)
	assert.Error(t, err)

	_, err = Parse([]byte(`{"0": "oops"}`), LogicAnd)
	assert.Error(t, err)
}
