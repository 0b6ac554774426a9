package pagination

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Defaults(t *testing.T) {
	p := Validate(RawParams{}, DefaultOptions())

	assert.Equal(t, 1, p.PageNumber)
	assert.Equal(t, 25, p.RecordsPerPage)
	assert.Equal(t, OrderCreatedAtDesc, p.OrderBy)
	assert.Equal(t, LogicAnd, p.FilterLogic)
	assert.False(t, p.ExactMatch)
	assert.Equal(t, 0, p.Offset())
	assert.False(t, p.Ascending())
}

func TestValidate_PageNumber(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"3", 3},
		{"2.7", 2},
		{"0", 1},
		{"-4", 1},
		{"abc", 1},
		{"NaN", 1},
		{"1e20", 1},
		{" 5 ", 5},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p := Validate(RawParams{PageNumber: tt.in}, DefaultOptions())
			assert.Equal(t, tt.want, p.PageNumber)
		})
	}
}

func TestValidate_RecordsPerPage(t *testing.T) {
	assert.Equal(t, 50, Validate(RawParams{RecordsPerPage: "50"}, DefaultOptions()).RecordsPerPage)
	assert.Equal(t, 25, Validate(RawParams{RecordsPerPage: "10"}, DefaultOptions()).RecordsPerPage)
	assert.Equal(t, 25, Validate(RawParams{RecordsPerPage: "1000"}, Options{}).RecordsPerPage)
}

func TestValidate_OrderAndLogic(t *testing.T) {
	p := Validate(RawParams{
		OrderBy:     OrderCreatedAtAsc,
		FilterLogic: " or ",
		ExactMatch:  "1",
		PageNumber:  "3",
	}, DefaultOptions())

	assert.Equal(t, OrderCreatedAtAsc, p.OrderBy)
	assert.True(t, p.Ascending())
	assert.Equal(t, LogicOr, p.FilterLogic)
	assert.True(t, p.ExactMatch)
	assert.Equal(t, 50, p.Offset())

	p = Validate(RawParams{OrderBy: "Created At Asc", FilterLogic: "XOR", ExactMatch: "yes"}, DefaultOptions())
	assert.Equal(t, OrderCreatedAtDesc, p.OrderBy)
	assert.Equal(t, LogicAnd, p.FilterLogic)
	assert.False(t, p.ExactMatch)
}

func TestBuild_Meta(t *testing.T) {
	p := Validate(RawParams{PageNumber: "2", RecordsPerPage: "25"}, DefaultOptions())
	page := Build(p, 120, 60, []string{"a", "b"})

	assert.Equal(t, 2, page.Meta.PageNumber)
	assert.Equal(t, 2, page.Meta.Count)
	assert.Equal(t, int64(120), page.Meta.TotalRecords)
	assert.Equal(t, int64(60), page.Meta.TotalRecordsFound)
	assert.Equal(t, 3, page.Meta.TotalPages)
	assert.True(t, page.Meta.HasNext)
	assert.True(t, page.Meta.HasPrevious)
	require.NotNil(t, page.Meta.NextPage)
	require.NotNil(t, page.Meta.PreviousPage)
	assert.Equal(t, 3, *page.Meta.NextPage)
	assert.Equal(t, 1, *page.Meta.PreviousPage)
	assert.Equal(t, []string{"25", "50", "75", "100"}, page.Options.RecordsPerPageOptions)
	assert.Equal(t, "Created At Desc", page.Options.OrderByOptions[OrderCreatedAtDesc])
}

func TestBuild_LastPage(t *testing.T) {
	p := Validate(RawParams{PageNumber: "1"}, DefaultOptions())
	page := Build[int](p, 3, 3, nil)

	assert.False(t, page.Meta.HasNext)
	assert.False(t, page.Meta.HasPrevious)
	assert.Nil(t, page.Meta.NextPage)
	assert.Nil(t, page.Meta.PreviousPage)
	assert.Equal(t, 1, page.Meta.TotalPages)

	raw, err := json.Marshal(page)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"chunk":[]`)
	assert.Contains(t, string(raw), `"next_page":null`)
}
