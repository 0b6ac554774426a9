// Package pagination normalizes list parameters and builds page metadata.
package pagination

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

const (
	OrderCreatedAtDesc = "created_at_desc"
	OrderCreatedAtAsc  = "created_at_asc"

	LogicAnd = "AND"
	LogicOr  = "OR"
)

// OrderOption is one selectable sort order.
type OrderOption struct {
	Key   string
	Label string
}

// Options lists the accepted values for records_per_page and order_by.
// The first entry of each list is the fallback for invalid input.
type Options struct {
	RecordsPerPage []string
	OrderBy        []OrderOption
}

// DefaultOptions returns the options shared by all list endpoints.
func DefaultOptions() Options {
	return Options{
		RecordsPerPage: []string{"25", "50", "75", "100"},
		OrderBy: []OrderOption{
			{Key: OrderCreatedAtDesc, Label: "Created At Desc"},
			{Key: OrderCreatedAtAsc, Label: "Created At Asc"},
		},
	}
}

// RawParams are the untrusted query-string values.
type RawParams struct {
	PageNumber     string `form:"page_number"`
	RecordsPerPage string `form:"records_per_page"`
	OrderBy        string `form:"order_by"`
	FilterLogic    string `form:"filter_logic"`
	ExactMatch     string `form:"exact_match"`
}

// Params are validated pagination parameters.
type Params struct {
	PageNumber     int
	RecordsPerPage int
	OrderBy        string
	FilterLogic    string
	ExactMatch     bool

	options Options
}

// Validate never fails: every invalid value falls back to its default.
func Validate(raw RawParams, opts Options) Params {
	if len(opts.RecordsPerPage) == 0 {
		opts.RecordsPerPage = DefaultOptions().RecordsPerPage
	}

	p := Params{
		PageNumber:  validatePageNumber(raw.PageNumber),
		FilterLogic: validateFilterLogic(raw.FilterLogic),
		ExactMatch:  strings.TrimSpace(raw.ExactMatch) == "1",
		options:     opts,
	}

	perPage := opts.RecordsPerPage[0]
	if slices.Contains(opts.RecordsPerPage, raw.RecordsPerPage) {
		perPage = raw.RecordsPerPage
	}
	p.RecordsPerPage, _ = strconv.Atoi(perPage)

	if len(opts.OrderBy) > 0 {
		p.OrderBy = opts.OrderBy[0].Key
		for _, o := range opts.OrderBy {
			if o.Key == raw.OrderBy {
				p.OrderBy = o.Key
				break
			}
		}
	}
	return p
}

// Offset returns the number of rows to skip.
func (p Params) Offset() int {
	return (p.PageNumber - 1) * p.RecordsPerPage
}

// Ascending reports whether results are ordered oldest first.
func (p Params) Ascending() bool {
	return p.OrderBy == OrderCreatedAtAsc
}

func validatePageNumber(s string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || f < 1 || f > math.MaxInt32 {
		return 1
	}
	return int(f)
}

func validateFilterLogic(s string) string {
	if strings.ToUpper(strings.TrimSpace(s)) == LogicOr {
		return LogicOr
	}
	return LogicAnd
}

// Meta describes the position of a page in the full result set.
type Meta struct {
	PageNumber        int    `json:"page_number"`
	RecordsPerPage    int    `json:"records_per_page"`
	OrderBy           string `json:"order_by"`
	Count             int    `json:"count"`
	TotalRecords      int64  `json:"total_records"`
	TotalRecordsFound int64  `json:"total_records_found"`
	TotalPages        int    `json:"total_pages"`
	HasNext           bool   `json:"has_next"`
	HasPrevious       bool   `json:"has_previous"`
	NextPage          *int   `json:"next_page"`
	PreviousPage      *int   `json:"previous_page"`
}

// OptionsView is the serialized form of Options.
type OptionsView struct {
	RecordsPerPageOptions []string          `json:"records_per_page_options"`
	OrderByOptions        map[string]string `json:"order_by_options"`
}

// Page is one page of results.
type Page[T any] struct {
	Meta    Meta        `json:"meta"`
	Options OptionsView `json:"options"`
	Chunk   []T         `json:"chunk"`
}

// Build assembles the page response. totalRecords counts the unfiltered set,
// totalFound the rows matching the filters.
func Build[T any](p Params, totalRecords, totalFound int64, chunk []T) Page[T] {
	if chunk == nil {
		chunk = []T{}
	}

	var totalPages int
	if p.RecordsPerPage > 0 {
		totalPages = int(math.Ceil(float64(totalFound) / float64(p.RecordsPerPage)))
	}

	hasNext := int64(p.PageNumber*p.RecordsPerPage) < totalFound
	hasPrev := p.PageNumber > 1

	meta := Meta{
		PageNumber:        p.PageNumber,
		RecordsPerPage:    p.RecordsPerPage,
		OrderBy:           p.OrderBy,
		Count:             len(chunk),
		TotalRecords:      totalRecords,
		TotalRecordsFound: totalFound,
		TotalPages:        totalPages,
		HasNext:           hasNext,
		HasPrevious:       hasPrev,
	}
	if hasNext {
		next := p.PageNumber + 1
		meta.NextPage = &next
	}
	if hasPrev {
		prev := p.PageNumber - 1
		meta.PreviousPage = &prev
	}

	orderBy := make(map[string]string, len(p.options.OrderBy))
	for _, o := range p.options.OrderBy {
		orderBy[o.Key] = o.Label
	}

	return Page[T]{
		Meta: meta,
		Options: OptionsView{
			RecordsPerPageOptions: p.options.RecordsPerPage,
			OrderByOptions:        orderBy,
		},
		Chunk: chunk,
	}
}
