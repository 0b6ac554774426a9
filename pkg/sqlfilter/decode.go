package sqlfilter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Parse decodes a JSON filter object into a Group joined by defaultLogic.
// Keys are read in document order: numeric keys hold leaf conditions and
// string keys name a nested group ("AND" or "OR") whose value is another
// filter object.
//
//	{"0": {"field": "type", "value": "deposit"},
//	 "OR": {"0": {"field": "amount", "operator": ">", "value": 100},
//	        "1": {"field": "description", "operator": "%LIKE%", "value": "rent", "transform": "lower"}}}
func Parse(data []byte, defaultLogic string) (Group, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	g, err := parseGroup(dec, defaultLogic)
	if err != nil {
		return Group{}, fmt.Errorf("parse filter: %w", err)
	}
	return g, nil
}

type rawCondition struct {
	Field     string `json:"field"`
	Operator  string `json:"operator"`
	Value     any    `json:"value"`
	Transform string `json:"transform"`
}

func parseGroup(dec *json.Decoder, logic string) (Group, error) {
	g := Group{Logic: logic}

	tok, err := dec.Token()
	if err != nil {
		return g, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return g, errors.New("expected object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return g, err
		}
		key, _ := tok.(string)

		if _, numErr := strconv.Atoi(key); numErr == nil {
			var rc rawCondition
			if err := dec.Decode(&rc); err != nil {
				return g, fmt.Errorf("condition %s: %w", key, err)
			}
			g.Nodes = append(g.Nodes, Condition{
				Field:     rc.Field,
				Operator:  rc.Operator,
				Value:     normalize(rc.Value),
				Transform: strings.ToLower(rc.Transform),
			})
			continue
		}

		nested, err := parseGroup(dec, strings.ToUpper(key))
		if err != nil {
			return g, fmt.Errorf("group %s: %w", key, err)
		}
		g.Nodes = append(g.Nodes, nested)
	}

	if _, err := dec.Token(); err != nil {
		return g, err
	}
	return g, nil
}

// normalize converts json.Number into int64 or float64 so drivers can
// encode it.
func normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	}
	return v
}
