package filters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Values holds one or more filter values. A single value is encoded as a
// JSON string and several as an array; both forms are accepted on decode.
type Values []string

func (v Values) MarshalJSON() ([]byte, error) {
	if len(v) == 1 {
		return json.Marshal(v[0])
	}
	if v == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(v))
}

func (v *Values) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = nil
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Values{s}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("filter must be a string or an array of strings: %w", err)
	}
	*v = list
	return nil
}

// NonEmpty returns the values that are not empty strings.
func (v Values) NonEmpty() Values {
	var out Values
	for _, s := range v {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Record is one active filter.
type Record struct {
	Column      string `json:"column"`
	Filter      Values `json:"filter"`
	IsExclusive bool   `json:"isExclusive"`
}

func (r Record) Equal(other Record) bool {
	return r.Column == other.Column &&
		r.IsExclusive == other.IsExclusive &&
		slices.Equal(r.Filter, other.Filter)
}

// Item is a record addressed to a filter group in the URL. The suffix
// distinguishes groups sharing one query string, e.g. "_compare".
type Item struct {
	Column      string `json:"column" binding:"required"`
	Filter      Values `json:"filter"`
	IsExclusive bool   `json:"isExclusive"`
	Suffix      string `json:"suffix"`
}

func (i Item) Record() Record {
	return Record{Column: i.Column, Filter: i.Filter, IsExclusive: i.IsExclusive}
}

// EqualRecords compares two filter sequences element by element.
func EqualRecords(a, b []Record) bool {
	return slices.EqualFunc(a, b, Record.Equal)
}
