package filters

import (
	"fmt"
	"iter"
	"net/url"
	"strings"
)

type param struct {
	key   string
	value string
}

// SearchParams is an ordered query string. Unlike url.Values it keeps the
// relative order of all parameters, including repeated keys, which is what
// the filter sequence is derived from.
type SearchParams struct {
	list []param
}

func NewSearchParams() *SearchParams {
	return &SearchParams{}
}

// ParseSearchParams parses a raw query string, with or without the leading
// "?". Malformed escapes are kept verbatim.
func ParseSearchParams(query string) *SearchParams {
	p := &SearchParams{}
	query = strings.TrimPrefix(query, "?")
	if query == "" {
		return p
	}

	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		p.list = append(p.list, param{key: unescape(key), value: unescape(value)})
	}
	return p
}

func unescape(s string) string {
	out, err := url.QueryUnescape(s)
	if err != nil {
		return strings.ReplaceAll(s, "+", " ")
	}
	return out
}

func (p *SearchParams) Has(key string) bool {
	for _, kv := range p.list {
		if kv.key == key {
			return true
		}
	}
	return false
}

// Get returns the first value for key.
func (p *SearchParams) Get(key string) (string, bool) {
	for _, kv := range p.list {
		if kv.key == key {
			return kv.value, true
		}
	}
	return "", false
}

func (p *SearchParams) GetAll(key string) []string {
	var values []string
	for _, kv := range p.list {
		if kv.key == key {
			values = append(values, kv.value)
		}
	}
	return values
}

func (p *SearchParams) Append(key, value string) {
	p.list = append(p.list, param{key: key, value: value})
}

// Delete removes every parameter named key.
func (p *SearchParams) Delete(key string) {
	kept := p.list[:0]
	for _, kv := range p.list {
		if kv.key != key {
			kept = append(kept, kv)
		}
	}
	p.list = kept
}

// DeleteValue removes the parameters named key whose value equals value.
func (p *SearchParams) DeleteValue(key, value string) {
	kept := p.list[:0]
	for _, kv := range p.list {
		if kv.key != key || kv.value != value {
			kept = append(kept, kv)
		}
	}
	p.list = kept
}

// All yields every parameter in order.
func (p *SearchParams) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, kv := range p.list {
			if !yield(kv.key, kv.value) {
				return
			}
		}
	}
}

func (p *SearchParams) Len() int {
	return len(p.list)
}

func (p *SearchParams) Clone() *SearchParams {
	c := &SearchParams{list: make([]param, len(p.list))}
	copy(c.list, p.list)
	return c
}

// Encode serializes the parameters in order using form encoding.
func (p *SearchParams) Encode() string {
	var b strings.Builder
	for i, kv := range p.list {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv.value))
	}
	return b.String()
}

// Location is the path and query of the page the filters belong to.
type Location struct {
	Path   string
	Params *SearchParams
}

func ParseLocation(raw string) (*Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse location %q: %w", raw, err)
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	return &Location{
		Path:   path,
		Params: ParseSearchParams(u.RawQuery),
	}, nil
}

// Search returns the query string including the leading "?", or an empty
// string when there are no parameters.
func (l *Location) Search() string {
	if l.Params == nil || l.Params.Len() == 0 {
		return ""
	}
	return "?" + l.Params.Encode()
}

func (l *Location) String() string {
	return l.Path + l.Search()
}

func (l *Location) Clone() *Location {
	params := NewSearchParams()
	if l.Params != nil {
		params = l.Params.Clone()
	}
	return &Location{Path: l.Path, Params: params}
}
