package filters

import "strings"

// Columns accepted in a filter query string.
var validColumns = map[string]struct{}{
	"cc":        {},
	"rg":        {},
	"ct":        {},
	"pg":        {},
	"lc":        {},
	"ref":       {},
	"dv":        {},
	"br":        {},
	"os":        {},
	"so":        {},
	"me":        {},
	"ca":        {},
	"ev":        {},
	"tag:key":   {},
	"tag:value": {},
	"ev:key":    {},
	"ev:value":  {},
}

// Prefixes of user-defined metadata columns, e.g. "ev:key:plan".
var dynamicPrefixes = []string{
	"ev:key:",
	"tag:key:",
}

var validPeriods = map[string]struct{}{
	"custom":    {},
	"today":     {},
	"yesterday": {},
	"1d":        {},
	"7d":        {},
	"4w":        {},
	"3M":        {},
	"12M":       {},
	"24M":       {},
}

var validTimeBuckets = map[string]struct{}{
	"hour":  {},
	"day":   {},
	"week":  {},
	"month": {},
}

// IsColumnValid reports whether column may be used as a filter. Dynamic
// metadata columns are only accepted when allowDynamic is set.
func IsColumnValid(column string, allowDynamic bool) bool {
	if _, ok := validColumns[column]; ok {
		return true
	}
	if !allowDynamic {
		return false
	}
	for _, prefix := range dynamicPrefixes {
		if strings.HasPrefix(column, prefix) {
			return true
		}
	}
	return false
}

// DynamicKey returns the metadata key addressed by a dynamic column, e.g.
// "plan" for "ev:key:plan".
func DynamicKey(column string) (string, bool) {
	for _, prefix := range dynamicPrefixes {
		if key, ok := strings.CutPrefix(column, prefix); ok && key != "" {
			return key, true
		}
	}
	return "", false
}

func IsPeriodValid(period string) bool {
	_, ok := validPeriods[period]
	return ok
}

func IsTimeBucketValid(bucket string) bool {
	_, ok := validTimeBuckets[bucket]
	return ok
}
