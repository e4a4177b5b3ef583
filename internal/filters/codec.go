package filters

import (
	"strings"
)

const exclusivePrefix = "!"

// Parse extracts the filter records addressed to suffix from params. Keys
// that do not contain the suffix are ignored; the first occurrence of the
// suffix is stripped to obtain the column. Dynamic metadata columns are not
// accepted from the URL. A value starting with "!" marks an exclusive filter.
// One record is produced per accepted parameter, in query order.
func Parse(params *SearchParams, suffix string) []Record {
	var records []Record
	if params == nil {
		return records
	}

	for key, value := range params.All() {
		if !strings.Contains(key, suffix) {
			continue
		}

		column := strings.Replace(key, suffix, "", 1)
		if !IsColumnValid(column, false) {
			continue
		}

		exclusive := strings.HasPrefix(value, exclusivePrefix)
		if exclusive {
			value = strings.TrimPrefix(value, exclusivePrefix)
		}

		records = append(records, Record{
			Column:      column,
			Filter:      Values{value},
			IsExclusive: exclusive,
		})
	}

	return records
}

// ApplyFilters writes items into the query of loc and returns the records
// that were applied. Items without a non-empty value are skipped. A key is
// rewritten when override is set or when it is not present yet; otherwise
// the existing URL values are left alone but the record is still returned.
func ApplyFilters(items []Item, loc *Location, override bool) []Record {
	if loc.Params == nil {
		loc.Params = NewSearchParams()
	}

	applied := make([]Record, 0, len(items))
	for _, item := range items {
		values := item.Filter.NonEmpty()
		if len(values) == 0 {
			continue
		}

		key := item.Column + item.Suffix
		if override || !loc.Params.Has(key) {
			loc.Params.Delete(key)
			for _, value := range values {
				loc.Params.Append(key, encodeValue(value, item.IsExclusive))
			}
		}

		applied = append(applied, Record{
			Column:      item.Column,
			Filter:      values,
			IsExclusive: item.IsExclusive,
		})
	}

	return applied
}

// encodeValue is the inverse of the "!" handling in Parse for exclusive
// values. Included values are written verbatim.
func encodeValue(value string, exclusive bool) string {
	if exclusive {
		return exclusivePrefix + value
	}
	return value
}
