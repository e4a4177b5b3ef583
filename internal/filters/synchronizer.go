package filters

import (
	"slices"

	"pulse/internal/logger"
)

// Navigator replaces the current location without reloading the page.
type Navigator func(path string)

// Reloader refetches view data for the given filters.
type Reloader func(forceReload bool, records []Record)

type SynchronizerOption func(*Synchronizer)

func WithNavigator(navigate Navigator) SynchronizerOption {
	return func(s *Synchronizer) {
		s.navigate = navigate
	}
}

func WithReloader(reload Reloader) SynchronizerOption {
	return func(s *Synchronizer) {
		s.reload = reload
	}
}

func WithLogger(log logger.Logger) SynchronizerOption {
	return func(s *Synchronizer) {
		s.logger = log
	}
}

// Synchronizer keeps a filter group in a Store consistent with the query
// string of the location it is applied to. Every filter group on a page
// has its own Synchronizer keyed by the group's suffix.
type Synchronizer struct {
	suffix   string
	store    Store
	navigate Navigator
	reload   Reloader
	logger   logger.Logger
}

func NewSynchronizer(suffix string, store Store, opts ...SynchronizerOption) *Synchronizer {
	s := &Synchronizer{
		suffix:   suffix,
		store:    store,
		navigate: func(string) {},
		reload:   func(bool, []Record) {},
		logger:   logger.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Synchronizer) Suffix() string {
	return s.suffix
}

func (s *Synchronizer) Filters() []Record {
	return s.store.Filters()
}

// Load populates the store from rawURL. A URL that cannot be parsed is
// logged and leaves the store empty; the parsed flag is set either way.
func (s *Synchronizer) Load(rawURL string) []Record {
	defer s.store.SetParsed(true)

	loc, err := ParseLocation(rawURL)
	if err != nil {
		s.logger.Errorw("Failed to parse filters from URL",
			"suffix", s.suffix,
			"error", err,
		)
		return nil
	}

	return s.LoadLocation(loc)
}

func (s *Synchronizer) LoadLocation(loc *Location) []Record {
	defer s.store.SetParsed(true)

	records := Parse(loc.Params, s.suffix)
	s.store.ReplaceFilters(records)

	s.logger.Debugw("Filters parsed from URL",
		"suffix", s.suffix,
		"count", len(records),
	)

	return records
}

// Apply writes items into loc, navigates to the result, updates the store
// and finally asks for a forced reload with the resulting sequence. The
// three steps always happen in that order.
func (s *Synchronizer) Apply(loc *Location, items []Item, override bool) []Record {
	addressed := make([]Item, len(items))
	for i, item := range items {
		item.Suffix = s.suffix
		addressed[i] = item
	}

	applied := ApplyFilters(addressed, loc, override)

	s.navigate(loc.String())

	if override {
		s.store.ReplaceFilters(applied)
	} else {
		s.store.AppendFilters(applied)
	}

	current := s.store.Filters()
	s.reload(true, current)

	return current
}

// Toggle adds the value for column when it is not active, or removes it
// when it is. Only the matching value is removed, other values of the same
// column stay in place. The first record holding the value decides whether
// the included or the excluded form is removed, from both the store and
// the URL. The store is committed and the new location is navigated to
// only when the sequence actually changed.
func (s *Synchronizer) Toggle(loc *Location, column, value string, isExclusive bool) bool {
	if loc.Params == nil {
		loc.Params = NewSearchParams()
	}

	current := s.store.Filters()
	key := column + s.suffix

	next, removed, exclusive := removeValue(current, column, value)
	if removed {
		loc.Params.DeleteValue(key, encodeValue(value, exclusive))
	} else {
		next = append(next, Record{
			Column:      column,
			Filter:      Values{value},
			IsExclusive: isExclusive,
		})
		loc.Params.Append(key, encodeValue(value, isExclusive))
	}

	if EqualRecords(current, next) {
		return false
	}

	s.store.ReplaceFilters(next)
	s.navigate(loc.String())

	return true
}

// removeValue drops value from every record of column sharing the
// exclusivity of the first record that holds it.
func removeValue(records []Record, column, value string) ([]Record, bool, bool) {
	first := slices.IndexFunc(records, func(rec Record) bool {
		return rec.Column == column && slices.Contains(rec.Filter, value)
	})
	if first < 0 {
		return slices.Clone(records), false, false
	}
	exclusive := records[first].IsExclusive

	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if rec.Column != column || rec.IsExclusive != exclusive || !slices.Contains(rec.Filter, value) {
			out = append(out, rec)
			continue
		}

		rest := slices.DeleteFunc(slices.Clone(rec.Filter), func(v string) bool {
			return v == value
		})
		if len(rest) > 0 {
			rec.Filter = rest
			out = append(out, rec)
		}
	}

	return out, true, exclusive
}
