package filters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls       []string
	navigations []string
	reloads     [][]Record
}

func newTestSynchronizer(suffix string, store Store, rec *recorder) *Synchronizer {
	return NewSynchronizer(suffix, &orderedStore{Store: store, rec: rec},
		WithNavigator(func(path string) {
			rec.calls = append(rec.calls, "navigate")
			rec.navigations = append(rec.navigations, path)
		}),
		WithReloader(func(force bool, records []Record) {
			rec.calls = append(rec.calls, "reload")
			rec.reloads = append(rec.reloads, records)
		}),
	)
}

type orderedStore struct {
	Store
	rec *recorder
}

func (s *orderedStore) ReplaceFilters(records []Record) {
	s.rec.calls = append(s.rec.calls, "state")
	s.Store.ReplaceFilters(records)
}

func (s *orderedStore) AppendFilters(records []Record) {
	s.rec.calls = append(s.rec.calls, "state")
	s.Store.AppendFilters(records)
}

func TestSynchronizer_Load(t *testing.T) {
	t.Run("populates store and marks parsed", func(t *testing.T) {
		store := NewMemoryStore()
		sync := NewSynchronizer("_compare", store)

		records := sync.Load("/projects/p1?cc=US&cc_compare=DE&br_compare=!Safari")

		assert.Equal(t, []Record{
			{Column: "cc", Filter: Values{"DE"}},
			{Column: "br", Filter: Values{"Safari"}, IsExclusive: true},
		}, records)
		assert.Equal(t, records, store.Filters())
		assert.True(t, store.Parsed())
	})

	t.Run("invalid URL still marks parsed", func(t *testing.T) {
		store := NewMemoryStore()
		sync := NewSynchronizer("", store)

		records := sync.Load("http://[::1")

		assert.Empty(t, records)
		assert.Empty(t, store.Filters())
		assert.True(t, store.Parsed())
	})
}

func TestSynchronizer_Apply(t *testing.T) {
	t.Run("navigates then updates state then reloads", func(t *testing.T) {
		rec := &recorder{}
		store := NewMemoryStore()
		sync := newTestSynchronizer("", store, rec)

		loc, err := ParseLocation("/projects/p1?period=7d")
		require.NoError(t, err)

		result := sync.Apply(loc, []Item{{Column: "cc", Filter: Values{"US"}}}, false)

		assert.Equal(t, []string{"navigate", "state", "reload"}, rec.calls)
		assert.Equal(t, []string{"/projects/p1?period=7d&cc=US"}, rec.navigations)
		assert.Equal(t, []Record{{Column: "cc", Filter: Values{"US"}}}, result)
		require.Len(t, rec.reloads, 1)
		assert.Equal(t, result, rec.reloads[0])
	})

	t.Run("append keeps existing records", func(t *testing.T) {
		rec := &recorder{}
		store := NewMemoryStore()
		store.ReplaceFilters([]Record{{Column: "os", Filter: Values{"Linux"}}})
		sync := newTestSynchronizer("", store, rec)

		loc, err := ParseLocation("/p?os=Linux")
		require.NoError(t, err)

		result := sync.Apply(loc, []Item{{Column: "cc", Filter: Values{"US"}}}, false)

		assert.Equal(t, []Record{
			{Column: "os", Filter: Values{"Linux"}},
			{Column: "cc", Filter: Values{"US"}},
		}, result)
	})

	t.Run("override replaces records", func(t *testing.T) {
		rec := &recorder{}
		store := NewMemoryStore()
		store.ReplaceFilters([]Record{{Column: "os", Filter: Values{"Linux"}}})
		sync := newTestSynchronizer("", store, rec)

		loc, err := ParseLocation("/p?os=Linux")
		require.NoError(t, err)

		result := sync.Apply(loc, []Item{{Column: "os", Filter: Values{"Mac"}}}, true)

		assert.Equal(t, []Record{{Column: "os", Filter: Values{"Mac"}}}, result)
		assert.Equal(t, "/p?os=Mac", rec.navigations[0])
	})

	t.Run("items are addressed to the group suffix", func(t *testing.T) {
		rec := &recorder{}
		sync := newTestSynchronizer("_compare", NewMemoryStore(), rec)

		loc := &Location{Path: "/p"}
		items := []Item{{Column: "cc", Filter: Values{"US"}}}
		sync.Apply(loc, items, false)

		assert.Equal(t, "/p?cc_compare=US", rec.navigations[0])
		assert.Empty(t, items[0].Suffix, "caller items must not be modified")
	})
}

func TestSynchronizer_Toggle(t *testing.T) {
	t.Run("toggle twice returns to empty", func(t *testing.T) {
		rec := &recorder{}
		store := NewMemoryStore()
		sync := newTestSynchronizer("", store, rec)
		loc := &Location{Path: "/p", Params: NewSearchParams()}

		changed := sync.Toggle(loc, "br", "Chrome", false)
		require.True(t, changed)
		assert.Equal(t, []Record{{Column: "br", Filter: Values{"Chrome"}}}, store.Filters())
		assert.Equal(t, "/p?br=Chrome", loc.String())

		changed = sync.Toggle(loc, "br", "Chrome", false)
		require.True(t, changed)
		assert.Empty(t, store.Filters())
		assert.False(t, loc.Params.Has("br"))

		assert.Equal(t, []string{"state", "navigate", "state", "navigate"}, rec.calls)
		assert.Equal(t, []string{"/p?br=Chrome", "/p"}, rec.navigations)
	})

	t.Run("removes only the matching value", func(t *testing.T) {
		rec := &recorder{}
		store := NewMemoryStore()
		sync := newTestSynchronizer("", store, rec)
		loc, err := ParseLocation("/p?cc=US&cc=CA")
		require.NoError(t, err)
		sync.LoadLocation(loc)

		sync.Toggle(loc, "cc", "US", false)

		assert.Equal(t, []Record{{Column: "cc", Filter: Values{"CA"}}}, store.Filters())
		assert.Equal(t, []string{"CA"}, loc.Params.GetAll("cc"))
	})

	t.Run("removes exclusive value from URL", func(t *testing.T) {
		rec := &recorder{}
		store := NewMemoryStore()
		sync := newTestSynchronizer("", store, rec)
		loc, err := ParseLocation("/p?cc=!US")
		require.NoError(t, err)
		sync.LoadLocation(loc)

		sync.Toggle(loc, "cc", "US", true)

		assert.Empty(t, store.Filters())
		assert.Equal(t, "/p", loc.String())
	})

	t.Run("adding exclusive value", func(t *testing.T) {
		rec := &recorder{}
		store := NewMemoryStore()
		sync := newTestSynchronizer("", store, rec)
		loc := &Location{Path: "/p"}

		sync.Toggle(loc, "os", "Windows", true)

		assert.Equal(t, []Record{{Column: "os", Filter: Values{"Windows"}, IsExclusive: true}}, store.Filters())
		assert.Equal(t, "/p?os=%21Windows", loc.String())
	})

	t.Run("included and excluded forms of one value", func(t *testing.T) {
		tests := []struct {
			name      string
			url       string
			wantState []Record
			wantURL   string
		}{
			{
				name:      "included first",
				url:       "/p?cc=US&cc=!US",
				wantState: []Record{{Column: "cc", Filter: Values{"US"}, IsExclusive: true}},
				wantURL:   "/p?cc=%21US",
			},
			{
				name:      "excluded first",
				url:       "/p?cc=!US&cc=US",
				wantState: []Record{{Column: "cc", Filter: Values{"US"}}},
				wantURL:   "/p?cc=US",
			},
			{
				name:      "repeated included value",
				url:       "/p?cc=US&br=Chrome&cc=US",
				wantState: []Record{{Column: "br", Filter: Values{"Chrome"}}},
				wantURL:   "/p?br=Chrome",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				store := NewMemoryStore()
				sync := newTestSynchronizer("", store, &recorder{})
				loc, err := ParseLocation(tt.url)
				require.NoError(t, err)
				sync.LoadLocation(loc)

				require.True(t, sync.Toggle(loc, "cc", "US", false))

				assert.Equal(t, tt.wantState, store.Filters())
				assert.Equal(t, tt.wantURL, loc.String())
				assert.Equal(t, store.Filters(), Parse(loc.Params, ""))
			})
		}
	})
}
