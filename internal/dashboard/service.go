// Package dashboard serves the filter state of dashboard views and the
// traffic matching it.
package dashboard

import (
	"context"
	"time"

	"pulse/internal/analytics"
	"pulse/internal/config"
	"pulse/internal/constants"
	"pulse/internal/filters"
	"pulse/internal/logger"
	"pulse/internal/project"
	pkgerrors "pulse/pkg/errors"
	"pulse/pkg/metrics"
)

// TrafficSource aggregates the traffic of a project.
type TrafficSource interface {
	Traffic(ctx context.Context, projectID string, records []filters.Record, r analytics.Range) (*analytics.Traffic, error)
}

// PreferenceReader returns the stored preference of one view.
type PreferenceReader interface {
	Get(ctx context.Context, userID, view string) (filters.ViewPreference, bool, error)
}

// ProjectReader looks up the project a dashboard belongs to.
type ProjectReader interface {
	Get(ctx context.Context, id string) (*project.Project, error)
}

// ViewQuery selects the period of a view. Empty fields fall back to the
// stored preference of the view and then to the configured defaults.
type ViewQuery struct {
	Period     string `form:"period" json:"period" binding:"omitempty,period"`
	TimeBucket string `form:"timeBucket" json:"timeBucket" binding:"omitempty,timebucket"`
	From       string `form:"from" json:"from"`
	To         string `form:"to" json:"to"`
}

type View struct {
	URL            string             `json:"url"`
	Filters        []filters.Record   `json:"filters"`
	CompareFilters []filters.Record   `json:"compareFilters"`
	Traffic        *analytics.Traffic `json:"traffic"`
	CompareTraffic *analytics.Traffic `json:"compareTraffic,omitempty"`
}

type ApplyResult struct {
	URL     string             `json:"url"`
	Filters []filters.Record   `json:"filters"`
	Traffic *analytics.Traffic `json:"traffic"`
}

type ToggleResult struct {
	URL     string             `json:"url"`
	Filters []filters.Record   `json:"filters"`
	Changed bool               `json:"changed"`
	Traffic *analytics.Traffic `json:"traffic,omitempty"`
}

type Service struct {
	traffic       TrafficSource
	prefs         PreferenceReader
	projects      ProjectReader
	loader        *Loader
	defaults      ViewQuery
	compareSuffix string
	logger        logger.Logger
	now           func() time.Time
}

func NewService(traffic TrafficSource, prefs PreferenceReader, projects ProjectReader, loader *Loader, cfg config.DashboardConfig, log logger.Logger) *Service {
	s := &Service{
		traffic:       traffic,
		prefs:         prefs,
		projects:      projects,
		loader:        loader,
		defaults:      ViewQuery{Period: cfg.DefaultPeriod, TimeBucket: cfg.DefaultTimeBucket},
		compareSuffix: cfg.CompareSuffix,
		logger:        log,
		now:           time.Now,
	}
	if s.defaults.Period == "" {
		s.defaults.Period = constants.DefaultPeriod
	}
	if s.defaults.TimeBucket == "" {
		s.defaults.TimeBucket = constants.DefaultTimeBucket
	}
	if s.compareSuffix == "" {
		s.compareSuffix = constants.CompareSuffix
	}
	return s
}

// Traffic reads the primary and comparison filter groups from rawURL and
// loads the traffic of both. The comparison is only loaded when it has
// filters.
func (s *Service) Traffic(ctx context.Context, userID, projectID, rawURL string, q ViewQuery) (*View, error) {
	if err := s.authorize(ctx, userID, projectID); err != nil {
		return nil, err
	}

	loc, err := filters.ParseLocation(rawURL)
	if err != nil {
		return nil, pkgerrors.ErrBadRequest.WithCause(err).WithMessage("invalid url")
	}

	primary := filters.NewSynchronizer("", filters.NewMemoryStore(), filters.WithLogger(s.logger))
	compare := filters.NewSynchronizer(s.compareSuffix, filters.NewMemoryStore(), filters.WithLogger(s.logger))
	primary.LoadLocation(loc)
	compare.LoadLocation(loc)

	r, err := s.resolveRange(ctx, userID, projectID, q)
	if err != nil {
		return nil, err
	}

	view := &View{
		URL:            loc.String(),
		Filters:        orEmpty(primary.Filters()),
		CompareFilters: orEmpty(compare.Filters()),
	}

	view.Traffic, err = Load(ctx, s.loader, loadKey(userID, projectID, ""), func(ctx context.Context) (*analytics.Traffic, error) {
		return s.traffic.Traffic(ctx, projectID, view.Filters, r)
	})
	if err != nil {
		return nil, wrapLoadError(err)
	}

	if len(view.CompareFilters) > 0 {
		view.CompareTraffic, err = Load(ctx, s.loader, loadKey(userID, projectID, s.compareSuffix), func(ctx context.Context) (*analytics.Traffic, error) {
			return s.traffic.Traffic(ctx, projectID, view.CompareFilters, r)
		})
		if err != nil {
			return nil, wrapLoadError(err)
		}
	}

	return view, nil
}

// Apply writes items into the filter group of suffix, as a replacement
// when override is set, and reloads the traffic with the resulting filters.
func (s *Service) Apply(ctx context.Context, userID, projectID string, req ApplyRequest) (*ApplyResult, error) {
	if err := s.authorize(ctx, userID, projectID); err != nil {
		return nil, err
	}
	if err := s.checkSuffix(req.Suffix); err != nil {
		return nil, err
	}

	loc, err := filters.ParseLocation(req.URL)
	if err != nil {
		return nil, pkgerrors.ErrBadRequest.WithCause(err).WithMessage("invalid url")
	}

	r, err := s.resolveRange(ctx, userID, projectID, req.ViewQuery)
	if err != nil {
		return nil, err
	}

	var (
		navigated string
		reloaded  []filters.Record
	)
	group := filters.NewSynchronizer(req.Suffix, filters.NewMemoryStore(),
		filters.WithLogger(s.logger),
		filters.WithNavigator(func(path string) { navigated = path }),
		filters.WithReloader(func(_ bool, records []filters.Record) { reloaded = records }),
	)
	group.LoadLocation(loc)

	records := group.Apply(loc, req.Items, req.Override)
	metrics.IncFilterOperation("apply", "success")

	traffic, err := Load(ctx, s.loader, loadKey(userID, projectID, req.Suffix), func(ctx context.Context) (*analytics.Traffic, error) {
		return s.traffic.Traffic(ctx, projectID, reloaded, r)
	})
	if err != nil {
		return nil, wrapLoadError(err)
	}

	return &ApplyResult{URL: navigated, Filters: orEmpty(records), Traffic: traffic}, nil
}

// Toggle adds or removes one filter value. Traffic is only reloaded when
// the filters changed.
func (s *Service) Toggle(ctx context.Context, userID, projectID string, req ToggleRequest) (*ToggleResult, error) {
	if err := s.authorize(ctx, userID, projectID); err != nil {
		return nil, err
	}
	if err := s.checkSuffix(req.Suffix); err != nil {
		return nil, err
	}
	if !filters.IsColumnValid(req.Column, true) {
		metrics.IncFilterOperation("toggle", "invalid")
		return nil, pkgerrors.ErrValidation.WithMessage("invalid column").WithDetail("column", req.Column)
	}

	loc, err := filters.ParseLocation(req.URL)
	if err != nil {
		return nil, pkgerrors.ErrBadRequest.WithCause(err).WithMessage("invalid url")
	}

	navigated := loc.String()
	group := filters.NewSynchronizer(req.Suffix, filters.NewMemoryStore(),
		filters.WithLogger(s.logger),
		filters.WithNavigator(func(path string) { navigated = path }),
	)
	group.LoadLocation(loc)

	changed := group.Toggle(loc, req.Column, req.Filter, req.IsExclusive)
	result := &ToggleResult{URL: navigated, Filters: orEmpty(group.Filters()), Changed: changed}
	if !changed {
		metrics.IncFilterOperation("toggle", "unchanged")
		return result, nil
	}
	metrics.IncFilterOperation("toggle", "success")

	r, err := s.resolveRange(ctx, userID, projectID, req.ViewQuery)
	if err != nil {
		return nil, err
	}

	result.Traffic, err = Load(ctx, s.loader, loadKey(userID, projectID, req.Suffix), func(ctx context.Context) (*analytics.Traffic, error) {
		return s.traffic.Traffic(ctx, projectID, result.Filters, r)
	})
	if err != nil {
		return nil, wrapLoadError(err)
	}

	return result, nil
}

// authorize admits the owner of a project and, for public projects, any
// signed in user. Projects the user may not see are reported as missing.
func (s *Service) authorize(ctx context.Context, userID, projectID string) error {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return pkgerrors.ErrNotFound.WithMessage("project not found").WithDetail("id", projectID)
		}
		return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	if p.Admin == userID || p.Public {
		return nil
	}

	s.logger.DebugwCtx(ctx, "Dashboard access denied", "project_id", projectID)
	return pkgerrors.ErrNotFound.WithMessage("project not found").WithDetail("id", projectID)
}

// resolveRange picks the period of the view. The view id of a project
// dashboard is the project id.
func (s *Service) resolveRange(ctx context.Context, userID, projectID string, q ViewQuery) (analytics.Range, error) {
	if q.Period == "" || q.TimeBucket == "" {
		pref := s.preference(ctx, userID, projectID)
		if q.Period == "" {
			q.Period = pref.Period
		}
		if q.TimeBucket == "" {
			q.TimeBucket = pref.TimeBucket
		}
	}

	return analytics.ResolveRange(q.Period, q.TimeBucket, q.From, q.To, s.now())
}

// preference falls back to the defaults when nothing valid is stored or
// the store is unavailable.
func (s *Service) preference(ctx context.Context, userID, view string) filters.ViewPreference {
	fallback := filters.ViewPreference{Period: s.defaults.Period, TimeBucket: s.defaults.TimeBucket}
	if s.prefs == nil {
		return fallback
	}

	pref, ok, err := s.prefs.Get(ctx, userID, view)
	if err != nil {
		s.logger.WarnwCtx(ctx, "Failed to read view preference, using defaults", "error", err, "view", view)
		return fallback
	}
	if !ok {
		return fallback
	}
	return pref
}

func (s *Service) checkSuffix(suffix string) error {
	if suffix == "" || suffix == s.compareSuffix {
		return nil
	}
	return pkgerrors.ErrValidation.WithMessage("unknown filter group").WithDetail("suffix", suffix)
}

func loadKey(userID, projectID, suffix string) string {
	return userID + ":" + projectID + ":" + suffix
}

func wrapLoadError(err error) error {
	if pkgerrors.ToHTTPStatus(err) < 500 {
		return err
	}
	return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
}

func orEmpty(records []filters.Record) []filters.Record {
	if records == nil {
		return []filters.Record{}
	}
	return records
}
