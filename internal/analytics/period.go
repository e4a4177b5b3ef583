package analytics

import (
	"time"

	"pulse/internal/constants"
	"pulse/internal/filters"
	pkgerrors "pulse/pkg/errors"
)

const customDateLayout = "2006-01-02"

// hourBucketLimit is the longest range that may be grouped by hour.
const hourBucketLimit = 7 * 24 * time.Hour

// customMonthsLimit bounds a custom range to the span of the 24M period.
const customMonthsLimit = 24

// Range is a half-open time interval [From, To) grouped by Bucket.
type Range struct {
	Period string    `json:"period"`
	Bucket string    `json:"timeBucket"`
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
}

// ResolveRange turns a dashboard period into a concrete interval ending at
// now. The custom period reads from and to as inclusive YYYY-MM-DD dates.
func ResolveRange(period, bucket, from, to string, now time.Time) (Range, error) {
	if period == "" {
		period = constants.DefaultPeriod
	}
	if bucket == "" {
		bucket = constants.DefaultTimeBucket
	}
	if !filters.IsPeriodValid(period) {
		return Range{}, pkgerrors.ErrValidation.WithMessage("invalid period").WithDetail("period", period)
	}
	if !filters.IsTimeBucketValid(bucket) {
		return Range{}, pkgerrors.ErrValidation.WithMessage("invalid time bucket").WithDetail("timeBucket", bucket)
	}

	now = now.UTC()
	today := startOfDay(now)
	r := Range{Period: period, Bucket: bucket, To: now}

	switch period {
	case "today":
		r.From = today
	case "yesterday":
		r.From = today.AddDate(0, 0, -1)
		r.To = today
	case "1d":
		r.From = now.Add(-24 * time.Hour)
	case "7d":
		r.From = today.AddDate(0, 0, -7)
	case "4w":
		r.From = today.AddDate(0, 0, -28)
	case "3M":
		r.From = today.AddDate(0, -3, 0)
	case "12M":
		r.From = today.AddDate(0, -12, 0)
	case "24M":
		r.From = today.AddDate(0, -24, 0)
	case "custom":
		var err error
		if r.From, r.To, err = parseCustom(from, to); err != nil {
			return Range{}, err
		}
	}

	if bucket == "hour" && r.To.Sub(r.From) > hourBucketLimit {
		return Range{}, pkgerrors.ErrValidation.
			WithMessage("the hour time bucket is only available for ranges up to 7 days").
			WithDetail("period", period)
	}

	return r, nil
}

func parseCustom(from, to string) (time.Time, time.Time, error) {
	if from == "" || to == "" {
		return time.Time{}, time.Time{}, pkgerrors.ErrValidation.WithMessage("from and to are required for the custom period")
	}

	start, err := time.Parse(customDateLayout, from)
	if err != nil {
		return time.Time{}, time.Time{}, pkgerrors.ErrValidation.WithCause(err).WithDetail("from", from)
	}
	end, err := time.Parse(customDateLayout, to)
	if err != nil {
		return time.Time{}, time.Time{}, pkgerrors.ErrValidation.WithCause(err).WithDetail("to", to)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, pkgerrors.ErrValidation.WithMessage("from must not be after to")
	}

	end = end.AddDate(0, 0, 1)
	if end.After(start.AddDate(0, customMonthsLimit, 0)) {
		return time.Time{}, time.Time{}, pkgerrors.ErrValidation.
			WithMessage("a custom range may span at most 24 months").
			WithDetail("from", from).
			WithDetail("to", to)
	}

	return start, end, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// truncate mirrors $dateTrunc in UTC with weeks starting on Sunday.
func truncate(t time.Time, bucket string) time.Time {
	t = t.UTC()
	switch bucket {
	case "hour":
		return t.Truncate(time.Hour)
	case "week":
		day := startOfDay(t)
		return day.AddDate(0, 0, -int(day.Weekday()))
	case "month":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return startOfDay(t)
	}
}

func next(t time.Time, bucket string) time.Time {
	switch bucket {
	case "hour":
		return t.Add(time.Hour)
	case "week":
		return t.AddDate(0, 0, 7)
	case "month":
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}
