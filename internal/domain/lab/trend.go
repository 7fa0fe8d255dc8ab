package lab

import (
	"math"
	"sort"
	"time"
)

// DefaultTrendTolerance is the minimum change in mean absolute deviation that
// counts as movement.
const DefaultTrendTolerance = 0.1

// recentPointLimit caps the points echoed back in a TrendResult.
const recentPointLimit = 5

// RecentPoint is a (date, value) pair returned alongside a trend.
type RecentPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// TrendResult is the outcome of AnalyzeTrend.
type TrendResult struct {
	Trend        Trend         `json:"trend"`
	Baseline     float64       `json:"baseline_deviation"`
	Latest       float64       `json:"latest_deviation"`
	Points       int           `json:"points"`
	RecentPoints []RecentPoint `json:"recent_points"`
}

// DeviationScore is the signed distance of v from the middle of r in units of
// half the range width. A zero-width range falls back to the raw distance.
func DeviationScore(v float64, r Range) float64 {
	mid := (r.Min + r.Max) / 2
	half := r.Width() / 2
	if half == 0 {
		return v - mid
	}
	return (v - mid) / half
}

// AnalyzeTrend compares the latest deviation from normal against the mean of
// all earlier deviations. The input is not modified; the result depends only on
// its contents, so the same history always yields the same trend.
func AnalyzeTrend(history []TrendPoint, tolerance float64) TrendResult {
	if tolerance < 0 {
		tolerance = 0
	}

	pts := make([]TrendPoint, len(history))
	copy(pts, history)
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })

	res := TrendResult{Trend: TrendStable, Points: len(pts), RecentPoints: recentPoints(pts)}
	if len(pts) < 2 {
		if len(pts) == 1 {
			res.Latest = math.Abs(DeviationScore(pts[0].Value, pts[0].Range))
		}
		return res
	}

	last := len(pts) - 1
	var sum float64
	for _, p := range pts[:last] {
		sum += math.Abs(DeviationScore(p.Value, p.Range))
	}
	res.Baseline = sum / float64(last)
	res.Latest = math.Abs(DeviationScore(pts[last].Value, pts[last].Range))

	switch {
	case res.Baseline-res.Latest > tolerance:
		res.Trend = TrendImproving
	case res.Latest-res.Baseline > tolerance:
		res.Trend = TrendWorsening
	}
	return res
}

func recentPoints(pts []TrendPoint) []RecentPoint {
	start := 0
	if len(pts) > recentPointLimit {
		start = len(pts) - recentPointLimit
	}
	out := make([]RecentPoint, 0, len(pts)-start)
	for _, p := range pts[start:] {
		out = append(out, RecentPoint{Date: p.Date, Value: p.Value})
	}
	return out
}
