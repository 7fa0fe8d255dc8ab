package record

import (
	"math"
	"sort"
)

const (
	progressionWindow  = 10
	recentRecordCount  = 3
	worseningThreshold = 0.3
	improvingThreshold = -0.1
)

type RiskTrend string

const (
	RiskImproving RiskTrend = "improving"
	RiskStable    RiskTrend = "stable"
	RiskWorsening RiskTrend = "worsening"
)

// RiskProgression summarises how a patient's recorded risk moves over time.
type RiskProgression struct {
	Score   float64   `json:"score"`
	Trend   RiskTrend `json:"trend"`
	Records int       `json:"records_considered"`
	// RecurringConditions counts conditions recorded more than once.
	RecurringConditions map[string]int `json:"recurring_conditions"`
}

// AnalyzeRiskProgression compares the newest risk levels against older ones
// across the ten most recent records. The score lies in [-1, 1]; positive
// values mean risk is rising.
func AnalyzeRiskProgression(records []*ClinicalRecord) RiskProgression {
	res := RiskProgression{Trend: RiskStable, RecurringConditions: recurringConditions(records)}

	sorted := make([]*ClinicalRecord, 0, len(records))
	for _, r := range records {
		if r != nil {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].EventDate.After(sorted[j].EventDate) })
	if len(sorted) > progressionWindow {
		sorted = sorted[:progressionWindow]
	}
	res.Records = len(sorted)
	if len(sorted) < 2 {
		return res
	}

	ranks := make([]float64, len(sorted))
	for i, r := range sorted {
		rank := r.RiskLevel.Rank()
		if rank == 0 {
			rank = RiskLow.Rank()
		}
		ranks[i] = float64(rank)
	}

	split := recentRecordCount
	if len(ranks) <= recentRecordCount {
		split = 1
	}
	score := (mean(ranks[:split]) - mean(ranks[split:])) / 4
	res.Score = math.Max(-1, math.Min(1, score))

	switch {
	case res.Score > worseningThreshold:
		res.Trend = RiskWorsening
	case res.Score < improvingThreshold:
		res.Trend = RiskImproving
	}
	return res
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func recurringConditions(records []*ClinicalRecord) map[string]int {
	counts := map[string]int{}
	for _, r := range records {
		if r != nil && r.Condition != "" {
			counts[r.Condition]++
		}
	}
	out := map[string]int{}
	for c, n := range counts {
		if n > 1 {
			out[c] = n
		}
	}
	return out
}
