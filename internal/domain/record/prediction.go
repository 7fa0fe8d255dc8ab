package record

import (
	"math"
	"sort"
	"strings"
)

// NeutralAgeRisk stands in for the age factor. Patient age is not recorded,
// so every patient is scored as an adult under forty.
const NeutralAgeRisk = 0.2

// DefaultHealthScore is reported when there is no history to score.
const DefaultHealthScore = 85.0

const (
	maxRecommendations  = 5
	baseConfidence      = 0.7
	confidencePerRecord = 0.03
	maxConfidence       = 0.95
)

// Predicted conditions, in the order they are scored.
const (
	ConditionDiabetes     = "Type 2 Diabetes"
	ConditionHypertension = "Hypertension"
	ConditionHeart        = "Heart Disease"
	ConditionStroke       = "Stroke"
	ConditionKidney       = "Kidney Disease"
)

var predictedConditions = []string{ConditionDiabetes, ConditionHypertension, ConditionHeart, ConditionStroke, ConditionKidney}

// conditionKeywords matches recorded conditions to a predicted condition.
var conditionKeywords = map[string][]string{
	ConditionDiabetes:     {"diabetes", "blood sugar", "glucose", "insulin"},
	ConditionHypertension: {"hypertension", "blood pressure", "bp"},
	ConditionHeart:        {"heart", "cardiac", "coronary", "chest pain"},
	ConditionStroke:       {"stroke"},
	ConditionKidney:       {"kidney", "renal", "creatinine"},
}

// Comorbidity groups. Several conditions from one group, or metabolic and
// cardiovascular together, raise every prediction.
var (
	metabolicGroup      = []string{"diabetes", "obesity", "metabolic syndrome", "cholesterol"}
	cardiovascularGroup = []string{"hypertension", "heart disease", "coronary", "cardiac"}
	respiratoryGroup    = []string{"asthma", "copd", "bronchitis", "pneumonia"}
)

// ConditionPrediction is the predicted risk of one condition. RiskScore is on
// a 0-100 scale.
type ConditionPrediction struct {
	Condition       string    `json:"condition"`
	RiskScore       float64   `json:"risk_score"`
	RiskLevel       RiskLevel `json:"risk_level"`
	Confidence      float64   `json:"confidence"`
	Factors         []string  `json:"factors"`
	Recommendations []string  `json:"recommendations"`
}

// RiskPrediction is the per-condition outlook derived from a patient's records.
type RiskPrediction struct {
	Predictions        []ConditionPrediction `json:"predictions"`
	OverallHealthScore float64               `json:"overall_health_score"`
	ComorbidityScore   float64               `json:"comorbidity_score"`
	Trend              RiskTrend             `json:"trend"`
	Records            int                   `json:"records_considered"`
}

// PredictRisks scores each predicted condition from the recorded conditions
// and risk levels. Scores combine history, risk progression, recurrence and
// comorbidity; predictions are ordered by descending score.
func PredictRisks(records []*ClinicalRecord) RiskPrediction {
	var recs []*ClinicalRecord
	for _, r := range records {
		if r != nil {
			recs = append(recs, r)
		}
	}

	progression := AnalyzeRiskProgression(recs)
	res := RiskPrediction{
		Predictions:        []ConditionPrediction{},
		OverallHealthScore: DefaultHealthScore,
		Trend:              progression.Trend,
		Records:            len(recs),
	}
	if len(recs) == 0 {
		return res
	}

	history := historyRisks(recs)
	res.ComorbidityScore = comorbidityScore(recs)
	rising := math.Max(0, progression.Score)
	confidence := math.Min(baseConfidence+confidencePerRecord*float64(len(recs)), maxConfidence)

	var total float64
	for _, cond := range predictedConditions {
		recurring := isRecurring(cond, progression.RecurringConditions)
		score := NeutralAgeRisk*0.15 + history[cond]*0.35 + rising*0.25 + res.ComorbidityScore*0.10
		if recurring {
			score += 0.15
		}
		score = round1(score * 100)
		level := predictedLevel(score)

		factors := []string{}
		if history[cond] > 0.3 {
			factors = append(factors, "Existing medical history")
		}
		if rising > 0.3 {
			factors = append(factors, "Increasing risk trend")
		}
		if recurring {
			factors = append(factors, "Recurring condition")
		}
		if res.ComorbidityScore > 0.2 {
			factors = append(factors, "Related health conditions present")
		}

		res.Predictions = append(res.Predictions, ConditionPrediction{
			Condition:       cond,
			RiskScore:       score,
			RiskLevel:       level,
			Confidence:      round2(confidence),
			Factors:         factors,
			Recommendations: recommendations(cond, level),
		})
		total += score
	}

	sort.SliceStable(res.Predictions, func(i, j int) bool {
		return res.Predictions[i].RiskScore > res.Predictions[j].RiskScore
	})
	res.OverallHealthScore = round1(math.Max(0, 100-total/float64(len(res.Predictions))))
	return res
}

// historyRisks scores each condition in [0, 1] from the distinct recorded
// conditions. Stroke derives from the others.
func historyRisks(recs []*ClinicalRecord) map[string]float64 {
	distinct := map[string]bool{}
	severe := 0
	for _, r := range recs {
		if r.Condition != "" {
			distinct[strings.ToLower(r.Condition)] = true
		}
		if r.RiskLevel == RiskHigh || r.RiskLevel == RiskCritical {
			severe++
		}
	}
	matching := func(keywords []string) float64 {
		n := 0
		for c := range distinct {
			if containsAny(c, keywords) {
				n++
			}
		}
		return float64(n)
	}

	out := map[string]float64{}
	out[ConditionDiabetes] = math.Min(matching(conditionKeywords[ConditionDiabetes])*0.3, 1)
	out[ConditionHypertension] = math.Min(matching(conditionKeywords[ConditionHypertension])*0.3, 1)
	out[ConditionHeart] = math.Min(matching(conditionKeywords[ConditionHeart])*0.25+float64(severe)*0.1, 1)
	out[ConditionStroke] = math.Min(out[ConditionHypertension]*0.4+out[ConditionDiabetes]*0.3+out[ConditionHeart]*0.3, 1)
	out[ConditionKidney] = math.Min(matching(conditionKeywords[ConditionKidney])*0.2+
		out[ConditionHypertension]*0.3+out[ConditionDiabetes]*0.3, 1)
	return out
}

// comorbidityScore is in [0, 1] and counts every record, repeats included.
func comorbidityScore(recs []*ClinicalRecord) float64 {
	var metabolic, cardio, respiratory int
	for _, r := range recs {
		c := strings.ToLower(r.Condition)
		if c == "" {
			continue
		}
		if containsAny(c, metabolicGroup) {
			metabolic++
		}
		if containsAny(c, cardiovascularGroup) {
			cardio++
		}
		if containsAny(c, respiratoryGroup) {
			respiratory++
		}
	}

	var score float64
	if metabolic >= 2 {
		score += 0.3
	}
	if cardio >= 2 {
		score += 0.3
	}
	if respiratory >= 2 {
		score += 0.2
	}
	if metabolic >= 1 && cardio >= 1 {
		score += 0.2
	}
	return math.Min(score, 1)
}

func isRecurring(cond string, recurring map[string]int) bool {
	for c := range recurring {
		lc := strings.ToLower(c)
		if lc == strings.ToLower(cond) || containsAny(lc, conditionKeywords[cond]) {
			return true
		}
	}
	return false
}

func predictedLevel(score float64) RiskLevel {
	switch {
	case score >= 75:
		return RiskCritical
	case score >= 50:
		return RiskHigh
	case score >= 25:
		return RiskMedium
	}
	return RiskLow
}

func recommendations(cond string, level RiskLevel) []string {
	severe := level == RiskHigh || level == RiskCritical
	var out []string
	switch cond {
	case ConditionDiabetes:
		out = append(out, "Regular blood sugar monitoring", "Maintain healthy diet with controlled carbohydrate intake")
		if severe {
			out = append(out, "Consult endocrinologist for medication review", "Consider continuous glucose monitoring")
		}
	case ConditionHypertension:
		out = append(out, "Monitor blood pressure regularly", "Reduce sodium intake", "Regular cardiovascular exercise")
		if severe {
			out = append(out, "Immediate consultation with cardiologist recommended")
		}
	case ConditionHeart:
		out = append(out, "Regular cardiac checkups", "Stress management and adequate rest", "Heart-healthy diet (low saturated fat)")
		if level == RiskCritical {
			out = append(out, "Emergency cardiac evaluation recommended")
		}
	case ConditionStroke:
		out = append(out, "Control blood pressure and blood sugar", "Regular neurological assessments", "Antiplatelet therapy as prescribed")
		if severe {
			out = append(out, "Immediate stroke risk assessment needed")
		}
	case ConditionKidney:
		out = append(out, "Regular kidney function tests", "Stay well hydrated", "Limit protein and sodium intake")
		if severe {
			out = append(out, "Nephrology consultation recommended")
		}
	}
	if severe {
		out = append(out, "Schedule follow-up appointment within 2 weeks")
	}
	if len(out) > maxRecommendations {
		out = out[:maxRecommendations]
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
