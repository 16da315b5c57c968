package mockscoring

import (
	"math"

	"github.com/miradorstack/risk-client/internal/models"
	"github.com/miradorstack/risk-client/internal/normalizer"
)

// Probability keys and labels emitted by the scoring service.
const (
	KeyNormal      = "p_normal"
	KeyPrediabetes = "p_prediabetes"
	KeyDiabetes    = "p_diabetes"
)

var labels = [...]string{"normal", "prediabetes", "diabetes"}

// score is a deterministic stand-in for the trained classifier. It is driven
// by the glycaemic markers and nudged by the metabolic risk factors.
func score(rec models.ClinicalRecord) (map[string]float64, string) {
	derived := normalizer.Derive(rec)

	shift := 0.02*(rec.AgeYears-45) + 0.015*(rec.WaistCircumferenceCM-94)
	if derived.TGToHDLRatio != nil {
		shift += 0.15 * (*derived.TGToHDLRatio - 3)
	}
	if derived.BMI != nil {
		shift += 0.04 * (*derived.BMI - 27)
	}

	zDiabetes := (rec.FastingGlucoseMgDL-126)/8 + shift
	zPre := (rec.FastingGlucoseMgDL-100)/6 + shift
	if rec.HbA1cPercent != nil {
		zDiabetes = math.Max(zDiabetes, (*rec.HbA1cPercent-6.5)/0.25+shift)
		zPre = math.Max(zPre, (*rec.HbA1cPercent-5.7)/0.25+shift)
	}

	pDiabetes := sigmoid(zDiabetes)
	pPre := sigmoid(zPre) * (1 - pDiabetes)
	pNormal := 1 - pDiabetes - pPre

	probs := map[string]float64{
		KeyNormal:      pNormal,
		KeyPrediabetes: pPre,
		KeyDiabetes:    pDiabetes,
	}

	ordered := [...]float64{pNormal, pPre, pDiabetes}
	best := 0
	for i, p := range ordered {
		if p > ordered[best] {
			best = i
		}
	}
	return probs, labels[best]
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func nextSteps(pDiabetes, pPre float64, rec models.ClinicalRecord) []string {
	var steps []string
	switch {
	case pDiabetes >= 0.5:
		steps = append(steps,
			"Consider confirming with a clinician: repeat fasting glucose and/or HbA1c.",
			"Discuss lifestyle changes (nutrition, activity) and medication options if indicated.",
		)
	case pPre >= 0.5:
		steps = append(steps,
			"Consider follow-up screening (HbA1c and fasting glucose) within 3-6 months.",
			"Lifestyle changes: increase activity, reduce refined carbs, aim for waist/BMI improvement.",
		)
	default:
		steps = append(steps, "Maintain healthy lifestyle habits and routine screening intervals.")
	}
	if rec.HbA1cPercent != nil && *rec.HbA1cPercent >= 5.7 {
		steps = append(steps, "Your HbA1c is in a higher range; consider monitoring trends over time.")
	}
	return steps
}
