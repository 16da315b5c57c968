// Package normalizer converts raw clinical form text into a typed, validated record.
// Everything here is pure: no I/O and no logging.
package normalizer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/miradorstack/risk-client/internal/models"
	"github.com/miradorstack/risk-client/internal/utils"
)

// Normalize builds a ClinicalRecord from raw field text keyed by wire name.
// Every required field must parse to a finite number; otherwise a
// *utils.ValidationError naming each offending field is returned together
// with the zero record. Optional fields that are empty or unparseable are absent.
func Normalize(raw map[string]string) (models.ClinicalRecord, error) {
	var (
		rec     models.ClinicalRecord
		invalid []string
	)

	required := func(name string, dst *float64) {
		v, ok := parseNumber(raw[name])
		if !ok {
			invalid = append(invalid, name)
			return
		}
		*dst = v
	}
	optional := func(name string) *float64 {
		v, ok := parseNumber(raw[name])
		if !ok {
			return nil
		}
		return &v
	}

	required(models.FieldAgeYears, &rec.AgeYears)
	required(models.FieldWaistCircumferenceCM, &rec.WaistCircumferenceCM)
	required(models.FieldSystolicBP, &rec.SystolicBPmmHg)
	required(models.FieldDiastolicBP, &rec.DiastolicBPmmHg)
	required(models.FieldFastingGlucose, &rec.FastingGlucoseMgDL)
	required(models.FieldTriglycerides, &rec.TriglyceridesMgDL)
	required(models.FieldHDL, &rec.HDLMgDL)

	if len(invalid) > 0 {
		return models.ClinicalRecord{}, &utils.ValidationError{Fields: canonicalOrder(invalid)}
	}

	rec.HeightCM = optional(models.FieldHeightCM)
	rec.WeightKG = optional(models.FieldWeightKG)
	rec.BMI = optional(models.FieldBMI)
	rec.TotalCholesterolMgDL = optional(models.FieldTotalCholesterol)
	rec.HbA1cPercent = optional(models.FieldHbA1c)
	rec.ALTUL = optional(models.FieldALT)
	rec.CreatinineMgDL = optional(models.FieldCreatinine)

	rec.SexAtBirth, _ = models.ParseSexAtBirth(raw[models.FieldSexAtBirth])
	rec.RaceEthnicity, _ = models.ParseRaceEthnicity(raw[models.FieldRaceEthnicity])
	rec.PregnancyStatus, _ = models.ParsePregnancyStatus(raw[models.FieldPregnancyStatus])

	rec.RequestID = strings.TrimSpace(raw[models.FieldRequestID])
	return rec, nil
}

// parseNumber trims s and parses it as a finite decimal. Empty and
// non-finite values report ok=false.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !isDecimal(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// isDecimal reports whether s is plain decimal notation: an optional sign,
// digits with at most one point, and an optional exponent. Hex, underscores,
// inf and nan spellings accepted by ParseFloat are refused.
func isDecimal(s string) bool {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits, point := 0, false
mantissa:
	for ; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && !point:
			point = true
		default:
			break mantissa
		}
	}
	if digits == 0 {
		return false
	}
	if i == len(s) {
		return true
	}
	if s[i] != 'e' && s[i] != 'E' {
		return false
	}
	i++
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	start := i
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return i > start
}

func canonicalOrder(names []string) []string {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	out := make([]string, 0, len(names))
	for _, f := range catalogue {
		if seen[f.Name] {
			out = append(out, f.Name)
		}
	}
	return out
}

// Advisory is a soft warning about a value the scoring service may reject.
// Advisories never block a submission.
type Advisory struct {
	Field   string
	Message string
}

func (a Advisory) String() string {
	return fmt.Sprintf("%s: %s", a.Field, a.Message)
}

// Advisories inspects a normalized record and the raw text it came from.
// It flags measurements outside the plausible range, optional values that
// were dropped because they did not parse, categorical text outside the
// enumerated choices and a missing sex at birth.
func Advisories(raw map[string]string, rec models.ClinicalRecord) []Advisory {
	var out []Advisory

	for _, f := range catalogue {
		text := strings.TrimSpace(raw[f.Name])
		switch f.Kind {
		case KindNumeric:
			v, ok := numericValue(rec, f.Name)
			if !ok {
				if text != "" {
					out = append(out, Advisory{Field: f.Name, Message: fmt.Sprintf("ignored unparseable value %q", text)})
				}
				continue
			}
			if v < f.Min || v > f.Max {
				out = append(out, Advisory{
					Field:   f.Name,
					Message: fmt.Sprintf("%s %s is outside the expected range %s-%s", formatNumber(v), f.Unit, formatNumber(f.Min), formatNumber(f.Max)),
				})
			}
		case KindCategorical:
			if text == "" {
				if f.Name == models.FieldSexAtBirth {
					out = append(out, Advisory{Field: f.Name, Message: "not provided, sent as unknown"})
				}
				continue
			}
			if !recognised(f.Name, text) {
				out = append(out, Advisory{Field: f.Name, Message: fmt.Sprintf("unrecognised value %q treated as unknown", text)})
			}
		}
	}
	return out
}

func recognised(name, text string) bool {
	var ok bool
	switch name {
	case models.FieldSexAtBirth:
		_, ok = models.ParseSexAtBirth(text)
	case models.FieldRaceEthnicity:
		_, ok = models.ParseRaceEthnicity(text)
	case models.FieldPregnancyStatus:
		_, ok = models.ParsePregnancyStatus(text)
	}
	return ok
}

func numericValue(rec models.ClinicalRecord, name string) (float64, bool) {
	deref := func(p *float64) (float64, bool) {
		if p == nil {
			return 0, false
		}
		return *p, true
	}
	switch name {
	case models.FieldAgeYears:
		return rec.AgeYears, true
	case models.FieldWaistCircumferenceCM:
		return rec.WaistCircumferenceCM, true
	case models.FieldSystolicBP:
		return rec.SystolicBPmmHg, true
	case models.FieldDiastolicBP:
		return rec.DiastolicBPmmHg, true
	case models.FieldFastingGlucose:
		return rec.FastingGlucoseMgDL, true
	case models.FieldTriglycerides:
		return rec.TriglyceridesMgDL, true
	case models.FieldHDL:
		return rec.HDLMgDL, true
	case models.FieldHeightCM:
		return deref(rec.HeightCM)
	case models.FieldWeightKG:
		return deref(rec.WeightKG)
	case models.FieldBMI:
		return deref(rec.BMI)
	case models.FieldTotalCholesterol:
		return deref(rec.TotalCholesterolMgDL)
	case models.FieldHbA1c:
		return deref(rec.HbA1cPercent)
	case models.FieldALT:
		return deref(rec.ALTUL)
	case models.FieldCreatinine:
		return deref(rec.CreatinineMgDL)
	}
	return 0, false
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Derive previews the measures the scoring service derives before inference.
func Derive(rec models.ClinicalRecord) models.DerivedMeasures {
	var d models.DerivedMeasures
	if rec.HDLMgDL != 0 {
		d.TGToHDLRatio = models.Float(rec.TriglyceridesMgDL / rec.HDLMgDL)
	}
	if rec.TotalCholesterolMgDL != nil {
		d.NonHDLCholMgDL = models.Float(*rec.TotalCholesterolMgDL - rec.HDLMgDL)
	}
	switch {
	case rec.BMI != nil:
		d.BMI = models.Float(*rec.BMI)
	case rec.HeightCM != nil && rec.WeightKG != nil && *rec.HeightCM > 0:
		m := *rec.HeightCM / 100.0
		d.BMI = models.Float(*rec.WeightKG / (m * m))
		d.BMIFromMeasurement = true
	}
	return d
}
