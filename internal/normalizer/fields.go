package normalizer

import "github.com/miradorstack/risk-client/internal/models"

// Kind distinguishes numeric measurements from categorical choices.
type Kind int

const (
	KindNumeric Kind = iota
	KindCategorical
	KindText
)

// Field describes one input of the clinical form.
type Field struct {
	Name     string
	Label    string
	Unit     string
	Kind     Kind
	Required bool
	// Min and Max bound the plausible range accepted by the scoring service.
	Min, Max float64
	// Choices lists the accepted wire values of categorical fields.
	Choices []string
}

var catalogue = []Field{
	{Name: models.FieldAgeYears, Label: "Age", Unit: "years", Kind: KindNumeric, Required: true, Min: 0, Max: 120},
	{Name: models.FieldSexAtBirth, Label: "Sex at birth", Kind: KindCategorical, Choices: models.SexAtBirthValues()},
	{Name: models.FieldHeightCM, Label: "Height", Unit: "cm", Kind: KindNumeric, Min: 50, Max: 250},
	{Name: models.FieldWeightKG, Label: "Weight", Unit: "kg", Kind: KindNumeric, Min: 20, Max: 400},
	{Name: models.FieldBMI, Label: "BMI", Unit: "kg/m2", Kind: KindNumeric, Min: 10, Max: 80},
	{Name: models.FieldWaistCircumferenceCM, Label: "Waist circumference", Unit: "cm", Kind: KindNumeric, Required: true, Min: 30, Max: 200},
	{Name: models.FieldSystolicBP, Label: "Systolic BP", Unit: "mmHg", Kind: KindNumeric, Required: true, Min: 60, Max: 260},
	{Name: models.FieldDiastolicBP, Label: "Diastolic BP", Unit: "mmHg", Kind: KindNumeric, Required: true, Min: 30, Max: 160},
	{Name: models.FieldFastingGlucose, Label: "Fasting glucose", Unit: "mg/dL", Kind: KindNumeric, Required: true, Min: 40, Max: 500},
	{Name: models.FieldTriglycerides, Label: "Triglycerides", Unit: "mg/dL", Kind: KindNumeric, Required: true, Min: 20, Max: 2000},
	{Name: models.FieldHDL, Label: "HDL cholesterol", Unit: "mg/dL", Kind: KindNumeric, Required: true, Min: 5, Max: 200},
	{Name: models.FieldTotalCholesterol, Label: "Total cholesterol", Unit: "mg/dL", Kind: KindNumeric, Min: 50, Max: 1000},
	{Name: models.FieldHbA1c, Label: "HbA1c", Unit: "%", Kind: KindNumeric, Min: 3, Max: 20},
	{Name: models.FieldALT, Label: "ALT", Unit: "U/L", Kind: KindNumeric, Min: 0, Max: 2000},
	{Name: models.FieldCreatinine, Label: "Creatinine", Unit: "mg/dL", Kind: KindNumeric, Min: 0.1, Max: 20},
	{Name: models.FieldRaceEthnicity, Label: "Race/ethnicity", Kind: KindCategorical, Choices: models.RaceEthnicityValues()},
	{Name: models.FieldPregnancyStatus, Label: "Pregnancy status", Kind: KindCategorical, Choices: models.PregnancyStatusValues()},
	{Name: models.FieldRequestID, Label: "Request ID", Kind: KindText},
}

// Fields returns the clinical form catalogue in canonical order.
func Fields() []Field {
	out := make([]Field, len(catalogue))
	copy(out, catalogue)
	return out
}

// RequiredFields returns the names of the required numeric fields in canonical order.
func RequiredFields() []string {
	names := make([]string, 0, 7)
	for _, f := range catalogue {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Lookup returns the catalogue entry for name.
func Lookup(name string) (Field, bool) {
	for _, f := range catalogue {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
