package models

// Wire names of the clinical record fields.
const (
	FieldRequestID            = "request_id"
	FieldAgeYears             = "age_years"
	FieldSexAtBirth           = "sex_at_birth"
	FieldHeightCM             = "height_cm"
	FieldWeightKG             = "weight_kg"
	FieldBMI                  = "bmi"
	FieldWaistCircumferenceCM = "waist_circumference_cm"
	FieldSystolicBP           = "systolic_bp_mmHg"
	FieldDiastolicBP          = "diastolic_bp_mmHg"
	FieldFastingGlucose       = "fasting_glucose_mg_dL"
	FieldTriglycerides        = "triglycerides_mg_dL"
	FieldHDL                  = "hdl_mg_dL"
	FieldTotalCholesterol     = "total_cholesterol_mg_dL"
	FieldHbA1c                = "hba1c_percent"
	FieldALT                  = "alt_U_L"
	FieldCreatinine           = "creatinine_mg_dL"
	FieldRaceEthnicity        = "race_ethnicity"
	FieldPregnancyStatus      = "pregnancy_status"
)

// ClinicalRecord is the validated subject of a prediction request.
// Optional measurements are nil when absent.
type ClinicalRecord struct {
	RequestID string `json:"request_id,omitempty"`

	AgeYears   float64    `json:"age_years"`
	SexAtBirth SexAtBirth `json:"sex_at_birth"`

	HeightCM             *float64 `json:"height_cm,omitempty"`
	WeightKG             *float64 `json:"weight_kg,omitempty"`
	BMI                  *float64 `json:"bmi,omitempty"`
	WaistCircumferenceCM float64  `json:"waist_circumference_cm"`

	SystolicBPmmHg  float64 `json:"systolic_bp_mmHg"`
	DiastolicBPmmHg float64 `json:"diastolic_bp_mmHg"`

	FastingGlucoseMgDL   float64  `json:"fasting_glucose_mg_dL"`
	TriglyceridesMgDL    float64  `json:"triglycerides_mg_dL"`
	HDLMgDL              float64  `json:"hdl_mg_dL"`
	TotalCholesterolMgDL *float64 `json:"total_cholesterol_mg_dL,omitempty"`
	HbA1cPercent         *float64 `json:"hba1c_percent,omitempty"`

	ALTUL          *float64 `json:"alt_U_L,omitempty"`
	CreatinineMgDL *float64 `json:"creatinine_mg_dL,omitempty"`

	RaceEthnicity   RaceEthnicity   `json:"race_ethnicity"`
	PregnancyStatus PregnancyStatus `json:"pregnancy_status"`
}

// DerivedMeasures mirrors the values the scoring service derives before inference.
type DerivedMeasures struct {
	TGToHDLRatio       *float64 `json:"tg_to_hdl_ratio,omitempty"`
	NonHDLCholMgDL     *float64 `json:"non_hdl_chol_mg_dL,omitempty"`
	BMI                *float64 `json:"bmi,omitempty"`
	BMIFromMeasurement bool     `json:"bmi_from_measurement,omitempty"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
