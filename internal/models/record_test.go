package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestClinicalRecordWireShape(t *testing.T) {
	rec := ClinicalRecord{
		AgeYears:             45,
		SexAtBirth:           SexMale,
		WaistCircumferenceCM: 95,
		SystolicBPmmHg:       128,
		DiastolicBPmmHg:      82,
		FastingGlucoseMgDL:   110,
		TriglyceridesMgDL:    160,
		HDLMgDL:              45,
		HbA1cPercent:         Float(0),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, key := range []string{FieldHeightCM, FieldWeightKG, FieldBMI, FieldTotalCholesterol, FieldALT, FieldCreatinine, FieldRequestID} {
		if _, ok := payload[key]; ok {
			t.Fatalf("expected absent field %s to be omitted: %s", key, data)
		}
	}
	if v, ok := payload[FieldHbA1c]; !ok || v.(float64) != 0 {
		t.Fatalf("expected present zero hba1c to be serialised, got %v", payload[FieldHbA1c])
	}
	if payload[FieldSexAtBirth] != "male" {
		t.Fatalf("unexpected sex_at_birth: %v", payload[FieldSexAtBirth])
	}
	if payload[FieldRaceEthnicity] != "unknown" || payload[FieldPregnancyStatus] != "unknown" {
		t.Fatalf("expected categorical defaults, got %s", data)
	}
	if !strings.Contains(string(data), `"systolic_bp_mmHg":128`) {
		t.Fatalf("expected verbatim wire names, got %s", data)
	}
}

func TestEnumUnmarshalRejectsOutOfSet(t *testing.T) {
	var sex SexAtBirth
	if err := json.Unmarshal([]byte(`"other"`), &sex); err == nil {
		t.Fatalf("expected error for out-of-set sex_at_birth")
	}

	var race RaceEthnicity
	if err := json.Unmarshal([]byte(`null`), &race); err != nil || race != RaceUnknown {
		t.Fatalf("expected null race to map to unknown, got %v (%v)", race, err)
	}

	var preg PregnancyStatus
	if err := json.Unmarshal([]byte(`"not_pregnant"`), &preg); err != nil || preg != PregnancyNotPregnant {
		t.Fatalf("unexpected pregnancy status %v (%v)", preg, err)
	}
}

func TestEnumValueListsAreParseable(t *testing.T) {
	for _, v := range RaceEthnicityValues() {
		if _, ok := ParseRaceEthnicity(v); !ok {
			t.Fatalf("race value %q does not parse", v)
		}
	}
	if got := len(RaceEthnicityValues()); got != 7 {
		t.Fatalf("expected 7 race/ethnicity labels, got %d", got)
	}
	for _, v := range SexAtBirthValues() {
		if _, ok := ParseSexAtBirth(v); !ok {
			t.Fatalf("sex value %q does not parse", v)
		}
	}
	for _, v := range PregnancyStatusValues() {
		if _, ok := ParsePregnancyStatus(v); !ok {
			t.Fatalf("pregnancy value %q does not parse", v)
		}
	}
}

func TestEnumUnmarshalNullIsUnknown(t *testing.T) {
	sex := SexFemale
	if err := json.Unmarshal([]byte(`null`), &sex); err != nil || sex != SexUnknown {
		t.Fatalf("expected null sex_at_birth to map to unknown, got %v (%v)", sex, err)
	}
	race := RaceNonHispanicAsian
	if err := json.Unmarshal([]byte(`null`), &race); err != nil || race != RaceUnknown {
		t.Fatalf("expected null race to map to unknown, got %v (%v)", race, err)
	}
	preg := PregnancyPregnant
	if err := json.Unmarshal([]byte(`null`), &preg); err != nil || preg != PregnancyUnknown {
		t.Fatalf("expected null pregnancy status to map to unknown, got %v (%v)", preg, err)
	}

	var rec ClinicalRecord
	if err := json.Unmarshal([]byte(`{"age_years":45,"sex_at_birth":null}`), &rec); err != nil || rec.SexAtBirth != SexUnknown {
		t.Fatalf("expected record with null sex to decode as unknown, got %v (%v)", rec.SexAtBirth, err)
	}
}
