package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SexAtBirth is the closed set of sex-at-birth values accepted by the scoring service.
type SexAtBirth int

const (
	SexUnknown SexAtBirth = iota
	SexMale
	SexFemale
)

// String returns the wire value.
func (s SexAtBirth) String() string {
	switch s {
	case SexMale:
		return "male"
	case SexFemale:
		return "female"
	case SexUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// ParseSexAtBirth maps a wire value to SexAtBirth. ok is false for values outside the set.
func ParseSexAtBirth(v string) (SexAtBirth, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "male":
		return SexMale, true
	case "female":
		return SexFemale, true
	case "unknown":
		return SexUnknown, true
	}
	return SexUnknown, false
}

// SexAtBirthValues lists every wire value in display order.
func SexAtBirthValues() []string {
	return []string{SexMale.String(), SexFemale.String(), SexUnknown.String()}
}

// MarshalJSON encodes the wire value.
func (s SexAtBirth) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// UnmarshalJSON decodes a wire value; null decodes to SexUnknown.
func (s *SexAtBirth) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*s = SexUnknown
		return nil
	}
	v, ok := ParseSexAtBirth(*raw)
	if !ok {
		return fmt.Errorf("invalid sex_at_birth %q", *raw)
	}
	*s = v
	return nil
}

// RaceEthnicity is the closed set of race/ethnicity labels.
type RaceEthnicity int

const (
	RaceUnknown RaceEthnicity = iota
	RaceMexicanAmerican
	RaceOtherHispanic
	RaceNonHispanicWhite
	RaceNonHispanicBlack
	RaceNonHispanicAsian
	RaceOtherOrMultiracial
)

// String returns the wire value.
func (r RaceEthnicity) String() string {
	switch r {
	case RaceMexicanAmerican:
		return "mexican_american"
	case RaceOtherHispanic:
		return "other_hispanic"
	case RaceNonHispanicWhite:
		return "non_hispanic_white"
	case RaceNonHispanicBlack:
		return "non_hispanic_black"
	case RaceNonHispanicAsian:
		return "non_hispanic_asian"
	case RaceOtherOrMultiracial:
		return "other_or_multiracial"
	case RaceUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// ParseRaceEthnicity maps a wire value to RaceEthnicity. ok is false for values outside the set.
func ParseRaceEthnicity(v string) (RaceEthnicity, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "mexican_american":
		return RaceMexicanAmerican, true
	case "other_hispanic":
		return RaceOtherHispanic, true
	case "non_hispanic_white":
		return RaceNonHispanicWhite, true
	case "non_hispanic_black":
		return RaceNonHispanicBlack, true
	case "non_hispanic_asian":
		return RaceNonHispanicAsian, true
	case "other_or_multiracial":
		return RaceOtherOrMultiracial, true
	case "unknown":
		return RaceUnknown, true
	}
	return RaceUnknown, false
}

// RaceEthnicityValues lists every wire value in display order.
func RaceEthnicityValues() []string {
	return []string{
		RaceMexicanAmerican.String(),
		RaceOtherHispanic.String(),
		RaceNonHispanicWhite.String(),
		RaceNonHispanicBlack.String(),
		RaceNonHispanicAsian.String(),
		RaceOtherOrMultiracial.String(),
		RaceUnknown.String(),
	}
}

// MarshalJSON encodes the wire value.
func (r RaceEthnicity) MarshalJSON() ([]byte, error) { return json.Marshal(r.String()) }

// UnmarshalJSON decodes a wire value; null decodes to RaceUnknown.
func (r *RaceEthnicity) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*r = RaceUnknown
		return nil
	}
	v, ok := ParseRaceEthnicity(*raw)
	if !ok {
		return fmt.Errorf("invalid race_ethnicity %q", *raw)
	}
	*r = v
	return nil
}

// PregnancyStatus is the closed set of pregnancy states.
type PregnancyStatus int

const (
	PregnancyUnknown PregnancyStatus = iota
	PregnancyPregnant
	PregnancyNotPregnant
)

// String returns the wire value.
func (p PregnancyStatus) String() string {
	switch p {
	case PregnancyPregnant:
		return "pregnant"
	case PregnancyNotPregnant:
		return "not_pregnant"
	case PregnancyUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// ParsePregnancyStatus maps a wire value to PregnancyStatus. ok is false for values outside the set.
func ParsePregnancyStatus(v string) (PregnancyStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "pregnant":
		return PregnancyPregnant, true
	case "not_pregnant":
		return PregnancyNotPregnant, true
	case "unknown":
		return PregnancyUnknown, true
	}
	return PregnancyUnknown, false
}

// PregnancyStatusValues lists every wire value in display order.
func PregnancyStatusValues() []string {
	return []string{PregnancyPregnant.String(), PregnancyNotPregnant.String(), PregnancyUnknown.String()}
}

// MarshalJSON encodes the wire value.
func (p PregnancyStatus) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }

// UnmarshalJSON decodes a wire value; null decodes to PregnancyUnknown.
func (p *PregnancyStatus) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*p = PregnancyUnknown
		return nil
	}
	v, ok := ParsePregnancyStatus(*raw)
	if !ok {
		return fmt.Errorf("invalid pregnancy_status %q", *raw)
	}
	*p = v
	return nil
}

// Mode selects between score-only and score-and-store submissions.
type Mode int

const (
	// ModeEphemeral scores without persisting a run.
	ModeEphemeral Mode = iota
	// ModePersisted scores and stores the run under the caller's identity.
	ModePersisted
)

// String names the mode for logs.
func (m Mode) String() string {
	switch m {
	case ModeEphemeral:
		return "ephemeral"
	case ModePersisted:
		return "persisted"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}
