package domain

import (
	"math"
	"strings"
)

// PainFrequency is how often the pain occurs.
type PainFrequency string

const (
	FrequencyOccasional PainFrequency = "occasional"
	FrequencyFrequent   PainFrequency = "frequent"
	FrequencyConstant   PainFrequency = "constant"
)

// IsValid reports whether the frequency is known.
func (f PainFrequency) IsValid() bool {
	switch f {
	case FrequencyOccasional, FrequencyFrequent, FrequencyConstant:
		return true
	default:
		return false
	}
}

// PainDuration is how long a pain episode lasts.
type PainDuration string

const (
	DurationUnderOneHour PainDuration = "less than 1 hour"
	DurationOneToThree   PainDuration = "1-3 hours"
	DurationThreeToSix   PainDuration = "3-6 hours"
	DurationOverSixHours PainDuration = "more than 6 hours"
)

// IsValid reports whether the duration is known.
func (d PainDuration) IsValid() bool {
	switch d {
	case DurationUnderOneHour, DurationOneToThree, DurationThreeToSix, DurationOverSixHours:
		return true
	default:
		return false
	}
}

// YesNo is a binary questionnaire answer.
type YesNo string

const (
	Yes YesNo = "yes"
	No  YesNo = "no"
)

// IsValid reports whether the answer is yes or no.
func (y YesNo) IsValid() bool {
	return y == Yes || y == No
}

const (
	PainIntensityMin  = 0.0
	PainIntensityMax  = 10.0
	PainIntensityStep = 0.2
)

// QuestionnaireAnswers is the symptom questionnaire. Every field is optional;
// an absent field never matches a rule.
//
// Mobility "yes" means the user has difficulty moving the injured area.
type QuestionnaireAnswers struct {
	PainIntensity         *float64      `json:"painIntensity,omitempty"`
	PainFrequency         PainFrequency `json:"painFrequency,omitempty"`
	PainDuration          PainDuration  `json:"painDuration,omitempty"`
	Swelling              YesNo         `json:"swelling,omitempty"`
	Bleeding              YesNo         `json:"bleeding,omitempty"`
	Bruising              YesNo         `json:"bruising,omitempty"`
	Mobility              YesNo         `json:"mobility,omitempty"`
	ActivityWhenPainBegan string        `json:"activityWhenPainBegan,omitempty"`
	SpecificMotion        string        `json:"specificMotion,omitempty"`
}

// Normalize lower-cases the enumerated answers and trims free text.
func (q *QuestionnaireAnswers) Normalize() {
	q.PainFrequency = PainFrequency(strings.ToLower(strings.TrimSpace(string(q.PainFrequency))))
	q.PainDuration = PainDuration(strings.ToLower(strings.TrimSpace(string(q.PainDuration))))
	q.Swelling = normalizeYesNo(q.Swelling)
	q.Bleeding = normalizeYesNo(q.Bleeding)
	q.Bruising = normalizeYesNo(q.Bruising)
	q.Mobility = normalizeYesNo(q.Mobility)
	q.ActivityWhenPainBegan = strings.TrimSpace(q.ActivityWhenPainBegan)
	q.SpecificMotion = strings.TrimSpace(q.SpecificMotion)
}

func normalizeYesNo(y YesNo) YesNo {
	return YesNo(strings.ToLower(strings.TrimSpace(string(y))))
}

// Validate checks ranges and enumerations of the answers that are present.
func (q *QuestionnaireAnswers) Validate() error {
	if q.PainIntensity != nil {
		v := *q.PainIntensity
		if math.IsNaN(v) || v < PainIntensityMin || v > PainIntensityMax {
			return NewValidationError("painIntensity", ErrInvalidPainIntensity.Error(), v)
		}
	}
	if q.PainFrequency != "" && !q.PainFrequency.IsValid() {
		return NewValidationError("painFrequency", ErrInvalidFrequency.Error(), q.PainFrequency)
	}
	if q.PainDuration != "" && !q.PainDuration.IsValid() {
		return NewValidationError("painDuration", ErrInvalidDuration.Error(), q.PainDuration)
	}
	binary := []struct {
		field string
		value YesNo
	}{
		{"swelling", q.Swelling},
		{"bleeding", q.Bleeding},
		{"bruising", q.Bruising},
		{"mobility", q.Mobility},
	}
	for _, b := range binary {
		if b.value != "" && !b.value.IsValid() {
			return NewValidationError(b.field, ErrInvalidYesNo.Error(), b.value)
		}
	}
	return nil
}

// IsEmpty reports whether no classifiable answer is present.
func (q *QuestionnaireAnswers) IsEmpty() bool {
	return q.PainIntensity == nil && q.PainFrequency == "" && q.PainDuration == "" &&
		q.Swelling == "" && q.Bleeding == "" && q.Bruising == "" && q.Mobility == ""
}

// Float64 returns a pointer to v, for building answers in code.
func Float64(v float64) *float64 {
	return &v
}
