// Package domain contains the core entities of the injury self-assessment
// workflow: severity tiers, questionnaire answers, image signals,
// recommendation items, facility records and the session slot contract.
//
// The tier produced here is a heuristic triage aid. It is not a diagnosis.
package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// SeverityTier is the three-valued, ordered triage outcome.
type SeverityTier string

const (
	SeverityMild     SeverityTier = "mild"
	SeverityModerate SeverityTier = "moderate"
	SeveritySevere   SeverityTier = "severe"
)

// Validation errors for assessment inputs
var (
	ErrInvalidSeverity      = errors.New("invalid severity tier")
	ErrInvalidPainIntensity = errors.New("pain intensity must be between 0 and 10")
	ErrInvalidFrequency     = errors.New("invalid pain frequency")
	ErrInvalidDuration      = errors.New("invalid pain duration")
	ErrInvalidYesNo         = errors.New("value must be yes or no")
	ErrInvalidSignalMethod  = errors.New("invalid image signal method")
	ErrInvalidCoordinates   = errors.New("invalid coordinates")
)

// IsValid reports whether the tier is one of the three known values.
func (s SeverityTier) IsValid() bool {
	switch s {
	case SeverityMild, SeverityModerate, SeveritySevere:
		return true
	default:
		return false
	}
}

// String returns the string representation of the tier.
func (s SeverityTier) String() string {
	return string(s)
}

// Rank orders tiers mild < moderate < severe. Unknown tiers rank -1.
func (s SeverityTier) Rank() int {
	switch s {
	case SeverityMild:
		return 0
	case SeverityModerate:
		return 1
	case SeveritySevere:
		return 2
	default:
		return -1
	}
}

// Less reports whether s is a lower tier than other.
func (s SeverityTier) Less(other SeverityTier) bool {
	return s.Rank() < other.Rank()
}

// LogFields returns structured log fields for the tier.
func (s SeverityTier) LogFields() logrus.Fields {
	return logrus.Fields{
		"severity":      string(s),
		"severity_rank": s.Rank(),
	}
}

// ParseSeverityTier parses a tier name case-insensitively.
func ParseSeverityTier(s string) (SeverityTier, error) {
	tier := SeverityTier(strings.ToLower(strings.TrimSpace(s)))
	if !tier.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, s)
	}
	return tier, nil
}

// SignalMethod names the image heuristic that produced an ImageSignal.
type SignalMethod string

const (
	SignalBrightness SignalMethod = "brightness"
	SignalContour    SignalMethod = "contour"
)

// IsValid reports whether the method is known.
func (m SignalMethod) IsValid() bool {
	return m == SignalBrightness || m == SignalContour
}

// String returns the string representation of the method.
func (m SignalMethod) String() string {
	return string(m)
}

// ImageSignal is the scalar extracted from an injury photo.
// Fallback is set when the value is the neutral 0 produced on failure.
type ImageSignal struct {
	Method   SignalMethod `json:"method"`
	Value    int          `json:"value"`
	Fallback bool         `json:"fallback,omitempty"`
}

// ClassificationPath identifies which evaluation produced a tier.
type ClassificationPath string

const (
	PathQuestionnaire ClassificationPath = "questionnaire"
	PathImageSignal   ClassificationPath = "image"
	PathDefault       ClassificationPath = "default"
)

// SeverityResult is the output of a classification.
type SeverityResult struct {
	Tier         SeverityTier       `json:"severity"`
	Path         ClassificationPath `json:"path"`
	MatchedRules []string           `json:"matched_rules,omitempty"`
	Signal       *ImageSignal       `json:"signal,omitempty"`
}

// LogFields returns structured log fields for the result.
func (r *SeverityResult) LogFields() logrus.Fields {
	fields := r.Tier.LogFields()
	fields["path"] = string(r.Path)
	fields["matched_rules"] = strings.Join(r.MatchedRules, ",")
	if r.Signal != nil {
		fields["signal_method"] = string(r.Signal.Method)
		fields["signal_value"] = r.Signal.Value
	}
	return fields
}
