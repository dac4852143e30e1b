package domain

import (
	"errors"
	"math"
	"testing"
)

func TestSeverityTierOrdering(t *testing.T) {
	if !SeverityMild.Less(SeverityModerate) || !SeverityModerate.Less(SeveritySevere) {
		t.Error("Expected mild < moderate < severe")
	}
	if SeveritySevere.Less(SeverityMild) {
		t.Error("severe must not rank below mild")
	}
	if SeverityTier("critical").Rank() != -1 {
		t.Error("Unknown tier should rank -1")
	}
}

func TestParseSeverityTier(t *testing.T) {
	tests := []struct {
		input    string
		expected SeverityTier
		wantErr  bool
	}{
		{"mild", SeverityMild, false},
		{" Moderate ", SeverityModerate, false},
		{"SEVERE", SeveritySevere, false},
		{"critical", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tier, err := ParseSeverityTier(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSeverity) {
					t.Errorf("Expected ErrInvalidSeverity, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tier != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, tier)
			}
		})
	}
}

func TestSlotCanonical(t *testing.T) {
	if SlotSelectedImagesAlias.Canonical() != SlotSelectedInjuryImages {
		t.Error("selectedImages should map to selectedInjuryImages")
	}
	if !SlotSelectedImagesAlias.IsValid() {
		t.Error("Alias should be accepted as a valid slot")
	}
	if Slot("somethingElse").IsValid() {
		t.Error("Unknown slot should be invalid")
	}
	if len(AllSlots) != 4 {
		t.Errorf("Expected 4 canonical slots, got %d", len(AllSlots))
	}
}

func TestQuestionnaireValidate(t *testing.T) {
	tests := []struct {
		name    string
		answers QuestionnaireAnswers
		field   string
	}{
		{"empty is valid", QuestionnaireAnswers{}, ""},
		{"lower bound", QuestionnaireAnswers{PainIntensity: Float64(0)}, ""},
		{"upper bound", QuestionnaireAnswers{PainIntensity: Float64(10)}, ""},
		{"above range", QuestionnaireAnswers{PainIntensity: Float64(10.2)}, "painIntensity"},
		{"below range", QuestionnaireAnswers{PainIntensity: Float64(-0.2)}, "painIntensity"},
		{"NaN", QuestionnaireAnswers{PainIntensity: Float64(math.NaN())}, "painIntensity"},
		{"bad frequency", QuestionnaireAnswers{PainFrequency: "hourly"}, "painFrequency"},
		{"bad duration", QuestionnaireAnswers{PainDuration: "all day"}, "painDuration"},
		{"bad yes/no", QuestionnaireAnswers{Bleeding: "maybe"}, "bleeding"},
		{"complete form", QuestionnaireAnswers{
			PainIntensity: Float64(5.4),
			PainFrequency: FrequencyConstant,
			PainDuration:  DurationOneToThree,
			Swelling:      Yes,
			Bleeding:      No,
			Bruising:      No,
			Mobility:      No,
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.answers.Validate()
			if tt.field == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, ve.Field)
			}
		})
	}
}

func TestQuestionnaireNormalize(t *testing.T) {
	q := QuestionnaireAnswers{
		PainFrequency:  " Frequent",
		PainDuration:   "3-6 Hours",
		Mobility:       "YES",
		SpecificMotion: "  twisting ",
	}
	q.Normalize()

	if q.PainFrequency != FrequencyFrequent {
		t.Errorf("Expected frequent, got %q", q.PainFrequency)
	}
	if q.PainDuration != DurationThreeToSix {
		t.Errorf("Expected 3-6 hours, got %q", q.PainDuration)
	}
	if q.Mobility != Yes {
		t.Errorf("Expected yes, got %q", q.Mobility)
	}
	if q.SpecificMotion != "twisting" {
		t.Errorf("Expected trimmed free text, got %q", q.SpecificMotion)
	}
	if q.IsEmpty() {
		t.Error("Normalized answers should not be empty")
	}
}

func TestHaversineKm(t *testing.T) {
	london := Coordinates{Latitude: 51.5074, Longitude: -0.1278}
	paris := Coordinates{Latitude: 48.8566, Longitude: 2.3522}

	d := HaversineKm(london, paris)
	if d < 340 || d > 345 {
		t.Errorf("Expected London-Paris around 343 km, got %.1f", d)
	}
	if HaversineKm(london, london) != 0 {
		t.Error("Distance to self should be zero")
	}
}

func TestCoordinatesValidate(t *testing.T) {
	if err := (Coordinates{Latitude: 91}).Validate(); !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("Expected ErrInvalidCoordinates, got %v", err)
	}
	if err := (Coordinates{Longitude: -181}).Validate(); !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("Expected ErrInvalidCoordinates, got %v", err)
	}
	if err := (Coordinates{Latitude: 37.77, Longitude: -122.41}).Validate(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if got := (Coordinates{Latitude: 37.774929, Longitude: -122.419416}).String(); got != "37.7749:-122.4194" {
		t.Errorf("Unexpected key %s", got)
	}
}
