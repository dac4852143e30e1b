package service

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/injury-assessment-server/internal/domain"
)

func TestSeverityClassifier_Classify(t *testing.T) {
	logger, hook := test.NewNullLogger()
	classifier := NewSeverityClassifier(logger, DefaultClassifierConfig())

	t.Run("answers take precedence over signal", func(t *testing.T) {
		result, err := classifier.Classify(ClassifyInput{
			Answers: &domain.QuestionnaireAnswers{PainIntensity: domain.Float64(2)},
			Signal:  &domain.ImageSignal{Method: domain.SignalBrightness, Value: 5000},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.SeverityMild, result.Tier)
		assert.Equal(t, domain.PathQuestionnaire, result.Path)
		assert.Nil(t, result.Signal)
	})

	t.Run("signal used without answers", func(t *testing.T) {
		result, err := classifier.Classify(ClassifyInput{
			Signal: &domain.ImageSignal{Method: domain.SignalBrightness, Value: 1200},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.SeveritySevere, result.Tier)
		assert.Equal(t, domain.PathImageSignal, result.Path)
		assert.Equal(t, []string{"brightness>1000"}, result.MatchedRules)
		require.NotNil(t, result.Signal)
		assert.Equal(t, 1200, result.Signal.Value)
	})

	t.Run("no input", func(t *testing.T) {
		_, err := classifier.Classify(ClassifyInput{})
		assert.True(t, errors.Is(err, domain.ErrMissingInput))
	})

	t.Run("unknown signal method", func(t *testing.T) {
		_, err := classifier.Classify(ClassifyInput{
			Signal: &domain.ImageSignal{Method: "depth", Value: 10},
		})
		assert.True(t, errors.Is(err, domain.ErrInvalidSignalMethod))
	})

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "severe", entry.Data["severity"])
}

func TestSeverityClassifier_ClassifySignal(t *testing.T) {
	logger, _ := test.NewNullLogger()
	classifier := NewSeverityClassifier(logger, DefaultClassifierConfig())

	tests := []struct {
		name      string
		signal    domain.ImageSignal
		expected  domain.SeverityTier
		rationale string
	}{
		{"brightness zero", domain.ImageSignal{Method: domain.SignalBrightness}, domain.SeverityMild, "brightness<=500"},
		{"brightness at lower bound", domain.ImageSignal{Method: domain.SignalBrightness, Value: 500}, domain.SeverityMild, "brightness<=500"},
		{"brightness moderate", domain.ImageSignal{Method: domain.SignalBrightness, Value: 750}, domain.SeverityModerate, "brightness>500"},
		{"brightness at upper bound", domain.ImageSignal{Method: domain.SignalBrightness, Value: 1000}, domain.SeverityModerate, "brightness>500"},
		{"contour moderate", domain.ImageSignal{Method: domain.SignalContour, Value: 1500}, domain.SeverityModerate, "contour>500"},
		{"contour severe", domain.ImageSignal{Method: domain.SignalContour, Value: 2001}, domain.SeveritySevere, "contour>2000"},
		{"fallback signal is mild", domain.ImageSignal{Method: domain.SignalContour, Fallback: true}, domain.SeverityMild, "contour<=500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := classifier.ClassifySignal(tt.signal)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.Tier)
			assert.Equal(t, []string{tt.rationale}, result.MatchedRules)
		})
	}
}

func TestSeverityClassifier_CustomThresholds(t *testing.T) {
	logger, _ := test.NewNullLogger()
	classifier := NewSeverityClassifier(logger, domain.ClassifierConfig{
		Brightness: domain.ThresholdConfig{Severe: 100, Moderate: 10},
		Contour:    domain.ThresholdConfig{Severe: 2000, Moderate: 500},
	})

	result, err := classifier.ClassifySignal(domain.ImageSignal{Method: domain.SignalBrightness, Value: 101})
	require.NoError(t, err)
	assert.Equal(t, domain.SeveritySevere, result.Tier)
}
