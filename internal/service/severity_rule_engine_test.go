package service

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/injury-assessment-server/internal/domain"
)

func TestSeverityRuleEngine_Rules(t *testing.T) {
	logger, _ := test.NewNullLogger()
	engine := NewSeverityRuleEngine(logger)

	rules := engine.Rules()
	require.Len(t, rules, 6)

	codes := make([]string, len(rules))
	for i, r := range rules {
		codes[i] = r.Code
	}
	assert.Equal(t, []string{"QM1", "QM2", "QM3", "QS1", "QS2", "QS3"}, codes)
}

func TestSeverityRuleEngine_Evaluate(t *testing.T) {
	logger, _ := test.NewNullLogger()
	engine := NewSeverityRuleEngine(logger)

	tests := []struct {
		name     string
		answers  *domain.QuestionnaireAnswers
		expected domain.SeverityTier
		matched  []string
	}{
		{
			name:     "nil answers",
			answers:  nil,
			expected: domain.SeverityMild,
		},
		{
			name:     "empty answers",
			answers:  &domain.QuestionnaireAnswers{},
			expected: domain.SeverityMild,
		},
		{
			name: "severe pain at boundary",
			answers: &domain.QuestionnaireAnswers{
				PainIntensity: domain.Float64(7),
			},
			expected: domain.SeveritySevere,
			matched:  []string{RuleSeverePain},
		},
		{
			name: "just below severe boundary",
			answers: &domain.QuestionnaireAnswers{
				PainIntensity: domain.Float64(6.8),
			},
			expected: domain.SeverityModerate,
			matched:  []string{RuleModeratePain},
		},
		{
			name: "moderate pain at boundary",
			answers: &domain.QuestionnaireAnswers{
				PainIntensity: domain.Float64(4),
			},
			expected: domain.SeverityModerate,
			matched:  []string{RuleModeratePain},
		},
		{
			name: "low pain occasional",
			answers: &domain.QuestionnaireAnswers{
				PainIntensity: domain.Float64(3.8),
				PainFrequency: domain.FrequencyOccasional,
				PainDuration:  domain.DurationUnderOneHour,
				Swelling:      domain.Yes,
				Bruising:      domain.Yes,
				Bleeding:      domain.No,
				Mobility:      domain.No,
			},
			expected: domain.SeverityMild,
		},
		{
			name: "bleeding overrides low pain",
			answers: &domain.QuestionnaireAnswers{
				PainIntensity: domain.Float64(1),
				Bleeding:      domain.Yes,
			},
			expected: domain.SeveritySevere,
			matched:  []string{RuleBleeding},
		},
		{
			name: "difficulty moving",
			answers: &domain.QuestionnaireAnswers{
				Mobility: domain.Yes,
			},
			expected: domain.SeveritySevere,
			matched:  []string{RuleMobilityLoss},
		},
		{
			name: "frequent pain",
			answers: &domain.QuestionnaireAnswers{
				PainFrequency: domain.FrequencyFrequent,
			},
			expected: domain.SeverityModerate,
			matched:  []string{RuleFrequentPain},
		},
		{
			name: "constant pain alone stays mild",
			answers: &domain.QuestionnaireAnswers{
				PainFrequency: domain.FrequencyConstant,
			},
			expected: domain.SeverityMild,
		},
		{
			name: "three to six hour episodes",
			answers: &domain.QuestionnaireAnswers{
				PainDuration: domain.DurationThreeToSix,
			},
			expected: domain.SeverityModerate,
			matched:  []string{RuleProlongedEpisode},
		},
		{
			name: "several severe rules reported together",
			answers: &domain.QuestionnaireAnswers{
				PainIntensity: domain.Float64(9.4),
				PainFrequency: domain.FrequencyFrequent,
				Bleeding:      domain.Yes,
				Mobility:      domain.Yes,
			},
			expected: domain.SeveritySevere,
			matched:  []string{RuleSeverePain, RuleBleeding, RuleMobilityLoss},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tier, matched := engine.Evaluate(tt.answers)
			assert.Equal(t, tt.expected, tier)
			assert.Equal(t, tt.matched, matched)
		})
	}
}

func TestSeverityRuleEngine_EvaluateRule(t *testing.T) {
	logger, _ := test.NewNullLogger()
	engine := NewSeverityRuleEngine(logger)
	answers := &domain.QuestionnaireAnswers{Bleeding: domain.Yes}

	ok, err := engine.EvaluateRule(RuleBleeding, answers)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = engine.EvaluateRule(RuleMobilityLoss, answers)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = engine.EvaluateRule("QX9", answers)
	assert.Error(t, err)
}

func TestSeverityRuleEngine_Monotonic(t *testing.T) {
	logger, _ := test.NewNullLogger()
	engine := NewSeverityRuleEngine(logger)

	base := &domain.QuestionnaireAnswers{
		PainFrequency: domain.FrequencyOccasional,
		Bleeding:      domain.No,
		Mobility:      domain.No,
	}

	prev := domain.SeverityMild
	for i := 0; i <= 50; i++ {
		answers := *base
		answers.PainIntensity = domain.Float64(float64(i) * 0.2)
		tier, _ := engine.Evaluate(&answers)
		assert.False(t, tier.Less(prev), "tier dropped at pain %.1f", *answers.PainIntensity)
		prev = tier
	}
	assert.Equal(t, domain.SeveritySevere, prev)
}

func TestThresholdTier(t *testing.T) {
	th := domain.ThresholdConfig{Severe: 1000, Moderate: 500}

	tests := []struct {
		value    int
		expected domain.SeverityTier
	}{
		{0, domain.SeverityMild},
		{500, domain.SeverityMild},
		{501, domain.SeverityModerate},
		{1000, domain.SeverityModerate},
		{1001, domain.SeveritySevere},
		{1 << 20, domain.SeveritySevere},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ThresholdTier(tt.value, th), "value %d", tt.value)
	}
}
