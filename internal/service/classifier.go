package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/injury-assessment-server/internal/domain"
)

// ClassifyInput carries whatever the session knows. Answers win over Signal
// whenever both are present.
type ClassifyInput struct {
	Answers *domain.QuestionnaireAnswers
	Signal  *domain.ImageSignal
}

// SeverityClassifier maps questionnaire answers or an image signal to a tier.
// It is a pure function of its input and configuration.
type SeverityClassifier struct {
	logger     *logrus.Logger
	ruleEngine *SeverityRuleEngine
	thresholds domain.ClassifierConfig
}

// NewSeverityClassifier creates a classifier with the given image thresholds.
func NewSeverityClassifier(logger *logrus.Logger, thresholds domain.ClassifierConfig) *SeverityClassifier {
	return &SeverityClassifier{
		logger:     logger,
		ruleEngine: NewSeverityRuleEngine(logger),
		thresholds: thresholds,
	}
}

// DefaultClassifierConfig returns the standard thresholds.
func DefaultClassifierConfig() domain.ClassifierConfig {
	return domain.ClassifierConfig{
		Brightness: domain.ThresholdConfig{Severe: 1000, Moderate: 500},
		Contour:    domain.ThresholdConfig{Severe: 2000, Moderate: 500},
	}
}

// Classify picks the questionnaire path when answers are present, otherwise
// the image path, otherwise returns ErrMissingInput.
func (c *SeverityClassifier) Classify(input ClassifyInput) (*domain.SeverityResult, error) {
	var result *domain.SeverityResult

	switch {
	case input.Answers != nil:
		result = c.ClassifyAnswers(input.Answers)
	case input.Signal != nil:
		r, err := c.ClassifySignal(*input.Signal)
		if err != nil {
			return nil, err
		}
		result = r
	default:
		return nil, domain.ErrMissingInput
	}

	c.logger.WithFields(result.LogFields()).Info("Severity classification completed")
	return result, nil
}

// ClassifyAnswers evaluates the questionnaire path.
func (c *SeverityClassifier) ClassifyAnswers(answers *domain.QuestionnaireAnswers) *domain.SeverityResult {
	tier, matched := c.ruleEngine.Evaluate(answers)
	return &domain.SeverityResult{
		Tier:         tier,
		Path:         domain.PathQuestionnaire,
		MatchedRules: matched,
	}
}

// ClassifySignal evaluates the image path with the thresholds of the
// signal's method.
func (c *SeverityClassifier) ClassifySignal(signal domain.ImageSignal) (*domain.SeverityResult, error) {
	th, err := c.thresholdsFor(signal.Method)
	if err != nil {
		return nil, err
	}

	tier := ThresholdTier(signal.Value, th)
	sig := signal
	return &domain.SeverityResult{
		Tier:         tier,
		Path:         domain.PathImageSignal,
		MatchedRules: []string{signalRationale(signal.Method, tier, th)},
		Signal:       &sig,
	}, nil
}

func (c *SeverityClassifier) thresholdsFor(method domain.SignalMethod) (domain.ThresholdConfig, error) {
	switch method {
	case domain.SignalBrightness:
		return c.thresholds.Brightness, nil
	case domain.SignalContour:
		return c.thresholds.Contour, nil
	default:
		return domain.ThresholdConfig{}, fmt.Errorf("%w: %q", domain.ErrInvalidSignalMethod, method)
	}
}

// signalRationale names the bound that placed the signal in tier.
func signalRationale(method domain.SignalMethod, tier domain.SeverityTier, th domain.ThresholdConfig) string {
	switch tier {
	case domain.SeveritySevere:
		return fmt.Sprintf("%s>%d", method, th.Severe)
	case domain.SeverityModerate:
		return fmt.Sprintf("%s>%d", method, th.Moderate)
	default:
		return fmt.Sprintf("%s<=%d", method, th.Moderate)
	}
}
