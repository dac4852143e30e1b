package service

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/injury-assessment-server/internal/domain"
)

// Rule codes. Q* rules read questionnaire answers.
const (
	RuleSeverePain       = "QS1"
	RuleBleeding         = "QS2"
	RuleMobilityLoss     = "QS3"
	RuleModeratePain     = "QM1"
	RuleFrequentPain     = "QM2"
	RuleProlongedEpisode = "QM3"
)

const (
	severePainThreshold   = 7.0
	moderatePainThreshold = 4.0
)

// SeverityRule is one questionnaire condition that raises the tier.
type SeverityRule struct {
	Code      string
	Name      string
	Tier      domain.SeverityTier
	Evaluator func(answers *domain.QuestionnaireAnswers) bool
}

// SeverityRuleEngine evaluates questionnaire answers against the tier rules.
// Severe rules take precedence over moderate rules; nothing matching means mild.
type SeverityRuleEngine struct {
	logger *logrus.Logger
	rules  map[string]*SeverityRule
}

// NewSeverityRuleEngine creates a rule engine with the standard rule set.
func NewSeverityRuleEngine(logger *logrus.Logger) *SeverityRuleEngine {
	engine := &SeverityRuleEngine{
		logger: logger,
		rules:  make(map[string]*SeverityRule),
	}
	engine.initializeRules()
	return engine
}

func (e *SeverityRuleEngine) initializeRules() {
	e.addRule(RuleSeverePain, "Severe pain intensity", domain.SeveritySevere,
		func(a *domain.QuestionnaireAnswers) bool {
			return a.PainIntensity != nil && *a.PainIntensity >= severePainThreshold
		})
	e.addRule(RuleBleeding, "Active bleeding", domain.SeveritySevere,
		func(a *domain.QuestionnaireAnswers) bool {
			return a.Bleeding == domain.Yes
		})
	e.addRule(RuleMobilityLoss, "Difficulty moving", domain.SeveritySevere,
		func(a *domain.QuestionnaireAnswers) bool {
			return a.Mobility == domain.Yes
		})

	e.addRule(RuleModeratePain, "Moderate pain intensity", domain.SeverityModerate,
		func(a *domain.QuestionnaireAnswers) bool {
			return a.PainIntensity != nil && *a.PainIntensity >= moderatePainThreshold
		})
	e.addRule(RuleFrequentPain, "Frequent pain", domain.SeverityModerate,
		func(a *domain.QuestionnaireAnswers) bool {
			return a.PainFrequency == domain.FrequencyFrequent
		})
	e.addRule(RuleProlongedEpisode, "Pain episodes of 3-6 hours", domain.SeverityModerate,
		func(a *domain.QuestionnaireAnswers) bool {
			return a.PainDuration == domain.DurationThreeToSix
		})
}

func (e *SeverityRuleEngine) addRule(code, name string, tier domain.SeverityTier, evaluator func(*domain.QuestionnaireAnswers) bool) {
	e.rules[code] = &SeverityRule{
		Code:      code,
		Name:      name,
		Tier:      tier,
		Evaluator: evaluator,
	}
}

// Rules returns the registered rules ordered by code.
func (e *SeverityRuleEngine) Rules() []*SeverityRule {
	rules := make([]*SeverityRule, 0, len(e.rules))
	for _, r := range e.rules {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Code < rules[j].Code })
	return rules
}

// EvaluateRule evaluates one rule by code.
func (e *SeverityRuleEngine) EvaluateRule(code string, answers *domain.QuestionnaireAnswers) (bool, error) {
	rule, exists := e.rules[code]
	if !exists {
		return false, fmt.Errorf("unknown severity rule: %s", code)
	}
	return rule.Evaluator(answers), nil
}

// Evaluate returns the tier for the answers and the codes of the rules that
// decided it. Only rules of the winning tier are reported.
func (e *SeverityRuleEngine) Evaluate(answers *domain.QuestionnaireAnswers) (domain.SeverityTier, []string) {
	if answers == nil {
		return domain.SeverityMild, nil
	}

	matched := map[domain.SeverityTier][]string{}
	for _, rule := range e.Rules() {
		if rule.Evaluator(answers) {
			matched[rule.Tier] = append(matched[rule.Tier], rule.Code)
		}
	}

	tier := domain.SeverityMild
	switch {
	case len(matched[domain.SeveritySevere]) > 0:
		tier = domain.SeveritySevere
	case len(matched[domain.SeverityModerate]) > 0:
		tier = domain.SeverityModerate
	}

	e.logger.WithFields(logrus.Fields{
		"severity":       tier,
		"severe_rules":   matched[domain.SeveritySevere],
		"moderate_rules": matched[domain.SeverityModerate],
	}).Debug("Completed questionnaire rule evaluation")

	return tier, matched[tier]
}

// ThresholdTier maps an image signal onto a tier using strict lower bounds:
// above severe is severe, above moderate is moderate, otherwise mild.
func ThresholdTier(value int, th domain.ThresholdConfig) domain.SeverityTier {
	switch {
	case value > th.Severe:
		return domain.SeveritySevere
	case value > th.Moderate:
		return domain.SeverityModerate
	default:
		return domain.SeverityMild
	}
}
