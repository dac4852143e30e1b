package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/injury-assessment-server/internal/domain"
	"github.com/injury-assessment-server/internal/service"
)

// Tool names.
const (
	ToolClassifyInjury        = "classify_injury"
	ToolFilterRecommendations = "filter_recommendations"
	ToolLocateFacilities      = "locate_facilities"
)

// ClassifyInjuryParams defines parameters for classify_injury tool
type ClassifyInjuryParams struct {
	PainIntensity *float64 `json:"pain_intensity,omitempty" jsonschema:"pain from 0 to 10"`
	PainFrequency string   `json:"pain_frequency,omitempty" jsonschema:"occasional, frequent or constant"`
	PainDuration  string   `json:"pain_duration,omitempty" jsonschema:"less than 1 hour, 1-3 hours, 3-6 hours or more than 6 hours"`
	Swelling      string   `json:"swelling,omitempty" jsonschema:"yes or no"`
	Bleeding      string   `json:"bleeding,omitempty" jsonschema:"yes or no"`
	Bruising      string   `json:"bruising,omitempty" jsonschema:"yes or no"`
	Mobility      string   `json:"mobility,omitempty" jsonschema:"yes when moving the injured area is difficult"`
	SignalMethod  string   `json:"signal_method,omitempty" jsonschema:"brightness or contour, used with signal_value"`
	SignalValue   *int     `json:"signal_value,omitempty" jsonschema:"image signal, used only when no answers are given"`
}

// ClassifyInjuryResult defines the result structure for classify_injury tool
type ClassifyInjuryResult struct {
	Severity        domain.SeverityTier `json:"severity"`
	Path            string              `json:"path"`
	MatchedRules    []string            `json:"matched_rules,omitempty"`
	Recommendations []int               `json:"recommendation_ids"`
	Notice          string              `json:"notice,omitempty"`
}

// FilterRecommendationsParams defines parameters for filter_recommendations tool
type FilterRecommendationsParams struct {
	Severity string `json:"severity" jsonschema:"mild, moderate or severe"`
}

// FilterRecommendationsResult defines the result structure for filter_recommendations tool
type FilterRecommendationsResult struct {
	Severity domain.SeverityTier         `json:"severity"`
	Items    []domain.RecommendationItem `json:"items"`
}

// LocateFacilitiesParams defines parameters for locate_facilities tool
type LocateFacilitiesParams struct {
	Latitude  *float64 `json:"latitude,omitempty" jsonschema:"decimal degrees; the default center is used when omitted"`
	Longitude *float64 `json:"longitude,omitempty" jsonschema:"decimal degrees"`
}

// LocateFacilitiesResult defines the result structure for locate_facilities tool
type LocateFacilitiesResult struct {
	Facilities []domain.FacilityRecord `json:"facilities"`
	Notice     string                  `json:"notice,omitempty"`
}

func (p ClassifyInjuryParams) answers() *domain.QuestionnaireAnswers {
	a := &domain.QuestionnaireAnswers{
		PainIntensity: p.PainIntensity,
		PainFrequency: domain.PainFrequency(p.PainFrequency),
		PainDuration:  domain.PainDuration(p.PainDuration),
		Swelling:      domain.YesNo(p.Swelling),
		Bleeding:      domain.YesNo(p.Bleeding),
		Bruising:      domain.YesNo(p.Bruising),
		Mobility:      domain.YesNo(p.Mobility),
	}
	a.Normalize()
	if a.IsEmpty() {
		return nil
	}
	return a
}

// handleClassifyInjury handles the classify_injury tool invocation
func (s *ToolServer) handleClassifyInjury(ctx context.Context, req *mcp.CallToolRequest, params ClassifyInjuryParams) (*mcp.CallToolResult, ClassifyInjuryResult, error) {
	s.logger.WithField("tool", ToolClassifyInjury).Info("Tool invoked")

	input := service.ClassifyInput{Answers: params.answers()}
	if input.Answers != nil {
		if err := input.Answers.Validate(); err != nil {
			return s.createErrorResult("Invalid answers", err), ClassifyInjuryResult{}, nil
		}
	} else if params.SignalValue != nil {
		method := domain.SignalMethod(strings.ToLower(params.SignalMethod))
		if method == "" {
			method = domain.SignalBrightness
		}
		input.Signal = &domain.ImageSignal{Method: method, Value: *params.SignalValue}
	}

	result, err := s.classifier.Classify(input)
	notice := ""
	switch {
	case errors.Is(err, domain.ErrMissingInput):
		result = &domain.SeverityResult{Tier: domain.SeverityMild, Path: domain.PathDefault}
		notice = service.NoticeNoDiagnosis
	case err != nil:
		return s.createErrorResult("Classification failed", err), ClassifyInjuryResult{}, nil
	}

	out := ClassifyInjuryResult{
		Severity:        result.Tier,
		Path:            string(result.Path),
		MatchedRules:    result.MatchedRules,
		Recommendations: service.ItemIDs(s.catalog.FilterBySeverity(result.Tier)),
		Notice:          notice,
	}

	text := fmt.Sprintf("Severity: %s (from %s)", out.Severity, out.Path)
	if len(out.MatchedRules) > 0 {
		text += fmt.Sprintf("; matched %s", strings.Join(out.MatchedRules, ", "))
	}
	if notice != "" {
		text += "; " + notice
	}
	return textResult(text), out, nil
}

// handleFilterRecommendations handles the filter_recommendations tool invocation
func (s *ToolServer) handleFilterRecommendations(ctx context.Context, req *mcp.CallToolRequest, params FilterRecommendationsParams) (*mcp.CallToolResult, FilterRecommendationsResult, error) {
	s.logger.WithField("tool", ToolFilterRecommendations).Info("Tool invoked")

	tier, err := domain.ParseSeverityTier(params.Severity)
	if err != nil {
		return s.createErrorResult("Invalid severity", err), FilterRecommendationsResult{}, nil
	}

	items := s.catalog.FilterBySeverity(tier)
	var b strings.Builder
	fmt.Fprintf(&b, "%d recommendations for %s:", len(items), tier)
	for _, item := range items {
		fmt.Fprintf(&b, "\n%s %s: %s", item.Icon, item.Title, item.Description)
	}

	return textResult(b.String()), FilterRecommendationsResult{Severity: tier, Items: items}, nil
}

// handleLocateFacilities handles the locate_facilities tool invocation.
// Lookup failures are reported as an empty list with a notice.
func (s *ToolServer) handleLocateFacilities(ctx context.Context, req *mcp.CallToolRequest, params LocateFacilitiesParams) (*mcp.CallToolResult, LocateFacilitiesResult, error) {
	s.logger.WithField("tool", ToolLocateFacilities).Info("Tool invoked")

	var center *domain.Coordinates
	switch {
	case params.Latitude != nil && params.Longitude != nil:
		center = &domain.Coordinates{Latitude: *params.Latitude, Longitude: *params.Longitude}
		if err := center.Validate(); err != nil {
			return s.createErrorResult("Invalid position", err), LocateFacilitiesResult{}, nil
		}
	case params.Latitude != nil || params.Longitude != nil:
		return s.createErrorResult("Invalid position", fmt.Errorf("latitude and longitude must be given together")), LocateFacilitiesResult{}, nil
	}

	records, err := s.locator.Locate(ctx, center)
	if err != nil {
		s.logger.WithError(err).Warn("Facility lookup failed")
		out := LocateFacilitiesResult{Facilities: []domain.FacilityRecord{}, Notice: service.NoticeFacilitiesUnavailable}
		return textResult(out.Notice), out, nil
	}
	if records == nil {
		records = []domain.FacilityRecord{}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d facilities found", len(records))
	for _, r := range records {
		fmt.Fprintf(&b, "\n%s, %s", r.Name, r.Address)
		if r.DistanceKm != nil {
			fmt.Fprintf(&b, " (%.1f km)", *r.DistanceKm)
		}
	}
	return textResult(b.String()), LocateFacilitiesResult{Facilities: records}, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// createErrorResult creates a standardized error result
func (s *ToolServer) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := message
	if err != nil {
		errorText = fmt.Sprintf("%s: %v", message, err)
	}
	s.logger.WithError(err).Warn(message)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
