package domain

// UrgentCareItemID is the catalog item that directs the user to urgent care.
const UrgentCareItemID = 9

// RecommendationItem is one self-care recommendation card.
type RecommendationItem struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	HTML        string `json:"html,omitempty"`
}

// RecommendationResult is what the recommendations page renders.
type RecommendationResult struct {
	Severity   SeverityTier         `json:"severity"`
	Items      []RecommendationItem `json:"items"`
	Facilities []FacilityRecord     `json:"facilities,omitempty"`
	Notices    []string             `json:"notices,omitempty"`
}
