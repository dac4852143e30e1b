package service

import (
	"bytes"
	"html"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"github.com/injury-assessment-server/internal/domain"
)

// mdRenderer renders catalog descriptions. Raw HTML in descriptions is
// escaped since WithUnsafe is not set.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

var recommendationCatalog = []domain.RecommendationItem{
	{
		ID:          1,
		Title:       "Immediate Self-Care",
		Description: "Apply ice to the affected area for 15-20 minutes every hour for the first 48 hours. Rest the injured area and avoid any strenuous activity.",
		Icon:        "❄️",
	},
	{
		ID:          2,
		Title:       "Pain Management",
		Description: "Take over-the-counter pain medication like ibuprofen to reduce swelling and pain. Consult with a healthcare provider if pain persists.",
		Icon:        "💊",
	},
	{
		ID:          3,
		Title:       "Rehabilitation Exercises",
		Description: "Start gentle stretching exercises once the swelling and pain have subsided. Consult with a physical therapist for proper recovery routines.",
		Icon:        "🧘‍♂️",
	},
	{
		ID:          4,
		Title:       "Hydration",
		Description: "Make sure to stay hydrated to aid in the recovery process. Drink plenty of water and avoid caffeine and alcohol.",
		Icon:        "💧",
	},
	{
		ID:          5,
		Title:       "Dietary Considerations",
		Description: "Consume a balanced diet rich in protein and vitamins to promote healing. Consider supplements if advised by your doctor.",
		Icon:        "🍎",
	},
	{
		ID:          6,
		Title:       "Sleep and Rest",
		Description: "Ensure adequate sleep and rest for optimal recovery. Avoid any activities that may aggravate the injury.",
		Icon:        "🛌",
	},
	{
		ID:          7,
		Title:       "Heat Therapy",
		Description: "After the initial 48 hours, consider using heat therapy to increase blood flow and promote healing.",
		Icon:        "♨️",
	},
	{
		ID:          8,
		Title:       "Avoid Re-injury",
		Description: "Take precautions to avoid re-injury. Use protective gear and avoid activities that may put stress on the injured area.",
		Icon:        "🦺",
	},
	{
		ID:          domain.UrgentCareItemID,
		Title:       "Red Alert - Visit Urgent Care",
		Description: "If the pain is severe or you notice an unusual symptom like numbness or tingling, visit urgent care immediately. The location of nearby urgent care centers is shown below.",
		Icon:        "🚨",
	},
}

// Item ids per tier, ascending.
var tierItems = map[domain.SeverityTier][]int{
	domain.SeverityMild:     {1, 3, 4, 5, 6},
	domain.SeverityModerate: {1, 2, 3, 4, 5, 6, 7, 8},
	domain.SeveritySevere:   {1, 2, 3, 4, 5, 6, 7, 8, 9},
}

// RecommendationCatalog is the fixed, read-only set of self-care items.
type RecommendationCatalog struct {
	items    map[int]domain.RecommendationItem
	rendered map[int]string
}

// NewRecommendationCatalog builds the catalog and pre-renders descriptions.
func NewRecommendationCatalog() *RecommendationCatalog {
	c := &RecommendationCatalog{
		items:    make(map[int]domain.RecommendationItem, len(recommendationCatalog)),
		rendered: make(map[int]string, len(recommendationCatalog)),
	}
	for _, item := range recommendationCatalog {
		c.items[item.ID] = item
		c.rendered[item.ID] = renderDescription(item.Description)
	}
	return c
}

func renderDescription(md string) string {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return "<p>" + html.EscapeString(md) + "</p>"
	}
	return buf.String()
}

// All returns every catalog item in id order.
func (c *RecommendationCatalog) All() []domain.RecommendationItem {
	return c.FilterBySeverity(domain.SeveritySevere)
}

// FilterBySeverity returns the items for tier in ascending id order. An
// unknown tier yields an empty, non-nil slice. Each call returns a new slice.
func (c *RecommendationCatalog) FilterBySeverity(tier domain.SeverityTier) []domain.RecommendationItem {
	ids := tierItems[tier]
	out := make([]domain.RecommendationItem, 0, len(ids))
	for _, id := range ids {
		item := c.items[id]
		item.HTML = c.rendered[id]
		out = append(out, item)
	}
	return out
}

// ItemIDs returns the ids selected for tier.
func ItemIDs(items []domain.RecommendationItem) []int {
	ids := make([]int, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}
