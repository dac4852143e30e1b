package domain

import (
	"time"
)

// Slot names a value held in a session. The names are shared with the
// browser pages and must not change.
type Slot string

const (
	SlotInjuryImages         Slot = "injuryImages"
	SlotSelectedInjuryImages Slot = "selectedInjuryImages"
	SlotDiagnosisData        Slot = "injuryDiagnosisData"
	SlotSeverity             Slot = "injurySeverity"

	// SlotSelectedImagesAlias is accepted on input for the selection slot.
	SlotSelectedImagesAlias Slot = "selectedImages"
)

// AllSlots lists the slots cleared together by ClearAll.
var AllSlots = []Slot{
	SlotInjuryImages,
	SlotSelectedInjuryImages,
	SlotDiagnosisData,
	SlotSeverity,
}

// Canonical maps the input alias onto the canonical slot name.
func (s Slot) Canonical() Slot {
	if s == SlotSelectedImagesAlias {
		return SlotSelectedInjuryImages
	}
	return s
}

// IsValid reports whether the slot (after aliasing) is known.
func (s Slot) IsValid() bool {
	switch s.Canonical() {
	case SlotInjuryImages, SlotSelectedInjuryImages, SlotDiagnosisData, SlotSeverity:
		return true
	default:
		return false
	}
}

// String returns the slot name.
func (s Slot) String() string {
	return string(s)
}

// ClearReason records why a session was cleared.
type ClearReason string

const (
	ClearGoHome ClearReason = "home"
	ClearReload ClearReason = "reload"
)

// ImageRef is the session-visible reference to an uploaded image. The bytes
// themselves are held in a bounded in-memory cache and never persisted.
type ImageRef struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// SessionSnapshot is the full content of a session, absent slots omitted.
type SessionSnapshot struct {
	SessionID      string                `json:"session_id"`
	Generation     int64                 `json:"generation"`
	Images         []ImageRef            `json:"injuryImages,omitempty"`
	SelectedImages []string              `json:"selectedInjuryImages,omitempty"`
	Answers        *QuestionnaireAnswers `json:"injuryDiagnosisData,omitempty"`
	Severity       SeverityTier          `json:"injurySeverity,omitempty"`
}
