package domain

import (
	"time"
)

// EventType names a session event pushed to the browser.
type EventType string

const (
	EventAnalysisComplete EventType = "analysis_complete"
	EventSeverityUpdated  EventType = "severity_updated"
	EventSessionCleared   EventType = "session_cleared"
)

// SessionEvent is sent over the session websocket.
type SessionEvent struct {
	Type       EventType       `json:"type"`
	SessionID  string          `json:"session_id"`
	AnalysisID string          `json:"analysis_id,omitempty"`
	Result     *SeverityResult `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}
