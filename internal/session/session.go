package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/injury-assessment-server/internal/domain"
)

// Session is a typed view over one session's slots. Reads never fail: a
// backend or decode error is logged and the slot is reported absent.
type Session struct {
	ID     string
	store  domain.SessionStore
	logger *logrus.Logger
}

// New returns a typed view of sessionID in store.
func New(store domain.SessionStore, sessionID string, logger *logrus.Logger) *Session {
	return &Session{ID: sessionID, store: store, logger: logger}
}

func (s *Session) readJSON(ctx context.Context, slot domain.Slot, v interface{}) bool {
	raw, found, err := s.store.Get(ctx, s.ID, slot)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"session_id": s.ID,
			"slot":       slot,
			"error":      err,
		}).Warn("Session read failed, treating slot as absent")
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		s.logger.WithFields(logrus.Fields{
			"session_id": s.ID,
			"slot":       slot,
			"error":      err,
		}).Warn("Malformed session slot, treating as absent")
		return false
	}
	return true
}

func (s *Session) writeJSON(ctx context.Context, slot domain.Slot, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode slot %s: %w", slot, err)
	}
	return s.store.Set(ctx, s.ID, slot, raw)
}

// Images returns the uploaded image refs.
func (s *Session) Images(ctx context.Context) []domain.ImageRef {
	var refs []domain.ImageRef
	if !s.readJSON(ctx, domain.SlotInjuryImages, &refs) {
		return nil
	}
	return refs
}

// SetImages replaces the uploaded image refs.
func (s *Session) SetImages(ctx context.Context, refs []domain.ImageRef) error {
	return s.writeJSON(ctx, domain.SlotInjuryImages, refs)
}

// SelectedImages returns the ids chosen for analysis.
func (s *Session) SelectedImages(ctx context.Context) []string {
	var ids []string
	if !s.readJSON(ctx, domain.SlotSelectedInjuryImages, &ids) {
		return nil
	}
	return ids
}

// SetSelectedImages replaces the selection.
func (s *Session) SetSelectedImages(ctx context.Context, ids []string) error {
	return s.writeJSON(ctx, domain.SlotSelectedInjuryImages, ids)
}

// Answers returns the questionnaire answers, or nil.
func (s *Session) Answers(ctx context.Context) *domain.QuestionnaireAnswers {
	var answers domain.QuestionnaireAnswers
	if !s.readJSON(ctx, domain.SlotDiagnosisData, &answers) {
		return nil
	}
	return &answers
}

// SetAnswers stores the questionnaire answers.
func (s *Session) SetAnswers(ctx context.Context, answers *domain.QuestionnaireAnswers) error {
	return s.writeJSON(ctx, domain.SlotDiagnosisData, answers)
}

// Severity returns the stored tier. The slot holds the bare tier string;
// anything else is reported absent.
func (s *Session) Severity(ctx context.Context) (domain.SeverityTier, bool) {
	raw, found, err := s.store.Get(ctx, s.ID, domain.SlotSeverity)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"session_id": s.ID,
			"error":      err,
		}).Warn("Session read failed, treating severity as absent")
		return "", false
	}
	if !found {
		return "", false
	}
	tier, err := domain.ParseSeverityTier(string(raw))
	if err != nil {
		s.logger.WithField("session_id", s.ID).Warn("Stored severity is not a known tier")
		return "", false
	}
	return tier, true
}

// SetSeverity writes the tier only if the session has not been cleared since
// generation was read. It reports whether the write happened.
func (s *Session) SetSeverity(ctx context.Context, generation int64, tier domain.SeverityTier) (bool, error) {
	if !tier.IsValid() {
		return false, fmt.Errorf("%w: %q", domain.ErrInvalidSeverity, tier)
	}
	return s.store.SetIfGeneration(ctx, s.ID, generation, domain.SlotSeverity, []byte(tier))
}

// SetAssessment stores answers together with the tier derived from them. Both
// are written only if the session has not been cleared since generation was
// read.
func (s *Session) SetAssessment(ctx context.Context, generation int64, answers *domain.QuestionnaireAnswers, tier domain.SeverityTier) (bool, error) {
	if !tier.IsValid() {
		return false, fmt.Errorf("%w: %q", domain.ErrInvalidSeverity, tier)
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return false, fmt.Errorf("failed to encode slot %s: %w", domain.SlotDiagnosisData, err)
	}
	return s.store.WriteIf(ctx, s.ID, domain.ConditionalWrite{
		Generation: generation,
		Values: map[domain.Slot][]byte{
			domain.SlotDiagnosisData: raw,
			domain.SlotSeverity:      []byte(tier),
		},
	})
}

// SetImageSeverity writes a tier computed from images. The write is refused
// when the session was cleared since generation was read or when
// questionnaire answers are stored.
func (s *Session) SetImageSeverity(ctx context.Context, generation int64, tier domain.SeverityTier) (bool, error) {
	if !tier.IsValid() {
		return false, fmt.Errorf("%w: %q", domain.ErrInvalidSeverity, tier)
	}
	return s.store.WriteIf(ctx, s.ID, domain.ConditionalWrite{
		Generation: generation,
		Values:     map[domain.Slot][]byte{domain.SlotSeverity: []byte(tier)},
		Absent:     []domain.Slot{domain.SlotDiagnosisData},
	})
}

// Generation returns the session generation.
func (s *Session) Generation(ctx context.Context) (int64, error) {
	return s.store.Generation(ctx, s.ID)
}

// Clear removes every slot.
func (s *Session) Clear(ctx context.Context) error {
	return s.store.ClearAll(ctx, s.ID)
}

// Snapshot returns all slots at once.
func (s *Session) Snapshot(ctx context.Context) (*domain.SessionSnapshot, error) {
	gen, err := s.Generation(ctx)
	if err != nil {
		return nil, err
	}
	severity, _ := s.Severity(ctx)
	return &domain.SessionSnapshot{
		SessionID:      s.ID,
		Generation:     gen,
		Images:         s.Images(ctx),
		SelectedImages: s.SelectedImages(ctx),
		Answers:        s.Answers(ctx),
		Severity:       severity,
	}, nil
}
