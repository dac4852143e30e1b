package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/injury-assessment-server/internal/domain"
	"github.com/injury-assessment-server/internal/session"
)

// Notices attached to recommendation results.
const (
	NoticeNoDiagnosis           = "No diagnosis data found"
	NoticeFacilitiesUnavailable = "Nearby urgent care locations could not be loaded"
)

var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
}

// SignalSource extracts an image signal with a given method. A source that
// is not ready returns the fallback signal.
type SignalSource interface {
	Extract(ctx context.Context, method domain.SignalMethod, data []byte) domain.ImageSignal
}

// AssessmentConfig tunes the workflow.
type AssessmentConfig struct {
	MaxImages       int
	MaxImageBytes   int64
	SignalMethod    domain.SignalMethod
	AnalysisTimeout time.Duration
}

// AssessmentService runs the wizard: uploads, questionnaire, image analysis,
// recommendations and session clears.
type AssessmentService struct {
	store      domain.SessionStore
	classifier *SeverityClassifier
	catalog    *RecommendationCatalog
	locator    domain.FacilityLocator
	signals    SignalSource
	images     *session.ImageCache
	notifier   domain.EventPublisher
	cfg        AssessmentConfig
	logger     *logrus.Logger

	inflight sync.WaitGroup
}

// AssessmentDeps are the collaborators of the workflow. Notifier may be nil.
type AssessmentDeps struct {
	Store      domain.SessionStore
	Classifier *SeverityClassifier
	Catalog    *RecommendationCatalog
	Locator    domain.FacilityLocator
	Signals    SignalSource
	Images     *session.ImageCache
	Notifier   domain.EventPublisher
}

// NewAssessmentService wires the workflow.
func NewAssessmentService(deps AssessmentDeps, cfg AssessmentConfig, logger *logrus.Logger) *AssessmentService {
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = 10
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = 6 << 20
	}
	if !cfg.SignalMethod.IsValid() {
		cfg.SignalMethod = domain.SignalBrightness
	}
	if cfg.AnalysisTimeout <= 0 {
		cfg.AnalysisTimeout = 30 * time.Second
	}
	if deps.Catalog == nil {
		deps.Catalog = NewRecommendationCatalog()
	}
	return &AssessmentService{
		store:      deps.Store,
		classifier: deps.Classifier,
		catalog:    deps.Catalog,
		locator:    deps.Locator,
		signals:    deps.Signals,
		images:     deps.Images,
		notifier:   deps.Notifier,
		cfg:        cfg,
		logger:     logger,
	}
}

func (s *AssessmentService) session(sessionID string) *session.Session {
	return session.New(s.store, sessionID, s.logger)
}

func (s *AssessmentService) publish(sessionID string, event domain.SessionEvent) {
	if s.notifier == nil {
		return
	}
	event.SessionID = sessionID
	event.Timestamp = time.Now().UTC()
	s.notifier.Publish(sessionID, event)
}

// StartSession allocates a new session id.
func (s *AssessmentService) StartSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if _, err := s.store.Generation(ctx, id); err != nil {
		return "", fmt.Errorf("session store unavailable: %w", err)
	}
	s.logger.WithField("session_id", id).Info("Started assessment session")
	return id, nil
}

// Snapshot returns every slot of the session.
func (s *AssessmentService) Snapshot(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	return s.session(sessionID).Snapshot(ctx)
}

// UploadImage validates and stores one image, appending its reference to
// the injuryImages slot.
func (s *AssessmentService) UploadImage(ctx context.Context, sessionID, name string, data []byte) (*domain.ImageRef, error) {
	if len(data) == 0 {
		return nil, domain.NewValidationError("file", "file is empty", name)
	}
	if int64(len(data)) > s.cfg.MaxImageBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", domain.ErrImageTooLarge, len(data), s.cfg.MaxImageBytes)
	}
	contentType := http.DetectContentType(data)
	if !allowedImageTypes[contentType] {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedImage, contentType)
	}

	sess := s.session(sessionID)
	refs := sess.Images(ctx)
	if len(refs) >= s.cfg.MaxImages {
		return nil, domain.NewValidationError("file", fmt.Sprintf("at most %d images per session", s.cfg.MaxImages), len(refs))
	}

	ref := domain.ImageRef{
		ID:          uuid.NewString(),
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		UploadedAt:  time.Now().UTC(),
	}
	s.images.Put(sessionID, ref.ID, data)

	if err := sess.SetImages(ctx, append(refs, ref)); err != nil {
		return nil, fmt.Errorf("failed to record image: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"session_id":   sessionID,
		"image_id":     ref.ID,
		"content_type": contentType,
		"size":         ref.Size,
	}).Info("Image uploaded")

	return &ref, nil
}

// SelectImages records which uploaded images should be analyzed.
func (s *AssessmentService) SelectImages(ctx context.Context, sessionID string, ids []string) ([]string, error) {
	sess := s.session(sessionID)
	known := make(map[string]bool)
	for _, ref := range sess.Images(ctx) {
		known[ref.ID] = true
	}

	selected := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !known[id] {
			return nil, fmt.Errorf("%w: %s", domain.ErrImageNotFound, id)
		}
		if !seen[id] {
			seen[id] = true
			selected = append(selected, id)
		}
	}

	if err := sess.SetSelectedImages(ctx, selected); err != nil {
		return nil, fmt.Errorf("failed to record selection: %w", err)
	}
	return selected, nil
}

// SubmitQuestionnaire stores the answers, classifies them and writes the
// resulting tier.
func (s *AssessmentService) SubmitQuestionnaire(ctx context.Context, sessionID string, answers *domain.QuestionnaireAnswers) (*domain.SeverityResult, error) {
	if answers == nil {
		return nil, domain.NewValidationError("answers", "answers are required", nil)
	}
	answers.Normalize()
	if answers.IsEmpty() {
		return nil, domain.NewValidationError("answers", "at least one answer is required", nil)
	}
	if err := answers.Validate(); err != nil {
		return nil, err
	}

	sess := s.session(sessionID)
	gen, err := sess.Generation(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	result, err := s.classifier.Classify(ClassifyInput{Answers: answers})
	if err != nil {
		return nil, err
	}

	written, err := sess.SetAssessment(ctx, gen, answers, result.Tier)
	if err != nil {
		return nil, fmt.Errorf("failed to store assessment: %w", err)
	}
	if !written {
		return nil, domain.ErrStaleGeneration
	}

	s.publish(sessionID, domain.SessionEvent{Type: domain.EventSeverityUpdated, Result: result})
	return result, nil
}

// AnalysisResult is the outcome of an image analysis.
type AnalysisResult struct {
	AnalysisID string                 `json:"analysis_id"`
	Images     int                    `json:"images"`
	Signal     domain.ImageSignal     `json:"signal"`
	Result     *domain.SeverityResult `json:"result"`
	// Applied is false when stored questionnaire answers took precedence.
	Applied bool `json:"applied"`
}

// Analysis is a running image analysis. Result is valid once Done is closed.
type Analysis struct {
	ID     string
	done   chan struct{}
	result *AnalysisResult
	err    error
}

// Done is closed when the analysis has finished.
func (a *Analysis) Done() <-chan struct{} {
	return a.done
}

// Result returns the outcome. It blocks until the analysis finishes.
func (a *Analysis) Result() (*AnalysisResult, error) {
	<-a.done
	return a.result, a.err
}

// Wait blocks until the analysis finishes or ctx ends.
func (a *Analysis) Wait(ctx context.Context) (*AnalysisResult, error) {
	select {
	case <-a.done:
		return a.result, a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AnalyzeImages starts analysis of the selected images (all uploaded images
// when nothing is selected). The severity slot is written only when no
// questionnaire answers are stored and the session was not cleared while
// the analysis ran.
func (s *AssessmentService) AnalyzeImages(ctx context.Context, sessionID string) (*Analysis, error) {
	sess := s.session(sessionID)

	ids := sess.SelectedImages(ctx)
	if len(ids) == 0 {
		for _, ref := range sess.Images(ctx) {
			ids = append(ids, ref.ID)
		}
	}

	var blobs [][]byte
	for _, id := range ids {
		if data, ok := s.images.Get(sessionID, id); ok {
			blobs = append(blobs, data)
		}
	}
	if len(blobs) == 0 {
		return nil, fmt.Errorf("%w: no images to analyze", domain.ErrMissingInput)
	}

	gen, err := sess.Generation(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	analysis := &Analysis{ID: uuid.NewString(), done: make(chan struct{})}
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.AnalysisTimeout)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		defer close(analysis.done)

		analysis.result, analysis.err = s.runAnalysis(runCtx, sessionID, analysis.ID, gen, blobs)

		event := domain.SessionEvent{Type: domain.EventAnalysisComplete, AnalysisID: analysis.ID}
		if analysis.err != nil {
			event.Error = analysis.err.Error()
		} else {
			event.Result = analysis.result.Result
		}
		s.publish(sessionID, event)
	}()

	return analysis, nil
}

func (s *AssessmentService) runAnalysis(ctx context.Context, sessionID, analysisID string, gen int64, blobs [][]byte) (*AnalysisResult, error) {
	signal := domain.ImageSignal{Method: s.cfg.SignalMethod, Fallback: true}
	for i, data := range blobs {
		sig := s.signals.Extract(ctx, s.cfg.SignalMethod, data)
		if i == 0 || sig.Value > signal.Value || (signal.Fallback && !sig.Fallback) {
			signal = sig
		}
	}

	result, err := s.classifier.ClassifySignal(signal)
	if err != nil {
		return nil, err
	}

	out := &AnalysisResult{
		AnalysisID: analysisID,
		Images:     len(blobs),
		Signal:     signal,
		Result:     result,
	}

	sess := s.session(sessionID)
	written, err := sess.SetImageSeverity(ctx, gen, result.Tier)
	if err != nil {
		return nil, fmt.Errorf("failed to store severity: %w", err)
	}
	if !written {
		current, err := sess.Generation(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read session: %w", err)
		}
		if current != gen {
			s.logger.WithFields(logrus.Fields{
				"session_id":  sessionID,
				"analysis_id": analysisID,
			}).Info("Session cleared during analysis, result discarded")
			return nil, domain.ErrStaleGeneration
		}
		s.logger.WithField("session_id", sessionID).Info("Questionnaire answers present, image result not applied")
		return out, nil
	}
	out.Applied = true

	s.logger.WithFields(result.LogFields()).WithFields(logrus.Fields{
		"session_id":  sessionID,
		"analysis_id": analysisID,
		"images":      len(blobs),
	}).Info("Image analysis applied")

	return out, nil
}

// Severity returns the stored tier of the session.
func (s *AssessmentService) Severity(ctx context.Context, sessionID string) (domain.SeverityTier, bool) {
	return s.session(sessionID).Severity(ctx)
}

// Recommendations builds the recommendations page for the session. The tier
// comes from the severity slot, else from stored answers, else it defaults
// to mild with a notice. Facilities are looked up only for severe.
func (s *AssessmentService) Recommendations(ctx context.Context, sessionID string, center *domain.Coordinates) (*domain.RecommendationResult, error) {
	sess := s.session(sessionID)
	result := &domain.RecommendationResult{}

	tier, ok := sess.Severity(ctx)
	if !ok {
		if answers := sess.Answers(ctx); answers != nil {
			classified, err := s.classifier.Classify(ClassifyInput{Answers: answers})
			if err == nil {
				tier, ok = classified.Tier, true
			}
		}
	}
	if !ok {
		tier = domain.SeverityMild
		result.Notices = append(result.Notices, NoticeNoDiagnosis)
	}

	result.Severity = tier
	result.Items = s.catalog.FilterBySeverity(tier)

	if tier == domain.SeveritySevere {
		result.Facilities, result.Notices = s.facilitiesFor(ctx, center, result.Notices)
	}
	return result, nil
}

// RecommendationsFor is the stateless filter.
func (s *AssessmentService) RecommendationsFor(tier domain.SeverityTier) []domain.RecommendationItem {
	return s.catalog.FilterBySeverity(tier)
}

// Facilities runs the locator. Failures yield an empty list and a notice.
func (s *AssessmentService) Facilities(ctx context.Context, center *domain.Coordinates) ([]domain.FacilityRecord, []string) {
	return s.facilitiesFor(ctx, center, nil)
}

func (s *AssessmentService) facilitiesFor(ctx context.Context, center *domain.Coordinates, notices []string) ([]domain.FacilityRecord, []string) {
	if s.locator == nil {
		return []domain.FacilityRecord{}, append(notices, NoticeFacilitiesUnavailable)
	}
	records, err := s.locator.Locate(ctx, center)
	if err != nil {
		s.logger.WithError(err).Warn("Facility lookup failed, returning no facilities")
		return []domain.FacilityRecord{}, append(notices, NoticeFacilitiesUnavailable)
	}
	if records == nil {
		records = []domain.FacilityRecord{}
	}
	return records, notices
}

// Reset clears every slot of the session and drops its cached images.
func (s *AssessmentService) Reset(ctx context.Context, sessionID string, reason domain.ClearReason) error {
	if err := s.store.ClearAll(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	purged := s.images.Purge(sessionID)

	s.logger.WithFields(logrus.Fields{
		"session_id":     sessionID,
		"reason":         reason,
		"images_removed": purged,
	}).Info("Session cleared")

	s.publish(sessionID, domain.SessionEvent{Type: domain.EventSessionCleared})
	return nil
}

// Wait blocks until in-flight analyses finish or ctx ends.
func (s *AssessmentService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
