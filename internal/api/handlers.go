package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/injury-assessment-server/internal/domain"
	"github.com/injury-assessment-server/internal/middleware"
)

type selectionRequest struct {
	IDs []string `json:"ids"`
}

type resetRequest struct {
	Reason domain.ClearReason `json:"reason"`
}

func (s *Server) respondError(c *gin.Context, status int, code, message, details string) {
	c.AbortWithStatusJSON(status, domain.NewAPIError(code, message, details, c.GetString(middleware.CorrelationIDKey)))
}

// fail maps a workflow error onto an API error.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case domain.IsValidationError(err):
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid input", err.Error())
	case errors.Is(err, domain.ErrImageTooLarge):
		s.respondError(c, http.StatusRequestEntityTooLarge, domain.ErrCodeUnsupportedImage, "Image too large", err.Error())
	case errors.Is(err, domain.ErrUnsupportedImage):
		s.respondError(c, http.StatusUnsupportedMediaType, domain.ErrCodeUnsupportedImage, "Unsupported image type", err.Error())
	case errors.Is(err, domain.ErrImageNotFound):
		s.respondError(c, http.StatusNotFound, domain.ErrCodeImageNotFound, "Image not found", err.Error())
	case errors.Is(err, domain.ErrMissingInput):
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Nothing to analyze", err.Error())
	case errors.Is(err, domain.ErrStaleGeneration):
		s.respondError(c, http.StatusConflict, domain.ErrCodeSessionCleared, "Session was cleared", err.Error())
	default:
		s.logger.WithError(err).WithField("correlation_id", c.GetString(middleware.CorrelationIDKey)).Error("Request failed")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeInternalServer, "Internal server error", "")
	}
}

func (s *Server) requireSession(c *gin.Context) {
	if _, ok := middleware.SessionID(c); !ok {
		s.respondError(c, http.StatusNotFound, domain.ErrCodeSessionNotFound, "No active session", "start one with POST /api/v1/session")
		return
	}
	c.Next()
}

func sessionID(c *gin.Context) string {
	id, _ := middleware.SessionID(c)
	return id
}

// parseCenter reads optional lat/lng query parameters. Both or neither must
// be present.
func parseCenter(c *gin.Context) (*domain.Coordinates, error) {
	latRaw, lngRaw := c.Query("lat"), c.Query("lng")
	if latRaw == "" && lngRaw == "" {
		return nil, nil
	}
	if latRaw == "" || lngRaw == "" {
		return nil, domain.NewValidationError("lat,lng", "both lat and lng are required", nil)
	}
	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return nil, domain.NewValidationError("lat", "not a number", latRaw)
	}
	lng, err := strconv.ParseFloat(lngRaw, 64)
	if err != nil {
		return nil, domain.NewValidationError("lng", "not a number", lngRaw)
	}
	center := domain.Coordinates{Latitude: lat, Longitude: lng}
	if err := center.Validate(); err != nil {
		return nil, domain.NewValidationError("lat,lng", err.Error(), center.String())
	}
	return &center, nil
}

func (s *Server) handleRecommendations(c *gin.Context) {
	tier, err := domain.ParseSeverityTier(c.Query("severity"))
	if err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "severity must be mild, moderate or severe", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"severity": tier,
		"items":    s.service.RecommendationsFor(tier),
	})
}

func (s *Server) handleFacilities(c *gin.Context) {
	center, err := parseCenter(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	facilities, notices := s.service.Facilities(c.Request.Context(), center)
	c.JSON(http.StatusOK, gin.H{
		"facilities": facilities,
		"notices":    notices,
	})
}

func (s *Server) handleStartSession(c *gin.Context) {
	id, err := s.service.StartSession(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.cookie.Issue(c, id)
	c.JSON(http.StatusCreated, gin.H{"session_id": id})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	snap, err := s.service.Snapshot(c.Request.Context(), sessionID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleGoHome(c *gin.Context) {
	s.reset(c, domain.ClearGoHome)
}

func (s *Server) handleReset(c *gin.Context) {
	reason := domain.ClearReload
	var req resetRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Invalid request body", err.Error())
			return
		}
		switch req.Reason {
		case "":
		case domain.ClearGoHome, domain.ClearReload:
			reason = req.Reason
		default:
			s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "reason must be home or reload", string(req.Reason))
			return
		}
	}
	s.reset(c, reason)
}

func (s *Server) reset(c *gin.Context, reason domain.ClearReason) {
	if err := s.service.Reset(c.Request.Context(), sessionID(c), reason); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true, "reason": reason})
}

func (s *Server) handleUploadImages(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeNoFileUploaded, "No file uploaded", err.Error())
		return
	}
	files := form.File["file"]
	if len(files) == 0 {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeNoFileUploaded, "No file uploaded", "")
		return
	}

	refs := make([]domain.ImageRef, 0, len(files))
	for _, fh := range files {
		data, err := s.readUpload(fh)
		if err != nil {
			s.fail(c, err)
			return
		}
		ref, err := s.service.UploadImage(c.Request.Context(), sessionID(c), fh.Filename, data)
		if err != nil {
			s.fail(c, err)
			return
		}
		refs = append(refs, *ref)
	}

	c.JSON(http.StatusCreated, gin.H{"images": refs})
}

// readUpload reads at most one byte past the cap so oversize files are
// rejected without buffering them whole.
func (s *Server) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > s.maxUpload {
		return nil, fmt.Errorf("%w: %s is %d bytes", domain.ErrImageTooLarge, fh.Filename, fh.Size)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxUpload+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	return data, nil
}

func (s *Server) handleSelectImages(c *gin.Context) {
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Invalid request body", err.Error())
		return
	}
	selected, err := s.service.SelectImages(c.Request.Context(), sessionID(c), req.IDs)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"selected": selected})
}

func (s *Server) handleQuestionnaire(c *gin.Context) {
	var answers domain.QuestionnaireAnswers
	if err := c.ShouldBindJSON(&answers); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Invalid request body", err.Error())
		return
	}
	result, err := s.service.SubmitQuestionnaire(c.Request.Context(), sessionID(c), &answers)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleAnalysis(c *gin.Context) {
	analysis, err := s.service.AnalyzeImages(c.Request.Context(), sessionID(c))
	if err != nil {
		s.fail(c, err)
		return
	}

	if c.Query("wait") != "true" {
		c.JSON(http.StatusAccepted, gin.H{"analysis_id": analysis.ID})
		return
	}

	result, err := analysis.Wait(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSeverity(c *gin.Context) {
	tier, ok := s.service.Severity(c.Request.Context(), sessionID(c))
	if !ok {
		c.JSON(http.StatusOK, gin.H{"severity": nil, "found": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"severity": tier, "found": true})
}

func (s *Server) handleSessionRecommendations(c *gin.Context) {
	center, err := parseCenter(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	result, err := s.service.Recommendations(c.Request.Context(), sessionID(c), center)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleEvents(c *gin.Context) {
	if s.hub == nil {
		s.respondError(c, http.StatusNotFound, domain.ErrCodeInvalidInput, "Events are not enabled", "")
		return
	}
	s.hub.ServeWS(c.Writer, c.Request, sessionID(c))
}
