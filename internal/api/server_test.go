package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/suite"

	"github.com/injury-assessment-server/internal/domain"
	"github.com/injury-assessment-server/internal/locator"
	"github.com/injury-assessment-server/internal/service"
	"github.com/injury-assessment-server/internal/session"
)

type staticConfig struct {
	cfg *domain.Config
}

func (s staticConfig) GetConfig() *domain.Config                 { return s.cfg }
func (s staticConfig) GetServerConfig() *domain.ServerConfig     { return &s.cfg.Server }
func (s staticConfig) GetDatabaseConfig() *domain.DatabaseConfig { return &s.cfg.Database }
func (s staticConfig) Reload() error                             { return nil }
func (s staticConfig) Validate() error                           { return nil }
func (s staticConfig) GetDatabaseConnectionString() string       { return "" }
func (s staticConfig) GetRedisConnectionString() string          { return "" }
func (s staticConfig) IsProduction() bool                        { return false }
func (s staticConfig) IsDevelopment() bool                       { return true }

type fixedSignals struct{ value int }

func (f fixedSignals) Extract(ctx context.Context, method domain.SignalMethod, data []byte) domain.ImageSignal {
	return domain.ImageSignal{Method: method, Value: f.value}
}

var testPNG = []byte("\x89PNG\r\n\x1a\n0000")

type ServerTestSuite struct {
	suite.Suite
	server *Server
	cookie *http.Cookie
}

func (s *ServerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()

	cfg := &domain.Config{
		Server: domain.ServerConfig{RequestTimeout: 5 * time.Second},
		Session: domain.SessionConfig{
			CookieName:    "injury_session",
			TTL:           time.Hour,
			MaxImages:     5,
			MaxImageBytes: 1024,
		},
		Security: domain.SecurityConfig{RateLimit: 0, RateBurst: 1},
	}

	images, err := session.NewImageCache(50)
	s.Require().NoError(err)

	opts := locator.Options{
		RadiusMeters:  10000,
		Categories:    []string{"hospital", "health"},
		DefaultCenter: domain.Coordinates{Latitude: 37.7749, Longitude: -122.4194},
		MaxResults:    3,
	}
	svc := service.NewAssessmentService(service.AssessmentDeps{
		Store:      session.NewMemoryStore(100, time.Hour),
		Classifier: service.NewSeverityClassifier(logger, service.DefaultClassifierConfig()),
		Locator:    locator.NewStaticLocator(nil, opts),
		Signals:    fixedSignals{value: 1500},
		Images:     images,
	}, service.AssessmentConfig{MaxImages: 5, MaxImageBytes: 1024}, logger)

	s.server, err = NewServer(staticConfig{cfg: cfg}, Deps{
		Service: svc,
		Checks: map[string]HealthCheck{
			"vision": func(ctx context.Context) (string, bool) { return "loaded", true },
		},
		Logger: logger,
	})
	s.Require().NoError(err)

	w := s.do(http.MethodPost, "/api/v1/session", nil, "")
	s.Require().Equal(http.StatusCreated, w.Code)
	for _, c := range w.Result().Cookies() {
		if c.Name == "injury_session" {
			s.cookie = c
		}
	}
	s.Require().NotNil(s.cookie)
}

func (s *ServerTestSuite) do(method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}
	w := httptest.NewRecorder()
	s.server.Router().ServeHTTP(w, req)
	return w
}

func (s *ServerTestSuite) doJSON(method, path string, v interface{}) *httptest.ResponseRecorder {
	body, err := json.Marshal(v)
	s.Require().NoError(err)
	return s.do(method, path, body, "application/json")
}

func (s *ServerTestSuite) upload(files ...[]byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for i, data := range files {
		fw, err := mw.CreateFormFile("file", "photo"+string(rune('a'+i))+".png")
		s.Require().NoError(err)
		_, err = fw.Write(data)
		s.Require().NoError(err)
	}
	s.Require().NoError(mw.Close())
	return s.do(http.MethodPost, "/api/v1/session/images", buf.Bytes(), mw.FormDataContentType())
}

func decode[T any](s *ServerTestSuite, w *httptest.ResponseRecorder) T {
	var out T
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (s *ServerTestSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", nil, "")
	s.Equal(http.StatusOK, w.Code)
	body := decode[map[string]interface{}](s, w)
	s.Equal("healthy", body["status"])
	s.Equal(Version, body["version"])
}

func (s *ServerTestSuite) TestStatelessRecommendations() {
	w := s.do(http.MethodGet, "/api/v1/recommendations?severity=Mild", nil, "")
	s.Require().Equal(http.StatusOK, w.Code)
	body := decode[struct {
		Items []domain.RecommendationItem `json:"items"`
	}](s, w)
	s.Equal([]int{1, 3, 4, 5, 6}, service.ItemIDs(body.Items))

	w = s.do(http.MethodGet, "/api/v1/recommendations?severity=critical", nil, "")
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), domain.ErrCodeInvalidInput)
}

func (s *ServerTestSuite) TestFacilities() {
	w := s.do(http.MethodGet, "/api/v1/facilities?lat=37.7749&lng=-122.4194", nil, "")
	s.Require().Equal(http.StatusOK, w.Code)
	body := decode[struct {
		Facilities []domain.FacilityRecord `json:"facilities"`
	}](s, w)
	s.Len(body.Facilities, 3)

	w = s.do(http.MethodGet, "/api/v1/facilities?lat=37.7", nil, "")
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/facilities?lat=95&lng=0", nil, "")
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *ServerTestSuite) TestSessionRequired() {
	s.cookie = nil
	w := s.do(http.MethodGet, "/api/v1/session", nil, "")
	s.Equal(http.StatusNotFound, w.Code)
	s.Contains(w.Body.String(), domain.ErrCodeSessionNotFound)
}

func (s *ServerTestSuite) TestQuestionnaireToRecommendations() {
	w := s.doJSON(http.MethodPost, "/api/v1/session/questionnaire", map[string]interface{}{
		"painIntensity": 7,
		"bleeding":      "no",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	result := decode[domain.SeverityResult](s, w)
	s.Equal(domain.SeveritySevere, result.Tier)

	w = s.do(http.MethodGet, "/api/v1/session/severity", nil, "")
	s.Contains(w.Body.String(), `"severe"`)

	w = s.do(http.MethodGet, "/api/v1/session/recommendations", nil, "")
	s.Require().Equal(http.StatusOK, w.Code)
	recs := decode[domain.RecommendationResult](s, w)
	s.Contains(service.ItemIDs(recs.Items), domain.UrgentCareItemID)
	s.NotEmpty(recs.Facilities)
}

func (s *ServerTestSuite) TestQuestionnaireValidation() {
	w := s.doJSON(http.MethodPost, "/api/v1/session/questionnaire", map[string]interface{}{
		"painIntensity": 12,
	})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), domain.ErrCodeValidation)

	w = s.doJSON(http.MethodPost, "/api/v1/session/questionnaire", map[string]interface{}{})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), domain.ErrCodeValidation)

	w = s.do(http.MethodPost, "/api/v1/session/questionnaire", []byte("{"), "application/json")
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *ServerTestSuite) TestImageFlow() {
	w := s.upload(testPNG, testPNG)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	uploaded := decode[struct {
		Images []domain.ImageRef `json:"images"`
	}](s, w)
	s.Require().Len(uploaded.Images, 2)

	w = s.doJSON(http.MethodPut, "/api/v1/session/images/selection", selectionRequest{IDs: []string{uploaded.Images[1].ID}})
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/v1/session/analysis?wait=true", nil, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	result := decode[service.AnalysisResult](s, w)
	s.Equal(1, result.Images)
	s.True(result.Applied)
	s.Equal(domain.SeveritySevere, result.Result.Tier)

	w = s.do(http.MethodGet, "/api/v1/session", nil, "")
	snap := decode[domain.SessionSnapshot](s, w)
	s.Equal(domain.SeveritySevere, snap.Severity)
	s.Len(snap.Images, 2)
	s.Equal([]string{uploaded.Images[1].ID}, snap.SelectedImages)
}

func (s *ServerTestSuite) TestUploadRejections() {
	w := s.upload([]byte("GIF? no, plain text"))
	s.Equal(http.StatusUnsupportedMediaType, w.Code)

	w = s.upload(append(append([]byte{}, testPNG...), make([]byte, 2048)...))
	s.Equal(http.StatusRequestEntityTooLarge, w.Code)

	w = s.do(http.MethodPost, "/api/v1/session/images", nil, "")
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), domain.ErrCodeNoFileUploaded)

	w = s.doJSON(http.MethodPut, "/api/v1/session/images/selection", selectionRequest{IDs: []string{"nope"}})
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *ServerTestSuite) TestAnalysisAsync() {
	s.Require().Equal(http.StatusCreated, s.upload(testPNG).Code)

	w := s.do(http.MethodPost, "/api/v1/session/analysis", nil, "")
	s.Require().Equal(http.StatusAccepted, w.Code)
	s.Contains(w.Body.String(), "analysis_id")

	s.Eventually(func() bool {
		w := s.do(http.MethodGet, "/api/v1/session/severity", nil, "")
		return strings.Contains(w.Body.String(), `"found":true`)
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *ServerTestSuite) TestAnalysisWithoutImages() {
	w := s.do(http.MethodPost, "/api/v1/session/analysis?wait=true", nil, "")
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *ServerTestSuite) TestResetAndGoHome() {
	w := s.doJSON(http.MethodPost, "/api/v1/session/questionnaire", map[string]interface{}{"painIntensity": 5})
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.doJSON(http.MethodPost, "/api/v1/session/reset", resetRequest{Reason: domain.ClearReload})
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/session/recommendations", nil, "")
	recs := decode[domain.RecommendationResult](s, w)
	s.Equal(domain.SeverityMild, recs.Severity)
	s.Contains(recs.Notices, service.NoticeNoDiagnosis)

	w = s.do(http.MethodDelete, "/api/v1/session", nil, "")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"home"`)

	w = s.doJSON(http.MethodPost, "/api/v1/session/reset", resetRequest{Reason: "logout"})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *ServerTestSuite) TestCSRFKeyLength() {
	logger, _ := test.NewNullLogger()
	cfg := &domain.Config{Security: domain.SecurityConfig{CSRFEnabled: true, CSRFKey: "short"}}
	_, err := NewServer(staticConfig{cfg: cfg}, Deps{Logger: logger})
	s.Error(err)
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}
