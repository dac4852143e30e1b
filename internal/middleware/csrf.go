package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"

	"github.com/injury-assessment-server/internal/domain"
)

// CSRFTokenHeader carries the token to the browser and back.
const CSRFTokenHeader = "X-CSRF-Token"

// CSRF protects form and multipart submissions. JSON requests are exempt
// since browsers cannot send them cross-site without a CORS preflight.
func CSRF(authKey []byte, secure bool, trustedOrigins []string) gin.HandlerFunc {
	protect := csrf.Protect(
		authKey,
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.RequestHeader(CSRFTokenHeader),
		csrf.TrustedOrigins(trustedOrigins),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			details := ""
			if reason := csrf.FailureReason(r); reason != nil {
				details = reason.Error()
			}
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(domain.NewAPIError(
				"CSRF_REJECTED", "CSRF token missing or invalid", details, ""))
		})),
	)

	return func(c *gin.Context) {
		if strings.HasPrefix(c.GetHeader("Content-Type"), "application/json") {
			c.Next()
			return
		}

		req := c.Request
		if !secure {
			req = csrf.PlaintextHTTPRequest(req)
		}

		passed := false
		protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Header(CSRFTokenHeader, csrf.Token(r))
		})).ServeHTTP(c.Writer, req)

		if !passed {
			c.Abort()
			return
		}
		c.Next()
	}
}
