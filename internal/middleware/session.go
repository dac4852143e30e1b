package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionIDKey is the gin context key holding the session id from the cookie.
const SessionIDKey = "session_id"

// SessionCookie names the browser session cookie.
type SessionCookie struct {
	Name   string
	Secure bool
	MaxAge int
}

// Load puts the session id from the cookie into the context. Malformed ids
// are ignored.
func (s SessionCookie) Load() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, err := c.Cookie(s.Name); err == nil {
			if id, err := uuid.Parse(raw); err == nil {
				c.Set(SessionIDKey, id.String())
			}
		}
		c.Next()
	}
}

// Issue writes the cookie for sessionID.
func (s SessionCookie) Issue(c *gin.Context, sessionID string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.Name, sessionID, s.MaxAge, "/", "", s.Secure, true)
	c.Set(SessionIDKey, sessionID)
}

// SessionID returns the session id loaded for this request.
func SessionID(c *gin.Context) (string, bool) {
	id := c.GetString(SessionIDKey)
	return id, id != ""
}
