package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yigit/libris/internal/app/models/dto"
)

const (
	CSRFCookieName = "csrftoken"
	CSRFHeaderName = "X-CSRFToken"

	csrfCookieMaxAge = 365 * 24 * 60 * 60
)

// IssueCSRFToken sets a fresh CSRF cookie and returns its value
func IssueCSRFToken(c *gin.Context, secure bool) string {
	token := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CSRFCookieName, token, csrfCookieMaxAge, "/", "", secure, false)
	return token
}

// CSRFProtect rejects unsafe requests whose X-CSRFToken header does not echo
// the csrftoken cookie
func CSRFProtect(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			c.Next()
			return
		}

		cookie, err := c.Cookie(CSRFCookieName)
		header := c.GetHeader(CSRFHeaderName)
		if err != nil || cookie == "" || subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeCSRFFailed, "CSRF verification failed").
				WithDetails("Fetch a token from /api/v1/csrf and send it in the X-CSRFToken header")
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponse(errorDetail))
			return
		}

		c.Next()
	}
}
