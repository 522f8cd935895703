package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/lireddit"
	"github.com/gin-gonic/gin"
)

// SessionResolver is the part of lireddit.Engine the Session middleware uses.
type SessionResolver interface {
	CookieName() string
	ResolveSession(ctx context.Context, cookieValue string) (lireddit.SessionInfo, error)
	ClearSessionCookie() *http.Cookie
}

// Session attaches the session named by the request cookie to the request
// context. Requests without a valid session pass through unchanged; a cookie
// that no longer resolves is cleared. A session backend failure is logged and
// the request continues without a session.
func Session(resolver SessionResolver, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		cookie, err := c.Request.Cookie(resolver.CookieName())
		if err != nil || cookie.Value == "" {
			c.Next()
			return
		}

		info, err := resolver.ResolveSession(c.Request.Context(), cookie.Value)
		switch {
		case err == nil:
			c.Request = c.Request.WithContext(lireddit.WithSession(c.Request.Context(), info))
		case errors.Is(err, lireddit.ErrUnauthorized):
			http.SetCookie(c.Writer, resolver.ClearSessionCookie())
		default:
			logger.WarnContext(c.Request.Context(), "session resolve failed",
				"client_ip", c.ClientIP(),
				"error", err,
			)
		}
		c.Next()
	}
}
