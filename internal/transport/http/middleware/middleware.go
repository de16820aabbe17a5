package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/finfolio/folio/utils"
)

const UserIDKey = "userID"

// opaque identifier handed over by the identity provider
var userIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now()

		rqID := uuid.NewString()
		c.Request = c.Request.WithContext(utils.CtxWithRqID(c.Request.Context(), rqID))

		slog.Info(
			"start request",
			slog.String("rqID", rqID),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
		)

		defer func() {
			slog.Info(
				"request finished",
				slog.String("rqID", rqID),
				slog.Int("status", c.Writer.Status()),
				slog.String("request duration", fmt.Sprintf("%.2fs", time.Since(now).Seconds())),
			)
		}()

		c.Next()
	}
}

// Auth trusts the upstream identity provider and only checks that the opaque
// user id it supplied is well-formed.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if !userIDRe.MatchString(userID) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed X-User-ID header"})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}
