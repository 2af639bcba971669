package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	userHeader = "X-User-ID"
	userKey    = "userID"

	// AnonymousPrefix marks owner keys minted here for callers without
	// an account. It is the only anonymity signal; nothing sniffs id
	// shapes.
	AnonymousPrefix = "anon-"
)

// identity resolves the caller's owner key from the one supported
// header. A missing header mints a fresh anonymous id, echoed back so
// the client can keep using it.
func identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(userHeader))
		if userID == "" {
			userID = AnonymousPrefix + uuid.NewString()
		}
		c.Set(userKey, userID)
		c.Header(userHeader, userID)
		c.Next()
	}
}

// IsAnonymous reports whether an owner key belongs to an anonymous
// session.
func IsAnonymous(userID string) bool {
	return strings.HasPrefix(userID, AnonymousPrefix)
}

func callerID(c *gin.Context) string {
	return c.GetString(userKey)
}
