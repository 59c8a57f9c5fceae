package middleware

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/course-identity/pkg/response"
)

// AllowPrivateIP returns a middleware function that allows requests
// from private IP addresses. It checks if the client's IP is a private
func AllowPrivateIP() AllowFunc {
	return func(c *gin.Context) bool {
		ip := ipFromCtx(c)
		parsed := net.ParseIP(ip)
		if parsed == nil {
			return false
		}
		// 10.0.0.0/8, 172.16/12, 192.168/16, loopback
		private := parsed.IsLoopback() ||
			parsed.IsPrivate()
		return private
	}
}

// AllowPrivatePeer is AllowPrivateIP on the TCP peer address, ignoring forwarding
// headers, so it cannot be satisfied by a spoofed X-Forwarded-For.
func AllowPrivatePeer() AllowFunc {
	return func(c *gin.Context) bool {
		parsed := net.ParseIP(c.RemoteIP())
		return parsed != nil && (parsed.IsLoopback() || parsed.IsPrivate())
	}
}

// OnlyFrom rejects requests for which allow reports false.
// Used for endpoints that trust a caller-supplied identity, such as the
// OAuth gateway posting a verified provider profile.
func OnlyFrom(allow AllowFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if allow == nil || !allow(c) {
			response.Abort(c, response.Error[any](c, http.StatusForbidden, "forbidden", nil))
			return
		}
		c.Next()
	}
}
