package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dws-network/dws-cache/internal/cache"
)

// httpStatus maps an error code to its HTTP status.
func httpStatus(code cache.Code) int {
	switch code {
	case cache.CodeUnauthorized:
		return http.StatusUnauthorized
	case cache.CodePaymentRequired:
		return http.StatusPaymentRequired
	case cache.CodeRateLimited:
		return http.StatusTooManyRequests
	case cache.CodeMemoryLimit, cache.CodeTTLExceeded, cache.CodeInvalidOperation:
		return http.StatusBadRequest
	case cache.CodeInstanceNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders the uniform error payload {error, code, retryAfter?}.
func writeError(c *gin.Context, err error) {
	var cerr *cache.Error
	if !errors.As(err, &cerr) {
		cerr = cache.NewError(cache.CodeNodeUnavailable, "%s", err.Error())
	}
	status := httpStatus(cerr.Code)
	if cerr.Code == cache.CodePaymentRequired {
		c.Header("X-Payment-Required", "true")
	}
	c.AbortWithStatusJSON(status, cerr)
}

// badRequest is the shorthand for malformed bodies and parameters.
func badRequest(c *gin.Context, format string, args ...interface{}) {
	writeError(c, cache.ErrInvalidOperation(format, args...))
}
