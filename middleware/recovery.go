package middleware

import (
	"errors"
	"net/http"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kasuganosora/vkrpg/metrics"
)

// Recovery turns a handler panic into a 500 carrying the request's trace id,
// so a client report can be matched to the logged stack. A panic caused by the
// client hanging up is logged at warn and gets no response.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			traceID := GetTraceID(c)
			fields := []zap.Field{
				zap.Any("error", r),
				zap.String("trace_id", traceID),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Int64("player_id", GetPlayerID(c)),
			}
			if err, ok := r.(error); ok && clientGone(err) {
				log.Warn("client disconnected mid-response", fields...)
				c.Abort()
				return
			}
			metrics.PanicsRecovered.Inc()
			log.Error("panic recovered", append(fields, zap.Stack("stack"))...)
			if c.Writer.Written() {
				// Headers are out; all we can do is stop the chain.
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":    "internal error",
				"code":     "internal",
				"trace_id": traceID,
			})
		}()
		c.Next()
	}
}

func clientGone(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, http.ErrAbortHandler)
}
