package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	statusWarnThreshold  = 400
	statusErrorThreshold = 500
)

// ZerologLogger is a Gin middleware that logs requests using zerolog.
// Successful probes of quietPaths are logged at debug level.
func ZerologLogger(quietPaths ...string) gin.HandlerFunc {
	quiet := make(map[string]struct{}, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		var evt *zerolog.Event
		switch {
		case status >= statusErrorThreshold:
			evt = log.Error()
		case status >= statusWarnThreshold:
			evt = log.Warn()
		default:
			if _, ok := quiet[path]; ok {
				evt = log.Debug()
			} else {
				evt = log.Info()
			}
		}

		if raw != "" {
			path = path + "?" + raw
		}

		evt.
			Int("status", status).
			Str("method", c.Request.Method).
			Str("path", path).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("bytes", c.Writer.Size()).
			Msg("http request completed")
	}
}

// NewRouter builds the ops API engine.
func NewRouter(sessions Sessions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ZerologLogger("/healthz"))
	NewAPI(sessions).RegisterRoutes(r)
	return r
}
