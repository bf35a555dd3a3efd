package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tordrt/schemamodeler/internal/db"
	"github.com/tordrt/schemamodeler/internal/diagram"
	"github.com/tordrt/schemamodeler/internal/llm"
	"github.com/tordrt/schemamodeler/internal/pipeline"
	"github.com/tordrt/schemamodeler/internal/prompt"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "requestId"
	loggerKey       = "logger"
)

// errBadRequest marks request validation failures
var errBadRequest = errors.New("bad request")

// requestContext tags every request with an ID and a logger carrying it
func requestContext(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)

		reqLog := log.WithField("request_id", id)
		c.Set(loggerKey, reqLog)

		start := time.Now()
		c.Next()

		reqLog.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Info("request handled")
	}
}

func requestLogger(c *gin.Context) logrus.FieldLogger {
	if v, ok := c.Get(loggerKey); ok {
		if log, ok := v.(logrus.FieldLogger); ok {
			return log
		}
	}
	return logrus.StandardLogger()
}

// errorHandler turns the last error attached by a handler into a JSON
// response with a status matching its type
func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		status, message := classify(err)

		log := requestLogger(c).WithError(err).WithField("status", status)
		if status >= http.StatusInternalServerError {
			log.Error("request failed")
		} else {
			log.Warn("request rejected")
		}

		if !c.Writer.Written() {
			c.AbortWithStatusJSON(status, gin.H{"error": message})
		}
	}
}

func classify(err error) (int, string) {
	var (
		cfgErr    *prompt.ConfigurationError
		connErr   *db.ConnectionError
		provErr   *llm.ProviderError
		renderErr *diagram.RenderError
	)

	switch {
	case errors.As(err, &cfgErr), errors.Is(err, errBadRequest), errors.Is(err, db.ErrInvalidURL):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &connErr):
		return http.StatusBadGateway, err.Error()
	case errors.As(err, &provErr):
		if provErr.StatusCode == http.StatusTooManyRequests {
			return http.StatusTooManyRequests, err.Error()
		}
		return http.StatusBadGateway, err.Error()
	case errors.As(err, &renderErr):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, pipeline.ErrNoModel):
		return http.StatusServiceUnavailable, err.Error()
	}
	return http.StatusInternalServerError, "An unexpected internal server error occurred."
}
