package errors

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// ContentTypeProblemJSON is the media type for Problem Details responses.
const ContentTypeProblemJSON = "application/problem+json"

// Responder writes Problem Details responses.
type Responder struct {
	// BaseURI is prepended to problem type URIs if they are relative.
	BaseURI string
	// Logger receives unmapped failures; nil uses slog.Default.
	Logger *slog.Logger
	// Now is the clock used for Retry-After; nil uses time.Now.
	Now func() time.Time
}

// NewResponder creates a new problem responder with optional base URI.
func NewResponder(baseURI string) *Responder {
	return &Responder{BaseURI: baseURI}
}

// DefaultResponder uses relative URIs for problem types.
var DefaultResponder = NewResponder("")

// Respond sends a ProblemDetail response with proper content type. Problems
// carrying a future validAt extension also set Retry-After.
func (r *Responder) Respond(c *gin.Context, problem ProblemDetail) {
	if r.BaseURI != "" && len(problem.Type) > 0 && problem.Type[0] == '/' {
		problem.Type = r.BaseURI + problem.Type
	}
	if problem.Instance == "" {
		problem.Instance = c.Request.URL.Path
	}
	if wait, ok := r.retryAfter(problem); ok {
		c.Header("Retry-After", strconv.FormatInt(wait, 10))
	}
	c.Header("Content-Type", ContentTypeProblemJSON)
	c.JSON(problem.Status, problem)
}

// RespondError answers problems as-is and anything else as a 500.
func (r *Responder) RespondError(c *gin.Context, err error) {
	var problem ProblemDetail
	if errors.As(err, &problem) {
		r.Respond(c, problem)
		return
	}
	r.logger().ErrorContext(c.Request.Context(), "unmapped request failure",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("error", err.Error()),
	)
	r.Respond(c, ErrInternal.WithDetail(err.Error()))
}

func (r *Responder) retryAfter(problem ProblemDetail) (int64, bool) {
	raw, ok := problem.Extensions["validAt"].(string)
	if !ok {
		return 0, false
	}
	validAt, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return 0, false
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	wait := validAt.Sub(now())
	if wait <= 0 {
		return 0, false
	}
	return int64((wait + time.Second - 1) / time.Second), true
}

func (r *Responder) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Respond is a convenience function using the default responder.
func Respond(c *gin.Context, problem ProblemDetail) {
	DefaultResponder.Respond(c, problem)
}

// ErrorMapper maps domain/application errors to ProblemDetail.
type ErrorMapper func(err error) (ProblemDetail, bool)

// ChainedResponder tries each mapper in order before the default handling.
type ChainedResponder struct {
	*Responder
	mappers []ErrorMapper
}

// NewChainedResponder creates a responder with custom error mappers.
func NewChainedResponder(baseURI string, mappers ...ErrorMapper) *ChainedResponder {
	return &ChainedResponder{
		Responder: NewResponder(baseURI),
		mappers:   mappers,
	}
}

// RespondError tries each mapper before falling back to default handling.
func (r *ChainedResponder) RespondError(c *gin.Context, err error) {
	for _, mapper := range r.mappers {
		if problem, ok := mapper(err); ok {
			r.Respond(c, problem)
			return
		}
	}
	r.Responder.RespondError(c, err)
}
