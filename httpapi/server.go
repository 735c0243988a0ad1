package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quititoday/clickstats/clicks"
	"github.com/quititoday/clickstats/internal/logger"
	"github.com/quititoday/clickstats/types"
)

// Service is the part of [clicks.Service] the API calls.
type Service interface {
	RecordClick(ctx context.Context, subjectID string) (*clicks.ClickResult, error)
	GetTotalClicks(ctx context.Context) (int64, error)
	GetDailyStat(ctx context.Context, date string) (*types.Record, error)
	GetMonthlyStat(ctx context.Context, month string) (*types.Record, error)
	ListClicksForSubject(ctx context.Context, subjectID string) ([]*types.Record, error)
	ListClicksInRange(ctx context.Context, subjectID, start, end string) ([]*types.Record, error)
	ListClicksByDate(ctx context.Context, date string) ([]*types.Record, error)
}

// Option is a functional option for configuring a [Server].
type Option func(*Options)

// Options holds the configuration for a [Server].
type Options struct {
	defaultSubjectID string
}

// WithDefaultSubjectID sets the subject recorded when a POST /click body has
// no userId. Without it such requests are rejected with 400.
func WithDefaultSubjectID(id string) Option {
	return func(o *Options) {
		o.defaultSubjectID = id
	}
}

// Server routes HTTP requests to a [Service].
type Server struct {
	svc    Service
	logger logger.Logger
	opts   *Options
	router *gin.Engine
}

// New creates a Server. It panics if svc is nil.
func New(svc Service, log logger.Logger, opts ...Option) *Server {
	if svc == nil {
		panic("httpapi: nil service")
	}

	options := &Options{}

	for _, o := range opts {
		o(options)
	}

	s := &Server{
		svc:    svc,
		logger: log.With("component", "httpapi"),
		opts:   options,
	}

	s.router = s.buildRouter()

	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(loggerMiddleware(s.logger))

	router.POST("/click", s.recordClick)
	router.OPTIONS("/click", preflight)

	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.GET("/stats/total", s.getTotal)
	router.GET("/stats/daily/:date", s.getDaily)
	router.GET("/stats/monthly/:month", s.getMonthly)
	router.GET("/users/:userId/clicks", s.listForSubject)
	router.GET("/dates/:date/clicks", s.listByDate)

	return router
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) ok(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

// fail maps err onto 400 or 500. Store errors are reported by class only.
func (s *Server) fail(c *gin.Context, message string, err error) {
	if errors.Is(err, types.ErrValidation) {
		c.JSON(http.StatusBadRequest, envelope{Message: message, Error: err.Error()})
		return
	}

	s.logger.Error(message, "path", c.FullPath(), "error", err)

	detail := "internal error"
	if types.IsRetryable(err) {
		detail = types.ErrStoreUnavailable.Error()
	}

	c.JSON(http.StatusInternalServerError, envelope{Message: message, Error: detail})
}
