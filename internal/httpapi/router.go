// Package httpapi is the REST surface for ledger reads, weekly exports and
// profile updates. It delegates to the same handlers as the gRPC service.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/server"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HealthFunc reports whether the backing store is reachable.
type HealthFunc func(ctx context.Context) error

type Options struct {
	AllowOrigins []string
	Health       HealthFunc
	Logger       *slog.Logger
}

// NewRouter builds the gin engine.
func NewRouter(svc server.ScanService, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := opts.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	h := &handler{svc: svc, health: opts.Health, logger: logger}
	r.GET("/healthz", h.healthz)

	users := r.Group("/v1/users/:user")
	{
		users.GET("/days/:date", h.getDay)
		users.GET("/weeks/:start", h.getWeek)
		users.GET("/weeks/:start/export.xlsx", h.exportWeek)
		users.GET("/profile", h.getProfile)
		users.PUT("/profile", h.putProfile)
		users.POST("/scans", h.scan)
	}
	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		code := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		level := slog.LevelInfo
		if code >= 500 {
			level = slog.LevelError
		} else if code >= 400 {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "http.request",
			"method", c.Request.Method,
			"path", path,
			"status", code,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"bytes", c.Writer.Size(),
		)
	}
}

// httpStatus maps an error onto an HTTP status through its gRPC code.
func httpStatus(err error) int {
	switch status.Code(common.ToStatus(err)) {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.FailedPrecondition:
		return http.StatusUnprocessableEntity
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.Canceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	msg := err.Error()
	if st, ok := status.FromError(common.ToStatus(err)); ok {
		msg = st.Message()
	}
	c.AbortWithStatusJSON(httpStatus(err), gin.H{"error": msg})
}
