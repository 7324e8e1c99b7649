package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/server"
)

type handler struct {
	svc    server.ScanService
	health HealthFunc
	logger *slog.Logger
}

func (h *handler) healthz(c *gin.Context) {
	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func (h *handler) getDay(c *gin.Context) {
	day, err := h.svc.GetDay(c.Request.Context(), server.DayRequest{User: c.Param("user"), Date: c.Param("date")})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, day)
}

func (h *handler) getWeek(c *gin.Context) {
	week, err := h.svc.GetWeek(c.Request.Context(), server.WeekRequest{User: c.Param("user"), WeekStart: c.Param("start")})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, week)
}

func (h *handler) exportWeek(c *gin.Context) {
	exp, err := h.svc.ExportWeek(c.Request.Context(), server.WeekRequest{User: c.Param("user"), WeekStart: c.Param("start")})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+exp.Filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, exp.XLSX)
}

func (h *handler) getProfile(c *gin.Context) {
	p, err := h.svc.GetProfile(c.Request.Context(), server.ProfileRequest{User: c.Param("user")})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handler) putProfile(c *gin.Context) {
	var req server.PutProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}
	req.User = c.Param("user")
	p, err := h.svc.PutProfile(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// scan runs a scan synchronously and answers with the final event.
func (h *handler) scan(c *gin.Context) {
	var req server.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}
	req.User = c.Param("user")

	var (
		assessment *entity.DetailedAssessment
		scanErr    *entity.ScanErrorEvent
	)
	err := h.svc.Scan(c.Request.Context(), req, func(ev server.ScanEvent) error {
		switch ev.Type {
		case server.EventAssessment:
			assessment = ev.Assessment
		case server.EventError:
			scanErr = ev.Error
		}
		return nil
	})
	switch {
	case err != nil:
		abortWithError(c, err)
	case scanErr != nil:
		code := http.StatusUnprocessableEntity
		if scanErr.Code == string(common.KindLedgerWriteFailure) {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"error": scanErr, "assessment": assessment})
	default:
		c.JSON(http.StatusOK, assessment)
	}
}
