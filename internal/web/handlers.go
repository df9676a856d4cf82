package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tasksync/internal/model"
	"tasksync/internal/provider"
	syncengine "tasksync/internal/sync"
)

type statusResponse struct {
	SchedulerRunning    bool          `json:"scheduler_running"`
	SyncInFlight        bool          `json:"sync_in_flight"`
	GoogleConnected     bool          `json:"google_connected"`
	RemindersConnected  bool          `json:"reminders_connected"`
	NextSyncAt          *time.Time    `json:"next_sync_at,omitempty"`
	LastSync            *model.Result `json:"last_sync,omitempty"`
	SyncIntervalMinutes int           `json:"sync_interval_minutes"`
}

type triggerResponse struct {
	Message string       `json:"message"`
	Result  model.Result `json:"result"`
}

func probe(f func() bool) bool {
	return f != nil && f()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleStatus(c *gin.Context) {
	settings, err := s.store.GetSettings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	last, err := s.store.LastResult(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := statusResponse{
		SchedulerRunning:    s.sched.Running(),
		SyncInFlight:        s.engine.InFlight(),
		GoogleConnected:     probe(s.tasksConnected),
		RemindersConnected:  probe(s.remindersConnected),
		LastSync:            last,
		SyncIntervalMinutes: settings.IntervalMinutes,
	}
	if next, ok := s.sched.NextRunAt(); ok {
		resp.NextSyncAt = &next
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetSettings(c *gin.Context) {
	settings, err := s.store.GetSettings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (s *Server) handlePutSettings(c *gin.Context) {
	var settings model.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := settings.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.SaveSettings(c.Request.Context(), settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// A running scheduler picks up the new interval on its next fire.
	s.sched.SetInterval(time.Duration(settings.IntervalMinutes) * time.Minute)

	c.JSON(http.StatusOK, settings)
}

func (s *Server) handleTrigger(c *gin.Context) {
	// A client disconnect must not abort the cycle mid-apply.
	result, err := s.engine.RunCycle(context.WithoutCancel(c.Request.Context()))
	if errors.Is(err, syncengine.ErrAlreadyRunning) {
		c.JSON(http.StatusConflict, gin.H{"error": "sync already running"})
		return
	}

	message := "sync completed successfully"
	if result.Status == model.StatusFailed {
		message = "sync failed: " + result.ErrorMessage
	}
	c.JSON(http.StatusOK, triggerResponse{Message: message, Result: result})
}

func (s *Server) handleLogs(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	if limit > 100 {
		limit = 100
	}

	results, err := s.store.ListResults(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if results == nil {
		results = []model.Result{}
	}
	c.JSON(http.StatusOK, results)
}

func (s *Server) handleSchedulerStart(c *gin.Context) {
	settings, err := s.store.GetSettings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.sched.Start(time.Duration(settings.IntervalMinutes) * time.Minute)
	c.JSON(http.StatusOK, gin.H{
		"message":          "scheduler started",
		"interval_minutes": settings.IntervalMinutes,
	})
}

func (s *Server) handleSchedulerStop(c *gin.Context) {
	s.sched.Stop()
	c.JSON(http.StatusOK, gin.H{"message": "scheduler stopped"})
}

func (s *Server) handleTaskLists(c *gin.Context) {
	s.handleLists(c, s.tasks)
}

func (s *Server) handleReminderLists(c *gin.Context) {
	s.handleLists(c, s.reminders)
}

func (s *Server) handleLists(c *gin.Context, p provider.Provider) {
	lists, err := p.ListLists(c.Request.Context())
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, provider.ErrAuthExpired) {
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	if lists == nil {
		lists = []provider.List{}
	}
	c.JSON(http.StatusOK, lists)
}
