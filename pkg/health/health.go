// Package health exposes liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Checker is a named readiness dependency.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler serves /health and /ready.
type Handler struct {
	service  string
	checkers []Checker
	timeout  time.Duration
}

// NewHandler creates a handler whose readiness probe pings db plus any extra checkers.
func NewHandler(db *gorm.DB, service string, extra ...Checker) *Handler {
	checkers := make([]Checker, 0, len(extra)+1)
	if db != nil {
		checkers = append(checkers, Checker{Name: "postgres", Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}})
	}
	checkers = append(checkers, extra...)
	return &Handler{service: service, checkers: checkers, timeout: 2 * time.Second}
}

// RegisterRoutes mounts the probes on the root router.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.Liveness)
	r.GET("/ready", h.Readiness)
}

// Liveness always answers 200 while the process serves HTTP.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": h.service})
}

// Readiness answers 503 when any dependency check fails.
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.checkers))
	for _, chk := range h.checkers {
		if err := chk.Check(ctx); err != nil {
			checks[chk.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[chk.Name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	c.JSON(status, gin.H{"status": state, "service": h.service, "checks": checks})
}
