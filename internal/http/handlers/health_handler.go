package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// DBProbe - то, что health-check'у нужно от пула соединений (*sqlx.DB подходит).
type DBProbe interface {
	PingContext(ctx context.Context) error
	Stats() sql.DBStats
}

// OutboxStats отдаёт глубину очереди побочных эффектов по статусам.
type OutboxStats interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// HealthHandler предоставляет endpoint для проверки здоровья сервиса.
type HealthHandler struct {
	db     DBProbe
	outbox OutboxStats
}

// NewHealthHandler создаёт новый health handler.
func NewHealthHandler(db DBProbe, outbox OutboxStats) *HealthHandler {
	return &HealthHandler{db: db, outbox: outbox}
}

// HealthResponse представляет ответ health check.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Outbox    map[string]int    `json:"outbox,omitempty"`
}

// Health обрабатывает GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		status = "unhealthy"
	} else {
		checks["database"] = "healthy"
	}

	// Проверка статистики пула соединений
	stats := h.db.Stats()
	if stats.MaxOpenConnections > 0 && stats.OpenConnections >= stats.MaxOpenConnections {
		checks["connection_pool"] = "warning: pool exhausted"
	} else {
		checks["connection_pool"] = "healthy"
	}

	var outbox map[string]int
	if status == "healthy" && h.outbox != nil {
		counts, err := h.outbox.CountByStatus(ctx)
		if err != nil {
			checks["outbox"] = "unknown: " + err.Error()
		} else {
			outbox = counts
			checks["outbox"] = "healthy"
			if counts["failed"] > 0 {
				checks["outbox"] = "warning: failed side effects"
			}
		}
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
		Outbox:    outbox,
	})
}
