package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthHandler reports process and dependency liveness.
type HealthHandler struct {
	db  *gorm.DB
	rdb *redis.Client
}

func NewHealthHandler(db *gorm.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, rdb: rdb}
}

// Check godoc
// @Summary      Liveness and dependency status
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]string
// @Failure      503 {object} map[string]string
// @Router       /health [get]
func (h *HealthHandler) Check(c *gin.Context) {
	ctx := c.Request.Context()
	status := gin.H{"status": "ok"}
	code := http.StatusOK

	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.PingContext(ctx) != nil {
		status["database"] = "down"
		status["status"] = "degraded"
		code = http.StatusServiceUnavailable
	} else {
		status["database"] = "up"
	}

	if h.rdb != nil {
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			status["redis"] = "down"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			status["redis"] = "up"
		}
	}

	status["time"] = time.Now().UTC().Format(time.RFC3339)
	c.JSON(code, status)
}
