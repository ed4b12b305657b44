package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/lendcore/loan-engine/pkg/response"
)

const dependencyProbeTimeout = 5 * time.Second

// HealthHandler reports liveness and readiness. Readiness probes the
// datastore and the replay cache; liveness never touches a dependency.
type HealthHandler struct {
	db    *sqlx.DB
	redis *redis.Client
}

func NewHealthHandler(db *sqlx.DB, redis *redis.Client) *HealthHandler {
	return &HealthHandler{
		db:    db,
		redis: redis,
	}
}

type healthReport struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.Success(w, healthReport{Status: "ok", Timestamp: time.Now()})
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	report := healthReport{
		Status:    "ok",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	probes := map[string]func(context.Context) error{
		"database": h.db.PingContext,
		"redis": func(ctx context.Context) error {
			return h.redis.Ping(ctx).Err()
		},
	}

	for name, probe := range probes {
		ctx, cancel := context.WithTimeout(r.Context(), dependencyProbeTimeout)
		err := probe(ctx)
		cancel()

		if err != nil {
			report.Status = "error"
			report.Checks[name] = "failed: " + err.Error()
			continue
		}
		report.Checks[name] = "ok"
	}

	if report.Status == "error" {
		response.Error(w, http.StatusServiceUnavailable, "service not ready", nil)
		return
	}

	response.Success(w, report)
}
