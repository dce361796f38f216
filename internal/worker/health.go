package worker

import (
	"net/http"
	"time"

	"github.com/morningready/morningready/internal/api/response"
)

// HealthHandler serves the worker liveness endpoint with refresh statistics.
// next may be nil when no schedule is running.
func HealthHandler(version string, job *RefreshJob, next func() time.Time) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":  "healthy",
			"version": version,
			"refresh": job.MetricsSnapshot(),
		}
		if next != nil {
			if at := next(); !at.IsZero() {
				body["next_run_at"] = at.UTC().Format(time.RFC3339)
			}
		}
		response.JSON(w, r, http.StatusOK, body)
	})
	return mux
}
