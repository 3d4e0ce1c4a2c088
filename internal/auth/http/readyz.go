package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/kanban/internal/auth/store"
	"github.com/aussiebroadwan/kanban/pkg/authsdk"
	"github.com/aussiebroadwan/kanban/pkg/httpx"
	"github.com/aussiebroadwan/kanban/pkg/slogx"
)

// ReadyzHandler reports 503 while the credential store is unreachable.
func ReadyzHandler(startTime time.Time, version string, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &authsdk.HealthChecks{Database: "ok"}
		status := "ok"
		code := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			slogx.FromContext(r.Context()).Warn("readiness check failed", "err", err)
			checks.Database = "unavailable"
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, authsdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
