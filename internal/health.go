package internal

import (
	"encoding/json"
	"net/http"

	"roomhub/observability"
)

// HealthPayload is the plain health response: process uptime and current
// room count, not part of the event protocol.
type HealthPayload struct {
	Status  string                     `json:"status"`
	Rooms   int                        `json:"rooms"`
	Process observability.MonitorStats `json:"process"`
}

// HealthHandler serves GET /health. Room counting is injected so the
// handler has no registry dependency.
func HealthHandler(monitor *observability.Monitor, roomCount func() int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		payload := HealthPayload{
			Status:  "ok",
			Rooms:   roomCount(),
			Process: monitor.Snapshot(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}
}
