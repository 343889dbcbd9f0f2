package main

import (
	"encoding/json"
	"net/http"

	"github.com/rickgao/trade-events/internal/consumer"
	"github.com/rickgao/trade-events/internal/fanout"
	"github.com/rickgao/trade-events/internal/version"
)

// consumerStatus is the part of *consumer.Consumer the health check reads.
type consumerStatus interface {
	State() consumer.State
	Stats() consumer.Stats
}

type healthResponse struct {
	Status   string         `json:"status"`
	State    string         `json:"state"`
	Version  version.Info   `json:"version"`
	Consumer consumer.Stats `json:"consumer"`
	Fanout   *fanout.Stats  `json:"fanout,omitempty"`
}

// newHealthHandler reports healthy while the consumer is running and
// degraded while it drains. hub may be nil.
func newHealthHandler(c consumerStatus, hub *fanout.Hub) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := c.State()
		resp := healthResponse{
			State:    state.String(),
			Version:  version.Get(),
			Consumer: c.Stats(),
		}
		switch state {
		case consumer.StateRunning:
			resp.Status = "healthy"
		case consumer.StateDraining, consumer.StateStarting:
			resp.Status = "degraded"
		default:
			resp.Status = "unhealthy"
		}
		if hub != nil {
			stats := hub.Stats()
			resp.Fanout = &stats
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	})
}
