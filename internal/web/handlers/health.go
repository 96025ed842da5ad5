package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-service/internal/config"
	"github.com/kozaktomas/face-service/internal/detector"
	"github.com/kozaktomas/face-service/internal/queue"
	"github.com/kozaktomas/face-service/internal/similarity"
)

// HealthHandler serves health and status endpoints
type HealthHandler struct {
	config *config.Config
	det    detector.Detector
	pool   *queue.Pool
	engine *similarity.Engine
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(cfg *config.Config, det detector.Detector, pool *queue.Pool, engine *similarity.Engine) *HealthHandler {
	return &HealthHandler{config: cfg, det: det, pool: pool, engine: engine}
}

// Health reports whether the detector sidecar is reachable and its model loaded.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	info, err := h.det.ModelInfo(r.Context())
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{
			"status":  "unhealthy",
			"error":   err.Error(),
			"service": serviceName,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"service":          serviceName,
		"gpu_acceleration": info.UsingGPU,
		"device":           info.DeviceInfo,
		"model_loaded":     info.ModelLoaded,
	})
}

// Status reports detailed system state: model, queue counters, and the
// similarity engine's backend selection.
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	info, err := h.det.ModelInfo(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"model_info": info,
		"model_registry": map[string]any{
			"model":        info.Model,
			"expected_dim": h.config.ModelDim(info.Model),
		},
		"performance_stats":     h.pool.Stats(),
		"similarity_calculator": h.engine.Info(),
	})
}
