package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/kozaktomas/face-service/internal/config"
	"github.com/kozaktomas/face-service/internal/constants"
	"github.com/kozaktomas/face-service/internal/detector"
	"github.com/kozaktomas/face-service/internal/queue"
)

// ProcessHandler handles single-photo face extraction
type ProcessHandler struct {
	config       *config.Config
	pool         *queue.Pool
	awaitTimeout time.Duration
}

// NewProcessHandler creates a new process handler
func NewProcessHandler(cfg *config.Config, pool *queue.Pool) *ProcessHandler {
	return &ProcessHandler{
		config:       cfg,
		pool:         pool,
		awaitTimeout: constants.ResultTimeout,
	}
}

// ProcessPhotoRequest carries the photo reference. Both field names are
// accepted; photoPath is the legacy one.
type ProcessPhotoRequest struct {
	FileReference string `json:"file_reference"`
	PhotoPath     string `json:"photoPath"`
}

// ProcessPhoto enqueues the photo and waits for face extraction to finish.
// The caller's wait is bounded; the job itself is never cancelled.
func (h *ProcessHandler) ProcessPhoto(w http.ResponseWriter, r *http.Request) {
	var req ProcessPhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	raw := req.FileReference
	if raw == "" {
		raw = req.PhotoPath
	}
	if raw == "" {
		respondError(w, http.StatusBadRequest, "file_reference or photoPath is required")
		return
	}

	ref := queue.ParseFileReference(raw, h.config.Storage.Domain)

	job, err := h.pool.Enqueue(ref)
	if err != nil {
		if errors.Is(err, queue.ErrOverloaded) {
			respondError(w, http.StatusServiceUnavailable, errOverloadedMessage)
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	res, err := h.pool.Await(job, h.awaitTimeout)
	if err != nil {
		slog.Error("processing timeout", "reference", sanitizeForLog(raw), "job", job.ID)
		respondError(w, http.StatusGatewayTimeout, "Processing timeout")
		return
	}

	if res.Err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   res.Err.Error(),
		})
		return
	}

	faces := res.Faces
	if faces == nil {
		faces = []detector.Face{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"faces":   faces,
	})
}
