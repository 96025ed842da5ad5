package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"

	"github.com/kozaktomas/face-service/internal/config"
	"github.com/kozaktomas/face-service/internal/detector"
	"github.com/kozaktomas/face-service/internal/imaging"
	"github.com/kozaktomas/face-service/internal/similarity"
)

// CompareHandler scores a selfie against caller-supplied face embeddings
type CompareHandler struct {
	config *config.Config
	det    detector.Detector
	engine *similarity.Engine
}

// NewCompareHandler creates a new compare handler
func NewCompareHandler(cfg *config.Config, det detector.Detector, engine *similarity.Engine) *CompareHandler {
	return &CompareHandler{config: cfg, det: det, engine: engine}
}

// StoredEmbedding is one candidate supplied by the caller. The service does
// not persist embeddings; callers bring their own.
type StoredEmbedding struct {
	PhotoID   string    `json:"photoId"`
	Embedding []float32 `json:"embedding"`
}

// CompareFacesRequest carries a base64 selfie and the candidate embeddings.
type CompareFacesRequest struct {
	SelfieData string            `json:"selfieData"`
	Embeddings []StoredEmbedding `json:"embeddings"`
}

// Match is one scored candidate.
type Match struct {
	PhotoID    string  `json:"photoId"`
	Similarity float32 `json:"similarity"`
}

// CompareFaces detects the face in the selfie and returns candidates sorted
// by cosine similarity, best first.
func (h *CompareHandler) CompareFaces(w http.ResponseWriter, r *http.Request) {
	var req CompareFacesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if req.SelfieData == "" || len(req.Embeddings) == 0 {
		respondError(w, http.StatusBadRequest, "selfieData and embeddings are required")
		return
	}

	imageData, err := imaging.DecodeBase64Image(req.SelfieData)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	normalized, err := imaging.Normalize(imageData, h.config.Image.MaxSize)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	faces, err := h.det.DetectFaces(r.Context(), normalized)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(faces) == 0 {
		respondError(w, http.StatusBadRequest, "No face detected in selfie")
		return
	}

	// The detector orders faces by size; the first one is the selfie subject.
	query := faces[0].Embedding

	// An embedding whose dimension disagrees with the model registry points
	// at a detector/model mismatch; candidates with other dimensions will
	// score 0 below.
	if expected := h.config.ModelDim(h.config.Detector.Model); len(query) != expected {
		slog.Debug("selfie embedding dimension differs from registry",
			"got", len(query),
			"expected", expected,
		)
	}

	candidates := make([][]float32, len(req.Embeddings))
	for i, emb := range req.Embeddings {
		candidates[i] = emb.Embedding
	}

	scores := h.engine.CosineSimilarityBatch(query, candidates)

	matches := make([]Match, len(scores))
	for i, score := range scores {
		matches[i] = Match{
			PhotoID:    req.Embeddings[i].PhotoID,
			Similarity: score,
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"matches": matches,
	})
}
