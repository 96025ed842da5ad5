// Package detector talks to the face-detection sidecar. The service never runs
// the neural network itself; it posts images to the sidecar and gets back face
// records with embeddings.
package detector

import "context"

// Face represents a single detected face with its embedding
type Face struct {
	FaceIndex int       `json:"face_index"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2] in raw pixel coordinates
	DetScore  float64   `json:"det_score"`
	Embedding []float32 `json:"embedding"`
}

// ModelInfo describes the model loaded by the detector sidecar
type ModelInfo struct {
	ModelLoaded bool   `json:"model_loaded"`
	UsingGPU    bool   `json:"using_gpu"`
	DeviceInfo  string `json:"device_info"`
	Model       string `json:"model"`
	Dim         int    `json:"dim"`
}

// Detector extracts face embeddings from encoded image data.
type Detector interface {
	// DetectFaces returns zero or more faces found in the image.
	// An image with no faces is not an error.
	DetectFaces(ctx context.Context, imageData []byte) ([]Face, error)

	// ModelInfo reports the detector's model and device state.
	ModelInfo(ctx context.Context) (*ModelInfo, error)
}
