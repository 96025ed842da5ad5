package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/face-service/internal/config"
	"github.com/kozaktomas/face-service/internal/constants"
	"github.com/kozaktomas/face-service/internal/detector"
	"github.com/kozaktomas/face-service/internal/queue"
	"github.com/kozaktomas/face-service/internal/similarity"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Detector: config.DetectorConfig{Model: "buffalo_l"},
		Storage:  config.StorageConfig{Domain: "cloudinary.com"},
		Image:    config.ImageConfig{MaxSize: constants.MaxImageSize},
		Models: config.ModelsConfig{
			Models: map[string]config.ModelSpec{
				"buffalo_l": {Dim: 512, DetSize: 640},
			},
		},
	}
}

// stubDetector returns canned faces or a canned error.
type stubDetector struct {
	faces   []detector.Face
	err     error
	info    *detector.ModelInfo
	infoErr error
	block   chan struct{}
}

func (d *stubDetector) DetectFaces(ctx context.Context, imageData []byte) ([]detector.Face, error) {
	if d.block != nil {
		<-d.block
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.faces, nil
}

func (d *stubDetector) ModelInfo(ctx context.Context) (*detector.ModelInfo, error) {
	if d.infoErr != nil {
		return nil, d.infoErr
	}
	if d.info != nil {
		return d.info, nil
	}
	return &detector.ModelInfo{ModelLoaded: true, UsingGPU: true, DeviceInfo: "CUDA:0"}, nil
}

var errStubDetector = errors.New("detector unavailable")

// newTestPool builds a small pool backed by the given detector.
func newTestPool(t *testing.T, det detector.Detector) *queue.Pool {
	t.Helper()
	pool := queue.New(queue.Config{
		Workers:        2,
		Capacity:       8,
		SoftLimit:      4,
		EnqueueTimeout: 100 * time.Millisecond,
		Detector:       det,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(pool.Stop)
	return pool
}

// newTestPoolWithLookup builds a pool whose resolver points at the given
// lookup service URL.
func newTestPoolWithLookup(t *testing.T, det detector.Detector, lookupURL string) *queue.Pool {
	t.Helper()
	pool := queue.New(queue.Config{
		Workers:        2,
		Capacity:       8,
		SoftLimit:      4,
		EnqueueTimeout: 100 * time.Millisecond,
		Detector:       det,
		Resolver:       queue.NewResolver(lookupURL, constants.MaxImageSize),
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(pool.Stop)
	return pool
}

func newTestEngine(t *testing.T) *similarity.Engine {
	t.Helper()
	return similarity.NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// writeTestImage writes a small valid PNG and returns its path.
func writeTestImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.png")
	if err := os.WriteFile(path, testImageBytes(t), 0o644); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}
	return path
}

// testImageBytes returns a small valid PNG.
func testImageBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

// testSelfieBase64 returns a valid selfie payload with a data URI prefix.
func testSelfieBase64(t *testing.T) string {
	t.Helper()
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(testImageBytes(t))
}

// jsonBody marshals a value into a request body buffer.
func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return bytes.NewBuffer(data)
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
