package config

import (
	_ "embed"
	"os"
	"strconv"

	"github.com/kozaktomas/face-service/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var modelsYAML []byte

type Config struct {
	Detector DetectorConfig
	Lookup   LookupConfig
	Storage  StorageConfig
	Queue    QueueConfig
	Batch    BatchConfig
	Image    ImageConfig
	Models   ModelsConfig
}

type DetectorConfig struct {
	URL      string // detector sidecar base URL (e.g. http://localhost:8000)
	Model    string // model name, for reference and dimension lookup
	ForceCPU bool   // force CPU processing even when an accelerator is reported
}

type LookupConfig struct {
	BaseURL string // image lookup service for hex identifiers (e.g. http://localhost:5000/api/images)
}

type StorageConfig struct {
	Domain string // object-storage domain recognized in remote URLs (e.g. cloudinary.com)
}

type QueueConfig struct {
	Workers   int // number of processing workers
	Capacity  int // hard queue capacity
	SoftLimit int // queued-job count above which enqueues are rejected
}

type BatchConfig struct {
	MaxWorkers int // upper bound on concurrent batch workers
}

type ImageConfig struct {
	MaxSize int // maximum image dimension before downscaling
}

type ModelsConfig struct {
	Models map[string]ModelSpec `yaml:"models"`
}

// ModelSpec describes a known detector model.
type ModelSpec struct {
	Dim     int `yaml:"dim"`      // embedding dimension
	DetSize int `yaml:"det_size"` // detector input size (square)
}

// defaultStorageDomain is the object-storage domain recognized in remote
// URLs when FACE_STORAGE_DOMAIN is not set.
const defaultStorageDomain = "cloudinary.com"

// envString reads an environment variable, falling back to a default when
// it is unset or empty.
func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean flag.
func envBool(key string) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && b
}

func Load() *Config {
	var models ModelsConfig
	if err := yaml.Unmarshal(modelsYAML, &models); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded models.yaml: " + err.Error())
	}

	return &Config{
		Detector: DetectorConfig{
			URL:      os.Getenv("FACE_DETECTOR_URL"),
			Model:    os.Getenv("FACE_DETECTOR_MODEL"),
			ForceCPU: envBool("FACE_FORCE_CPU"),
		},
		Lookup: LookupConfig{
			BaseURL: os.Getenv("FACE_LOOKUP_URL"),
		},
		Storage: StorageConfig{
			Domain: envString("FACE_STORAGE_DOMAIN", defaultStorageDomain),
		},
		Queue: QueueConfig{
			Workers:   envInt("FACE_WORKERS", constants.WorkerPoolSize),
			Capacity:  envInt("FACE_QUEUE_CAPACITY", constants.QueueCapacity),
			SoftLimit: envInt("FACE_QUEUE_SOFT_LIMIT", constants.QueueSoftLimit),
		},
		Batch: BatchConfig{
			MaxWorkers: envInt("FACE_BATCH_WORKERS", constants.MaxBatchWorkers),
		},
		Image: ImageConfig{
			MaxSize: envInt("FACE_MAX_IMAGE_SIZE", constants.MaxImageSize),
		},
		Models: models,
	}
}

// ModelDim returns the embedding dimension for a model name, with a safe default.
func (c *Config) ModelDim(modelName string) int {
	if spec, ok := c.Models.Models[modelName]; ok && spec.Dim > 0 {
		return spec.Dim
	}
	return constants.EmbeddingDim
}
