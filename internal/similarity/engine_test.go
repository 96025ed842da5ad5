package similarity

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"testing"
)

const scoreTolerance = 1e-5

// randomUnitVector returns a normalized 512-dim vector.
func randomUnitVector(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	var normSq float64
	for i := range v {
		v[i] = float32(rng.NormFloat64())
		normSq += float64(v[i]) * float64(v[i])
	}
	norm := float32(math.Sqrt(normSq))
	for i := range v {
		v[i] /= norm
	}
	return v
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCosineSimilarityBatchEmpty(t *testing.T) {
	engine := testEngine(t)

	scores := engine.CosineSimilarityBatch([]float32{1, 0, 0}, nil)
	if scores == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(scores) != 0 {
		t.Errorf("expected 0 scores, got %d", len(scores))
	}
}

func TestCosineSimilarityBatchIdentical(t *testing.T) {
	engine := testEngine(t)
	rng := rand.New(rand.NewSource(42))
	query := randomUnitVector(rng, 512)

	scores := engine.CosineSimilarityBatch(query, [][]float32{query})
	if len(scores) != 1 {
		t.Fatalf("expected 1 score, got %d", len(scores))
	}
	if math.Abs(float64(scores[0])-1.0) > scoreTolerance {
		t.Errorf("identical vectors should score 1.0, got %f", scores[0])
	}
}

func TestCosineSimilarityBatchScaleInvariance(t *testing.T) {
	engine := testEngine(t)
	rng := rand.New(rand.NewSource(7))
	query := randomUnitVector(rng, 512)
	candidate := randomUnitVector(rng, 512)

	scaled := make([]float32, len(candidate))
	for i, v := range candidate {
		scaled[i] = v * 3.5
	}

	scores := engine.CosineSimilarityBatch(query, [][]float32{candidate, scaled})
	if math.Abs(float64(scores[0]-scores[1])) > scoreTolerance {
		t.Errorf("positive rescaling changed the score: %f vs %f", scores[0], scores[1])
	}
}

func TestCosineSimilarityBatchOrderAndCardinality(t *testing.T) {
	engine := testEngine(t)
	rng := rand.New(rand.NewSource(13))
	query := randomUnitVector(rng, 512)

	candidates := make([][]float32, 5)
	for i := range candidates {
		candidates[i] = randomUnitVector(rng, 512)
	}
	candidates[2] = query // exact match in the middle

	scores := engine.CosineSimilarityBatch(query, candidates)
	if len(scores) != len(candidates) {
		t.Fatalf("expected %d scores, got %d", len(candidates), len(scores))
	}
	if math.Abs(float64(scores[2])-1.0) > scoreTolerance {
		t.Errorf("expected score 1.0 at index 2, got %f", scores[2])
	}
	for i, s := range scores {
		if s < -1 || s > 1 {
			t.Errorf("score %d out of range: %f", i, s)
		}
	}
}

func TestCosineSimilarityBatchZeroVector(t *testing.T) {
	engine := testEngine(t)
	query := []float32{1, 0, 0}
	zero := []float32{0, 0, 0}

	scores := engine.CosineSimilarityBatch(query, [][]float32{zero})
	if scores[0] != 0 {
		t.Errorf("zero-norm candidate should score 0, got %f", scores[0])
	}

	scores = engine.CosineSimilarityBatch(zero, [][]float32{query})
	if scores[0] != 0 {
		t.Errorf("zero-norm query should score 0, got %f", scores[0])
	}
}

func TestCosineSimilarityBatchDimensionMismatch(t *testing.T) {
	engine := testEngine(t)
	query := []float32{1, 0, 0}

	scores := engine.CosineSimilarityBatch(query, [][]float32{{1, 0}, {1, 0, 0}})
	if scores[0] != 0 {
		t.Errorf("mismatched candidate should score 0, got %f", scores[0])
	}
	if math.Abs(float64(scores[1])-1.0) > scoreTolerance {
		t.Errorf("valid candidate should still score 1.0, got %f", scores[1])
	}
}

func TestCosineSimilarityBatchDoesNotMutateInputs(t *testing.T) {
	engine := testEngine(t)
	query := []float32{0.6, 0.8, 0}
	candidate := []float32{0, 0.8, 0.6}
	queryCopy := append([]float32(nil), query...)
	candidateCopy := append([]float32(nil), candidate...)

	engine.CosineSimilarityBatch(query, [][]float32{candidate})

	for i := range query {
		if query[i] != queryCopy[i] {
			t.Fatal("query was mutated")
		}
	}
	for i := range candidate {
		if candidate[i] != candidateCopy[i] {
			t.Fatal("candidate was mutated")
		}
	}
}

func TestBackendEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	query := randomUnitVector(rng, 512)
	candidates := make([][]float32, 20)
	for i := range candidates {
		candidates[i] = randomUnitVector(rng, 512)
	}

	reference, err := (&scalarBackend{}).CosineBatch(query, candidates)
	if err != nil {
		t.Fatalf("scalar backend failed: %v", err)
	}

	for _, backend := range []Backend{&vek32Backend{}, &vek64Backend{}} {
		t.Run(backend.Name(), func(t *testing.T) {
			if !probe(backend) {
				t.Skipf("backend %s unavailable on this machine", backend.Name())
			}
			scores, err := backend.CosineBatch(query, candidates)
			if err != nil {
				t.Fatalf("backend failed: %v", err)
			}
			for i := range reference {
				diff := math.Abs(float64(scores[i] - reference[i]))
				if diff > scoreTolerance {
					t.Errorf("candidate %d: %s=%f scalar=%f (diff %g)",
						i, backend.Name(), scores[i], reference[i], diff)
				}
			}
		})
	}
}

// brokenBackend fails every call; used to exercise per-call fallback.
type brokenBackend struct{ panics bool }

func (b *brokenBackend) Name() string { return "broken" }

func (b *brokenBackend) CosineBatch(query []float32, candidates [][]float32) ([]float32, error) {
	if b.panics {
		panic("out of device memory")
	}
	return nil, errors.New("device error")
}

func TestPerCallFallback(t *testing.T) {
	for _, tt := range []struct {
		name   string
		panics bool
	}{
		{"error", false},
		{"panic", true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			engine := &Engine{
				selected: &brokenBackend{panics: tt.panics},
				terminal: &scalarBackend{},
				log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
			}

			query := []float32{0.6, 0.8, 0}
			scores := engine.CosineSimilarityBatch(query, [][]float32{query})
			if len(scores) != 1 {
				t.Fatalf("expected 1 score from fallback, got %d", len(scores))
			}
			if math.Abs(float64(scores[0])-1.0) > scoreTolerance {
				t.Errorf("fallback should score identical vectors 1.0, got %f", scores[0])
			}
		})
	}
}

func TestNewEngineSelectsBackend(t *testing.T) {
	engine := testEngine(t)

	info := engine.Info()
	if info.Backend == "" {
		t.Fatal("no backend selected")
	}
	if info.Fallback != "scalar" {
		t.Errorf("expected scalar fallback, got %q", info.Fallback)
	}
	if len(info.Available) == 0 {
		t.Fatal("no backends available")
	}
	// The scalar backend must always be available.
	found := false
	for _, name := range info.Available {
		if name == "scalar" {
			found = true
		}
	}
	if !found {
		t.Error("scalar backend missing from available list")
	}
}
