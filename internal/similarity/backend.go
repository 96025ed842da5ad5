package similarity

import (
	"github.com/chewxy/math32"
	"github.com/viterin/vek"
	"github.com/viterin/vek/vek32"
)

// Backend computes batched cosine similarity. All backends must agree with the
// scalar backend within floating point tolerance; which one runs is invisible
// to callers.
type Backend interface {
	Name() string
	// CosineBatch returns one score per candidate, in candidate order.
	// Inputs are never mutated. A zero-norm or length-mismatched candidate
	// scores 0.
	CosineBatch(query []float32, candidates [][]float32) ([]float32, error)
}

// clamp keeps a score inside [-1, 1] to absorb floating point drift.
func clamp(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// vek32Backend runs the similarity math through SIMD float32 kernels.
type vek32Backend struct{}

func (b *vek32Backend) Name() string { return "vek32" }

func (b *vek32Backend) CosineBatch(query []float32, candidates [][]float32) ([]float32, error) {
	queryNorm := vek32.Norm(query)
	scores := make([]float32, len(candidates))
	for i, candidate := range candidates {
		if len(candidate) != len(query) {
			continue
		}
		candidateNorm := vek32.Norm(candidate)
		if queryNorm == 0 || candidateNorm == 0 {
			continue
		}
		scores[i] = clamp(vek32.Dot(query, candidate) / (queryNorm * candidateNorm))
	}
	return scores, nil
}

// vek64Backend widens to float64 before running the SIMD kernels. Slower than
// the float32 path but with more accumulation headroom.
type vek64Backend struct{}

func (b *vek64Backend) Name() string { return "vek64" }

func (b *vek64Backend) CosineBatch(query []float32, candidates [][]float32) ([]float32, error) {
	wideQuery := widen(query)
	queryNorm := vek.Norm(wideQuery)
	scores := make([]float32, len(candidates))
	for i, candidate := range candidates {
		if len(candidate) != len(query) {
			continue
		}
		wideCandidate := widen(candidate)
		candidateNorm := vek.Norm(wideCandidate)
		if queryNorm == 0 || candidateNorm == 0 {
			continue
		}
		scores[i] = clamp(float32(vek.Dot(wideQuery, wideCandidate) / (queryNorm * candidateNorm)))
	}
	return scores, nil
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// scalarBackend is the terminal fallback: plain float32 loops with no external
// dependencies beyond sqrt. It cannot fail.
type scalarBackend struct{}

func (b *scalarBackend) Name() string { return "scalar" }

func (b *scalarBackend) CosineBatch(query []float32, candidates [][]float32) ([]float32, error) {
	var queryNormSq float32
	for _, v := range query {
		queryNormSq += v * v
	}
	queryNorm := math32.Sqrt(queryNormSq)

	scores := make([]float32, len(candidates))
	for i, candidate := range candidates {
		if len(candidate) != len(query) {
			continue
		}
		var dot, normSq float32
		for j := range candidate {
			dot += query[j] * candidate[j]
			normSq += candidate[j] * candidate[j]
		}
		candidateNorm := math32.Sqrt(normSq)
		if queryNorm == 0 || candidateNorm == 0 {
			continue
		}
		scores[i] = clamp(dot / (queryNorm * candidateNorm))
	}
	return scores, nil
}
