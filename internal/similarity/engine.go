// Package similarity scores face embeddings against each other. Several
// numerical backends provide the same batched cosine operation; the fastest
// working one is picked at startup and every call can still fall back to the
// scalar path if the selected backend misbehaves.
package similarity

import (
	"fmt"
	"log/slog"
)

// Info describes the engine's backend selection for status reporting.
type Info struct {
	Backend   string   `json:"backend"`
	Available []string `json:"available"`
	Fallback  string   `json:"fallback"`
}

// Engine computes batched cosine similarity with a guaranteed fallback.
type Engine struct {
	selected  Backend
	terminal  Backend
	available []string
	log       *slog.Logger
}

// NewEngine probes backends in priority order and selects the first working
// one. The scalar backend always probes successfully, so construction cannot
// fail.
func NewEngine(log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}

	terminal := &scalarBackend{}
	engine := &Engine{terminal: terminal, log: log}

	for _, backend := range []Backend{&vek32Backend{}, &vek64Backend{}, terminal} {
		if !probe(backend) {
			log.Warn("similarity backend unavailable", "backend", backend.Name())
			continue
		}
		engine.available = append(engine.available, backend.Name())
		if engine.selected == nil {
			engine.selected = backend
		}
	}

	log.Info("similarity engine initialized",
		"backend", engine.selected.Name(),
		"available", engine.available,
	)
	return engine
}

// probe runs a trivial similarity on the backend. Any error or panic means
// the backend is unavailable, not that startup should fail.
func probe(b Backend) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	v := []float32{0.6, 0.8, 0}
	scores, err := b.CosineBatch(v, [][]float32{v})
	return err == nil && len(scores) == 1 && scores[0] > 0.99
}

// CosineSimilarityBatch returns one score per candidate, preserving candidate
// order. An empty candidate set yields an empty slice. A failure in the
// selected backend is recovered by re-running the call on the scalar backend;
// callers never see it.
func (e *Engine) CosineSimilarityBatch(query []float32, candidates [][]float32) []float32 {
	if len(candidates) == 0 {
		return []float32{}
	}

	scores, err := e.invoke(e.selected, query, candidates)
	if err != nil {
		e.log.Warn("similarity backend failed, falling back",
			"backend", e.selected.Name(),
			"error", err,
		)
		// The scalar backend has no failure mode.
		scores, _ = e.terminal.CosineBatch(query, candidates)
	}
	return scores
}

// invoke shields the engine from a panicking backend.
func (e *Engine) invoke(b Backend, query []float32, candidates [][]float32) (scores []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			scores, err = nil, fmt.Errorf("backend %s panicked: %v", b.Name(), r)
		}
	}()
	return b.CosineBatch(query, candidates)
}

// Backend returns the name of the selected backend.
func (e *Engine) Backend() string {
	return e.selected.Name()
}

// Accelerated reports whether a SIMD backend was selected.
func (e *Engine) Accelerated() bool {
	return e.selected.Name() != e.terminal.Name()
}

// Info returns backend selection details for the status endpoint.
func (e *Engine) Info() Info {
	return Info{
		Backend:   e.selected.Name(),
		Available: append([]string(nil), e.available...),
		Fallback:  e.terminal.Name(),
	}
}
