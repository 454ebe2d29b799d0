// Package kernel holds the per-sample envelope step and the block kernels
// built on it, selected at runtime by CPU features.
package kernel

import (
	"sync"

	"github.com/cwbudde/algo-vecmath/cpu"
)

// Coefficients drive one envelope step.
type Coefficients struct {
	// Threshold is the linear chunk-peak level above which the target
	// level latches to 1.
	Threshold float64
	// Attack and Release are one-pole coefficients in [0, 1).
	Attack  float64
	Release float64
}

// State is the per-channel follower state.
type State struct {
	Env        float64
	ChunkMax   float64
	ChunkCount int
	Level      float64
}

// ProcessFn runs the follower over a block. env and in are planar with one
// entry per state; env receives the envelope value of every sample.
type ProcessFn func(c Coefficients, chunkSize int, states []State, env, in [][]float64)

// OpEntry is one registered kernel implementation.
type OpEntry struct {
	Name      string
	SIMDLevel cpu.SIMDLevel
	Priority  int
	Process   ProcessFn
}

// OpRegistry stores available implementations.
type OpRegistry struct {
	mu      sync.RWMutex
	entries []OpEntry
	sorted  bool
}

// Global is the default envelope kernel registry.
var Global = &OpRegistry{}

// Register adds an implementation entry.
func (r *OpRegistry) Register(entry OpEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry)
	r.sorted = false
}

// Lookup returns the highest-priority implementation supported by features.
func (r *OpRegistry) Lookup(features cpu.Features) *OpEntry {
	r.mu.Lock()
	if !r.sorted {
		r.sortByPriority()
		r.sorted = true
	}
	r.mu.Unlock()

	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.entries {
		entry := &r.entries[i]
		if cpu.Supports(features, entry.SIMDLevel) {
			return entry
		}
	}

	return nil
}

// Find returns the entry with the given name, or nil.
func (r *OpRegistry) Find(name string) *OpEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.entries {
		if r.entries[i].Name == name {
			return &r.entries[i]
		}
	}

	return nil
}

func (r *OpRegistry) sortByPriority() {
	for i := 1; i < len(r.entries); i++ {
		key := r.entries[i]
		j := i - 1

		for j >= 0 && r.entries[j].Priority < key.Priority {
			r.entries[j+1] = r.entries[j]
			j--
		}

		r.entries[j+1] = key
	}
}

// ListEntries returns a copy of entries for tests/debugging.
func (r *OpRegistry) ListEntries() []OpEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]OpEntry, len(r.entries))
	copy(entries, r.entries)

	return entries
}
