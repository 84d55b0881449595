package ttscache

import (
	"context"
	"time"
)

// Request identifies one generation call. The four fields together form the
// cache identity of the resulting artifact; no normalization is applied.
type Request struct {
	Service  string
	Language string
	Voice    string
	Text     string
}

// Fingerprint returns the deterministic cache key for the request.
func (r Request) Fingerprint() Fingerprint {
	return FingerprintOf(r)
}

// Artifact is the product of one generation call.
type Artifact struct {
	Audio      []byte        `json:"-"` // Audio payload (not serialized to JSON)
	Format     string        `json:"format,omitempty"`
	SampleRate int           `json:"sample_rate,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`

	// Request identity, carried for diagnostics and tests.
	Service  string `json:"service"`
	Language string `json:"language"`
	Voice    string `json:"voice"`
	Text     string `json:"text"`
}

// Generator produces artifacts. Implementations may block; the Manager
// applies its own timeout policy around every call.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Artifact, error)
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (*Artifact, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (*Artifact, error) {
	return f(ctx, req)
}

// Status is the lifecycle state of a cache entry.
type Status int

const (
	// StatusPending means the generation call is in flight.
	StatusPending Status = iota

	// StatusCompleted means the call settled with an artifact.
	StatusCompleted

	// StatusFailed means the call settled with an error or timed out.
	StatusFailed
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status permits no further transition.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Stats holds a snapshot of cache occupancy and counters.
type Stats struct {
	// Configuration
	MaxEntries int   // Maximum entry count
	MaxSize    int64 // Maximum aggregate size in bytes

	// Current state
	EntryCount  int   // Number of entries in the cache
	CurrentSize int64 // Aggregate size of all entries in bytes

	// Performance counters
	Hits      int64 // Requests that found tracked work
	Misses    int64 // Requests that had to start generation
	Evictions int64 // Entries removed by size or count enforcement
}
