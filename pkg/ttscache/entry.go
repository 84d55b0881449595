package ttscache

import (
	"encoding/json"
	"time"
)

// Entry is one cache slot. Entries are replaced wholesale on every state
// transition and never mutated in place, so a pointer obtained from Lookup
// is a consistent snapshot.
type Entry struct {
	Status    Status
	Artifact  *Artifact // non-nil iff StatusCompleted
	SizeBytes int64     // 0 while pending or failed
	CreatedAt time.Time // insertion or overwrite time, drives eviction order

	op *operation // retained after settlement for late waiters
}

func newPendingEntry(op *operation) *Entry {
	return &Entry{
		Status:    StatusPending,
		CreatedAt: time.Now(),
		op:        op,
	}
}

func newCompletedEntry(artifact *Artifact, size int64, op *operation) *Entry {
	return &Entry{
		Status:    StatusCompleted,
		Artifact:  artifact,
		SizeBytes: size,
		CreatedAt: time.Now(),
		op:        op,
	}
}

func newFailedEntry(op *operation) *Entry {
	return &Entry{
		Status:    StatusFailed,
		CreatedAt: time.Now(),
		op:        op,
	}
}

// estimateArtifactSize measures the serialized footprint of an artifact:
// JSON-encoded metadata plus the raw audio payload. Unmeasurable artifacts
// are charged the fallback size so a put never fails.
func estimateArtifactSize(artifact *Artifact, fallback int64) int64 {
	if artifact == nil {
		return fallback
	}
	meta, err := json.Marshal(artifact)
	if err != nil {
		return fallback
	}
	return int64(len(meta)) + int64(len(artifact.Audio))
}
