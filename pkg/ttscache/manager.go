package ttscache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// Manager owns the artifact cache, the per-session sequencing state, and the
// generation driver. It is the explicit context object standing in for
// process-wide state: construct one per process, or one per test, and share
// it. All state is reached only through Manager operations.
type Manager struct {
	mu         sync.Mutex
	configured bool

	generator Generator
	config    Config
	cache     *ArtifactCache
	sessions  *SequenceCoordinator
	limiter   *rate.Limiter

	logger *log.Logger
}

// deps is a consistent snapshot of the Manager's wiring, taken once per
// operation so a concurrent Configure or Reset cannot tear it. Configure and
// Reset install fresh cache and coordinator objects, so work holding an old
// snapshot settles into state that is no longer reachable from the Manager.
type deps struct {
	cache     *ArtifactCache
	sessions  *SequenceCoordinator
	generator Generator
	config    Config
	limiter   *rate.Limiter
}

// New creates a configured Manager. Prefer New for wiring at startup and
// Configure for reconfiguring an existing instance.
func New(generator Generator, cfg Config) (*Manager, error) {
	m := &Manager{}
	if err := m.Configure(generator, cfg); err != nil {
		return nil, err
	}
	return m, nil
}

// Configure installs the generation function and cache bounds, replacing any
// previous state. Until Configure succeeds every other operation is a safe
// no-op.
func (m *Manager) Configure(generator Generator, cfg Config) error {
	if generator == nil {
		return fmt.Errorf("%w: generator is nil", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.generator = generator
	m.config = cfg
	m.cache = NewArtifactCache(cfg.MaxCacheBytes, cfg.MaxEntries)
	m.sessions = NewSequenceCoordinator()
	if cfg.GenerationRate > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(cfg.GenerationRate), 1)
	} else {
		m.limiter = nil
	}
	m.configured = true

	return nil
}

// SetLogger replaces the Manager's logger. The default is log.Default().
func (m *Manager) SetLogger(logger *log.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}

func (m *Manager) log() *log.Logger {
	m.mu.Lock()
	logger := m.logger
	m.mu.Unlock()
	if logger != nil {
		return logger
	}
	return log.Default()
}

// deps snapshots the Manager wiring. The bool is false, with a warning
// logged, when the Manager is not configured.
func (m *Manager) deps(op string) (deps, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.configured {
		logger := m.logger
		if logger == nil {
			logger = log.Default()
		}
		logger.Warn("speech cache not configured", "op", op)
		return deps{}, false
	}
	return deps{
		cache:     m.cache,
		sessions:  m.sessions,
		generator: m.generator,
		config:    m.config,
		limiter:   m.limiter,
	}, true
}

// Reset clears all cache entries, session defaults, sequences, and in-flight
// tracking. Idempotent. The cache and coordinator are replaced outright, so
// generation calls already in flight settle their waiters but write their
// outcome into the superseded cache, never the fresh one.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.configured {
		return
	}
	m.cache = NewArtifactCache(m.config.MaxCacheBytes, m.config.MaxEntries)
	m.sessions = NewSequenceCoordinator()
}

// Stats returns a snapshot of cache occupancy. Zero value when unconfigured.
func (m *Manager) Stats() Stats {
	d, ok := m.deps("stats")
	if !ok {
		return Stats{}
	}
	return d.cache.Stats()
}

// IsCompleted reports whether the artifact for the given request fields is
// cached and complete.
func (m *Manager) IsCompleted(service, language, voice, text string) bool {
	d, ok := m.deps("isCompleted")
	if !ok {
		return false
	}
	return d.cache.IsCompleted(FingerprintOf(Request{Service: service, Language: language, Voice: voice, Text: text}))
}

// IsPending reports whether generation for the given request fields is still
// in flight.
func (m *Manager) IsPending(service, language, voice, text string) bool {
	d, ok := m.deps("isPending")
	if !ok {
		return false
	}
	return d.cache.IsPending(FingerprintOf(Request{Service: service, Language: language, Voice: voice, Text: text}))
}

// SetSessionDefaults records the generation parameters used by Preload for
// the session. Latest call wins.
func (m *Manager) SetSessionDefaults(sessionID, service, language, voice string) {
	d, ok := m.deps("setSessionDefaults")
	if !ok {
		return
	}
	d.sessions.RecordDefaults(sessionID, service, language, voice)
}

// Preload starts generation for text using the session's recorded defaults.
// Fire and forget: existing pending or completed work is never duplicated,
// and outcomes land in the cache, never at the caller. Without recorded
// defaults the call logs a warning and does nothing.
func (m *Manager) Preload(text, sessionID string) {
	d, ok := m.deps("preload")
	if !ok {
		return
	}
	service, language, voice, ok := d.sessions.Defaults(sessionID)
	if !ok {
		m.log().Warn("preload skipped", "session", sessionID, "error", ErrMissingSessionDefaults)
		return
	}
	m.start(d, Request{Service: service, Language: language, Voice: voice, Text: text}, sessionID)
}

// PreloadRequest starts generation for a fully specified request without
// touching the session's defaults. Same fire-and-forget semantics as
// Preload.
func (m *Manager) PreloadRequest(req Request, sessionID string) {
	d, ok := m.deps("preload")
	if !ok {
		return
	}
	m.start(d, req, sessionID)
}

// Request records the session defaults, ensures generation for the request
// has been started, waits on the session's ordering barrier, and returns the
// artifact. Requests issued on one session resolve in issue order even when
// generation completes out of order. Failures and timeouts come back as
// (nil, error) with the failure recorded in cache state; the generation
// function is never retried automatically.
func (m *Manager) Request(ctx context.Context, service, language, voice, text, sessionID string) (*Artifact, error) {
	d, ok := m.deps("request")
	if !ok {
		return nil, ErrNotConfigured
	}

	d.sessions.RecordDefaults(sessionID, service, language, voice)
	req := Request{Service: service, Language: language, Voice: voice, Text: text}
	fp := FingerprintOf(req)

	if _, tracked := d.cache.Lookup(fp); tracked {
		d.cache.recordHit()
	} else {
		d.cache.recordMiss()
		m.start(d, req, sessionID)
	}

	if err := d.sessions.Barrier(ctx, sessionID, fp, m.settledWaiter(d)); err != nil {
		return nil, err
	}

	if e, ok := d.cache.Lookup(fp); ok {
		if e.Status == StatusCompleted && e.Artifact != nil {
			return e.Artifact, nil
		}
		if e.op != nil {
			return e.op.wait(ctx)
		}
	}

	// The entry vanished mid-wait (evicted); issue the call directly under
	// the usual timeout policy and record the terminal outcome.
	op, started := m.track(d, req, fp, sessionID)
	if started {
		go m.generate(d, req, fp, op)
	}
	return op.wait(ctx)
}

// start begins the generation path for req unless its fingerprint is already
// tracked in any status.
func (m *Manager) start(d deps, req Request, sessionID string) {
	fp := FingerprintOf(req)
	op, started := m.track(d, req, fp, sessionID)
	if !started {
		return
	}
	go m.generate(d, req, fp, op)
}

// track inserts a pending entry and enqueues fp on the session sequence. If
// the fingerprint is already tracked the existing handle is returned and
// started is false.
func (m *Manager) track(d deps, req Request, fp Fingerprint, sessionID string) (op *operation, started bool) {
	op = newOperation()
	added, evicted := d.cache.Track(fp, newPendingEntry(op))
	m.prune(d, evicted)
	if !added {
		if e, ok := d.cache.Lookup(fp); ok && e.op != nil {
			return e.op, false
		}
		// Tracked but handle already dropped; treat as settled-empty.
		op.settle(nil, ErrGenerationFailed)
		return op, false
	}
	d.sessions.Enqueue(sessionID, fp)
	m.log().Debug("generation started",
		"service", req.Service,
		"language", req.Language,
		"voice", req.Voice,
		"fingerprint", fp,
		"session", sessionID)
	return op, true
}

type genResult struct {
	artifact *Artifact
	err      error
}

// generate races one generation call against the configured timeout and
// settles the entry exactly once. On timeout the underlying call is
// abandoned, not cancelled; its late settlement is ignored.
func (m *Manager) generate(d deps, req Request, fp Fingerprint, op *operation) {
	if d.limiter != nil {
		if err := d.limiter.Wait(context.Background()); err != nil {
			m.finish(d, req, fp, op, nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err))
			return
		}
	}

	result := make(chan genResult, 1)
	go func() {
		artifact, err := d.generator.Generate(context.Background(), req)
		result <- genResult{artifact: artifact, err: err}
	}()

	timer := time.NewTimer(d.config.GenerationTimeout)
	defer timer.Stop()

	select {
	case r := <-result:
		if r.err != nil {
			m.finish(d, req, fp, op, nil, fmt.Errorf("%w: %v", ErrGenerationFailed, r.err))
			return
		}
		if r.artifact == nil {
			m.finish(d, req, fp, op, nil, ErrEmptyResult)
			return
		}
		m.finish(d, req, fp, op, r.artifact, nil)
	case <-timer.C:
		m.finish(d, req, fp, op, nil, ErrGenerationTimeout)
	}
}

// finish settles the handle and replaces the pending entry with its terminal
// state. Settlements that lose the race never reach the cache; settlements
// racing a Reset land in the snapshot's cache, which Reset has already
// detached from the Manager.
func (m *Manager) finish(d deps, req Request, fp Fingerprint, op *operation, artifact *Artifact, err error) {
	if !op.settle(artifact, err) {
		return
	}

	var e *Entry
	if err != nil {
		m.log().Error("generation failed",
			"service", req.Service,
			"voice", req.Voice,
			"fingerprint", fp,
			"error", err)
		e = newFailedEntry(op)
	} else {
		size := estimateArtifactSize(artifact, d.config.FallbackArtifactSize)
		m.log().Debug("generation completed",
			"fingerprint", fp,
			"bytes", size)
		e = newCompletedEntry(artifact, size, op)
	}
	m.prune(d, d.cache.Put(fp, e))
}

// prune removes evicted fingerprints from every session sequence.
func (m *Manager) prune(d deps, evicted []Fingerprint) {
	for _, fp := range evicted {
		d.sessions.Remove(fp)
		m.log().Debug("entry evicted", "fingerprint", fp)
	}
}

// settledWaiter adapts the cache to the barrier: it blocks until the given
// fingerprint reaches a terminal status, swallowing generation failures.
// Absent or evicted fingerprints count as settled.
func (m *Manager) settledWaiter(d deps) func(context.Context, Fingerprint) error {
	return func(ctx context.Context, fp Fingerprint) error {
		e, ok := d.cache.Lookup(fp)
		if !ok || e.Status != StatusPending || e.op == nil {
			return nil
		}
		return e.op.awaitSettled(ctx)
	}
}
