// Package mock provides a deterministic speech generator for testing.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/ttscache/pkg/ttscache"
)

const (
	defaultDelay   = 10 * time.Millisecond
	wordsPerMinute = 150
	sampleRate     = 22050
)

// Engine implements ttscache.Generator with configurable latency and
// failure injection.
type Engine struct {
	mu sync.Mutex

	delay      time.Duration
	textDelays map[string]time.Duration

	failErr   error
	failTexts map[string]error

	calls       int
	callsByText map[string]int
}

// New creates a mock engine with the default processing delay.
func New() *Engine {
	return &Engine{
		delay:       defaultDelay,
		textDelays:  make(map[string]time.Duration),
		failTexts:   make(map[string]error),
		callsByText: make(map[string]int),
	}
}

// SetDelay sets the simulated processing delay for all texts.
func (e *Engine) SetDelay(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delay = d
}

// SetTextDelay overrides the processing delay for one text.
func (e *Engine) SetTextDelay(text string, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.textDelays[text] = d
}

// FailWith makes every generation call fail with err. Pass nil to clear.
func (e *Engine) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failErr = err
}

// FailText makes generation for one text fail with err.
func (e *Engine) FailText(text string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failTexts[text] = err
}

// Calls returns the total number of generation calls issued.
func (e *Engine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// CallsFor returns the number of generation calls issued for one text.
func (e *Engine) CallsFor(text string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callsByText[text]
}

// Generate simulates audio generation. The payload is deterministic silence
// sized from a words-per-minute duration estimate, tagged with the request
// fields so tests can identify which text produced it.
func (e *Engine) Generate(ctx context.Context, req ttscache.Request) (*ttscache.Artifact, error) {
	e.mu.Lock()
	e.calls++
	e.callsByText[req.Text]++
	delay := e.delay
	if d, ok := e.textDelays[req.Text]; ok {
		delay = d
	}
	failErr := e.failErr
	if err, ok := e.failTexts[req.Text]; ok {
		failErr = err
	}
	e.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if failErr != nil {
		return nil, failErr
	}

	duration := estimateDuration(req.Text)
	samples := int(duration.Seconds() * float64(sampleRate))
	audio := make([]byte, samples*2) // 16-bit mono

	return &ttscache.Artifact{
		Audio:      audio,
		Format:     "pcm16",
		SampleRate: sampleRate,
		Duration:   duration,
		Service:    req.Service,
		Language:   req.Language,
		Voice:      req.Voice,
		Text:       req.Text,
	}, nil
}

// estimateDuration estimates speech duration from word count.
func estimateDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		words = 1
	}
	seconds := float64(words) / (wordsPerMinute / 60.0)
	return time.Duration(seconds * float64(time.Second))
}
