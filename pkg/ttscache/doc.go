// Package ttscache caches the results of an expensive, asynchronous
// text-to-speech generation function and sequences their delivery.
//
// A Manager owns a bounded artifact cache and per-session ordering state.
// Callers record per-session generation defaults, preload text ahead of
// need, and request artifacts; requests issued on the same session are
// delivered in issue order even when the underlying generation calls
// complete out of order. Identical requests are generated at most once
// while a result is cached or in flight.
package ttscache
