// Package lifecycle manages venue adapters through their connected life.
//
// The manager connects registered adapters in parallel on Start, retries
// transport failures with exponential backoff, and tears everything down
// on Stop. An adapter whose required hooks are unimplemented is marked
// defective and never retried; unsupported Reset/Dispose hooks are
// skipped as declared capability gaps.
package lifecycle
