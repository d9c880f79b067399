// Package routing translates user-facing subscription commands into calls
// on the matching typed hook of a venue adapter.
//
// The router tracks active subscriptions by key, makes duplicate
// subscribes a deterministic no-op, falls back to the adapter's generic
// Subscribe/Unsubscribe hooks when a typed hook is a declared capability
// gap, and keeps unsubscribes of unknown keys side-effect free.
package routing
