// Package dispatch implements the correlation-tracked request path.
//
// The dispatcher generates a correlation identifier per request, invokes
// the matching request hook on the adapter, and matches the response the
// adapter later delivers through the ingestion path back to the caller.
// A dispatched call only confirms the request was accepted; data arrives
// asynchronously on the request handle.
package dispatch
