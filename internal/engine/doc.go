// Package engine implements the ingestion path between venue adapters and
// the rest of the framework.
//
// Adapters publish typed data events and correlation-tagged responses
// through a Publisher. The engine:
//   - Fans data events out to kind-keyed subscriber buffers
//   - Forwards response events to the registered response sink
//     (the request dispatcher)
//   - Absorbs bursts with a growable input buffer
package engine
