// Package recorder implements batch recorders that persist streamed
// market data to PostgreSQL/TimescaleDB.
//
// Recorders:
//   - Trade recorder (trades table, keyed by trade id)
//   - Quote recorder (quotes table, keyed by instrument + event time)
//   - Bar recorder (bars table, keyed by bar type + close time)
//
// All recorders use append-only semantics (never update, only insert)
// and drain their engine buffer independently, so a slow table never
// stalls the ingestion path.
package recorder
