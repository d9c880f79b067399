// Package wsfeed implements a MarketDataClient for venues exposing a
// JSON WebSocket streaming API plus a REST history API.
//
// The adapter:
//   - Maintains one WebSocket session with ping/pong liveness monitoring
//   - Sends subscribe/unsubscribe commands correlated by command id
//   - Parses stream messages into typed events for the ingestion engine
//   - Serves history requests over REST, delivering results through the
//     ingestion path tagged with the caller's correlation id
package wsfeed
