// Package model defines shared data types used across the live data framework.
//
// Conventions:
//   - Prices and sizes: float64 in venue units
//   - Timestamps: int64 microseconds since Unix epoch (TsEvent = venue time,
//     TsRecv = local receive time)
//   - IDs: InstrumentID for instruments, uuid.UUID for trades and
//     request correlation
package model
