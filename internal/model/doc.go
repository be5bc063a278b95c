// Package model defines shared data types used across the order sync engine.
//
// Conventions:
//   - Money: integer cents
//   - Timestamps: int64 microseconds since Unix epoch
//   - IDs: opaque strings assigned by the order service
package model
