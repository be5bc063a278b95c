// Package database provides the PostgreSQL read path for orders.
//
// It is an alternative to the REST reader for deployments that sit next to
// a read replica of the order service's database:
//   - Connect builds a pgx pool from config.
//   - OrderReader serves bulk reads, point reads and list queries.
package database
