// Package postgres provides PostgreSQL implementations of the store
// interfaces. Stores accept a store.DBTX so the same implementation runs
// against the pooled *sql.DB or a caller-owned *sql.Tx.
package postgres
