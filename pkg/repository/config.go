// Package repository is the C6 persistence layer: raw pgx-backed reads
// and writes against Postgres, deduplication lookups, project config
// locking, and discovery-query history. No ORM — see DESIGN.md for why
// Ent was dropped in favor of hand-written SQL.
package repository

import "time"

// Config holds database connection and pool parameters.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}
