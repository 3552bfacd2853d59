// Package migrations ships the schema for both databases inside the
// binary and applies it at startup.
package migrations

import "embed"

// PostgresFS holds the PostgreSQL schema files.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the ClickHouse schema files.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
