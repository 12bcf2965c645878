// Package migrations holds the SQL schema applied by database.Migrator.
package migrations

import "embed"

// FS contains every versioned migration file
//
//go:embed *.sql
var FS embed.FS
