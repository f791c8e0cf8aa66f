// Package pgmigrations embeds the SQL migrations for the build audit tables.
package pgmigrations

import "embed"

// FS holds the numbered up/down migration files.
//
//go:embed *.sql
var FS embed.FS
