// Package migrations embeds the SQLite schema applied at startup
package migrations

import "embed"

// FS holds the numbered schema files
//
//go:embed *.sql
var FS embed.FS
