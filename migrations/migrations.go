// Package migrations embeds the goose SQL migration files so the server
// binary can migrate its own database at startup.
package migrations

import "embed"

// FS holds the embedded SQL migration files.
//
//go:embed *.sql
var FS embed.FS
