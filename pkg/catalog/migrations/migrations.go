// Package migrations embeds the catalog schema migrations applied by goose.
package migrations

import "embed"

// Migrations holds the goose SQL migrations, applied in file name order
//
//go:embed *.sql
var Migrations embed.FS
