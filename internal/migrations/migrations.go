// Package migrations embeds the numbered SQL migrations applied by goose.
// Files are named NNN_description.sql and are only ever added, never edited.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
