// Package migrations holds the goose SQL migrations for the Postgres plan
// store. The serve command and the migrate subcommand read them from FS.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
