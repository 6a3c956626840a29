// Package migrations embeds the sandbox backend's Postgres schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
