// Package migrations embeds the schema of the local vector index.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
