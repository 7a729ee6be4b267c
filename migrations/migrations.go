// Package migrations embeds the PostgreSQL schema.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed schema/*.sql
var files embed.FS

// Schema holds the NNNN_name.up.sql / .down.sql pairs.
func Schema() fs.FS {
	sub, _ := fs.Sub(files, "schema")
	return sub
}
