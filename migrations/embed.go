// Package migrations embeds the SQL schema for the device database so the
// binary can migrate without the files on disk.
package migrations

import "embed"

// FS holds every migration at its root, ready for database.DB.Migrate.
//
//go:embed *.sql
var FS embed.FS
