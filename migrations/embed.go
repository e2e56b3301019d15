// Package migrations embeds the schema and seed SQL shipped with the
// binary.
package migrations

import "embed"

//go:embed *.sql seeds/*.sql
var FS embed.FS
