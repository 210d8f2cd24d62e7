// Package migrations embeds the SQL schema files into the binary so the
// service can migrate its own database at startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
