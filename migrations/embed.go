// Package migrations embeds the SQL schema applied by the seed tool.
package migrations

import "embed"

// FS holds the ordered *.sql scripts.
//
//go:embed *.sql
var FS embed.FS
