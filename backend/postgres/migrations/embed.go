package migrations

import "embed"

// FS contains the embedded Postgres schema.
//
//go:embed *.sql
var FS embed.FS
