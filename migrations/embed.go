// Package migrations embeds the SQL schema so the binary and the
// integration tests apply the same files.
package migrations

import "embed"

// FS holds the *.up.sql / *.down.sql files in golang-migrate naming.
//
//go:embed *.sql
var FS embed.FS
