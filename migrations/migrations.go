// Package migrations embeds the SQL schema migrations so that binaries and
// tests can apply them without a checkout of the migrations directory.
package migrations

import "embed"

// FS holds every *.up.sql and *.down.sql file in golang-migrate naming.
//
//go:embed *.sql
var FS embed.FS
