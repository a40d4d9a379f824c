// Package migrations embeds the SQL schema migrations for the feed
// store. Files run in lexical order; never edit an applied migration.
package migrations

import "embed"

// FS holds the *.up.sql migration files embedded at compile time.
//
//go:embed *.sql
var FS embed.FS
