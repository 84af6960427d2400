// Package migrations embeds the SQL schema migrations so both binaries can
// apply them without shipping files next to the executable.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
