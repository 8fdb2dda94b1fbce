// Package migrations embeds the SQL schema migrations consumed by
// cmd/migrate via the iofs source driver.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
