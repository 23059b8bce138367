// Package migrations embeds the storefront-auth SQL schema into the binary
// so the service can migrate without the files present on disk.
package migrations

import "embed"

// FS holds every *.sql migration at its root.
//
//go:embed *.sql
var FS embed.FS
