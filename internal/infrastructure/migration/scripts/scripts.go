// Package scripts embeds the goose SQL migrations.
package scripts

import "embed"

//go:embed *.sql
var FS embed.FS
