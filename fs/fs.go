// Package appfs embeds the static assets shipped with the binaries:
// database migrations, email templates, the program catalog and the common passwords list.
package appfs

import "embed"

//go:embed migrations/*.sql templates/email/* catalog/*.yaml assets/*
var FS embed.FS
