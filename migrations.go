package chatapp

import "embed"

// MigrationsFS holds the SQL migrations for every supported database driver,
// one subdirectory per driver.
//
//go:embed migrations
var MigrationsFS embed.FS
