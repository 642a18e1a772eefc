// Package appfs exposes embedded application assets: database migrations,
// email templates and static data files.
package appfs

import "embed"

//go:embed migrations templates assets templates/email/_base.txt templates/email/_base.gohtml
var FS embed.FS
