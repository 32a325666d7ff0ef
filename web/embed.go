// Package web provides the embedded dashboard templates and static assets.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates static
var assets embed.FS

// TemplatesFS returns the HTML templates with "templates" as the root.
func TemplatesFS() (fs.FS, error) {
	return fs.Sub(assets, "templates")
}

// StaticFS returns the static assets (stylesheets) with "static" as the root,
// so files are accessed directly (e.g., "style.css").
func StaticFS() (fs.FS, error) {
	return fs.Sub(assets, "static")
}
