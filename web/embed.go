// Package web embeds the back office screens: layouts, pages, fragments, the
// receipt document and the page script.
package web

import (
	"embed"
	"io/fs"
)

// Templates holds every html/template file under templates/.
//
//go:embed templates/**/*.html
var Templates embed.FS

//go:embed static/**/*
var static embed.FS

// StaticFS serves static/ as the root, matching the /static/ URL prefix.
func StaticFS() (fs.FS, error) {
	return fs.Sub(static, "static")
}
