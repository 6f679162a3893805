package web

import "embed"

// TemplatesFS embeds the application shell template.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds the browser assets served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
