package frontend

import "embed"

const viewsPattern = "views/*.html"

//go:embed views/*.html
var templateFS embed.FS
