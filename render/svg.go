// Package render turns a finished capture clone into downstream artifact
// forms: a portable SVG vector document wrapping the serialised clone,
// and raster images produced by loading that document into headless
// Chrome and screenshotting it.
package render

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/domsnap/dom"
)

// SVG wraps the serialised clone in a self-contained SVG vector document.
// The markup is embedded through a foreignObject so the artifact renders
// anywhere SVG does, with no dependency on the originating page. Zero
// dimensions omit the width/height/viewBox attributes and leave sizing to
// the consumer.
func SVG(n *dom.Node, w, h int) string {
	var sb strings.Builder
	sb.WriteString(`<svg xmlns="http://www.w3.org/2000/svg"`)
	if w > 0 && h > 0 {
		fmt.Fprintf(&sb, ` width="%d" height="%d" viewBox="0 0 %d %d"`, w, h, w, h)
	}
	sb.WriteString(`><foreignObject x="0" y="0" width="100%" height="100%">`)
	sb.WriteString(`<div xmlns="http://www.w3.org/1999/xhtml">`)
	sb.WriteString(dom.Render(n))
	sb.WriteString(`</div></foreignObject></svg>`)
	return sb.String()
}

// Page wraps an artifact fragment in a minimal standalone HTML document,
// optionally painting a background behind it. The raster path loads this
// into the browser before screenshotting.
func Page(fragment, background string) string {
	var sb strings.Builder
	sb.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><style>html,body{margin:0;padding:0}`)
	if background != "" {
		sb.WriteString("body{background:")
		sb.WriteString(background)
		sb.WriteString("}")
	}
	sb.WriteString(`</style></head><body>`)
	sb.WriteString(fragment)
	sb.WriteString(`</body></html>`)
	return sb.String()
}
