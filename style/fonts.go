package style

import (
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

// FontFaces extracts the @font-face rules of the given stylesheet texts,
// re-serialised as standalone rule blocks. Unparseable sheets are
// skipped: a missing font degrades the artifact, it does not break it.
func FontFaces(texts ...string) []string {
	var out []string
	for _, text := range texts {
		ss, err := parser.Parse(text)
		if err != nil {
			continue
		}
		for _, r := range ss.Rules {
			if r.Kind != css.AtRule || r.Name != "@font-face" || len(r.Declarations) == 0 {
				continue
			}
			var sb strings.Builder
			sb.WriteString("@font-face { ")
			for i, d := range r.Declarations {
				if i > 0 {
					sb.WriteString(" ")
				}
				sb.WriteString(d.Property)
				sb.WriteString(": ")
				sb.WriteString(d.Value)
				if d.Important {
					sb.WriteString(" !important")
				}
				sb.WriteString(";")
			}
			sb.WriteString(" }")
			out = append(out, sb.String())
		}
	}
	return out
}
