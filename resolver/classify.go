package resolver

import (
	"net/url"
	"path"
	"strings"
)

// mimeByExt maps lowercase file extensions to MIME types for the resource
// kinds a capture embeds.
var mimeByExt = map[string]string{
	".avif":  "image/avif",
	".bmp":   "image/bmp",
	".gif":   "image/gif",
	".ico":   "image/vnd.microsoft.icon",
	".jpeg":  "image/jpeg",
	".jpg":   "image/jpeg",
	".png":   "image/png",
	".svg":   "image/svg+xml",
	".tiff":  "image/tiff",
	".webp":  "image/webp",
	".eot":   "application/vnd.ms-fontobject",
	".otf":   "font/otf",
	".ttf":   "font/ttf",
	".woff":  "font/woff",
	".woff2": "font/woff2",
}

// Classify derives a MIME type from a URL string alone. It is a pure
// function: no I/O, no sniffing. Unknown extensions return "".
func Classify(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	return mimeByExt[ext]
}
