package server

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

// The built frontend is embedded so the server ships as one binary
//
//go:embed all:public
var assets embed.FS

// contentTypes maps asset extensions the frontend build produces.
// Anything else is served as plain text.
var contentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".js":   "application/javascript",
	".css":  "text/css",
	".svg":  "image/svg+xml",
	".png":  "image/png",
	".ico":  "image/x-icon",
}

// serveAsset serves the embedded frontend. Unknown paths fall back to
// index.html so client side routes resolve.
func (s *Server) serveAsset(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.Status(http.StatusNotFound)
		return
	}

	name := strings.TrimPrefix(path.Clean(c.Request.URL.Path), "/")
	if name == "" {
		name = "index.html"
	}

	data, err := fs.ReadFile(assets, path.Join("public", name))
	if err != nil {
		name = "index.html"
		data, err = fs.ReadFile(assets, "public/index.html")
		if err != nil {
			c.Status(http.StatusNotFound)
			return
		}
	}

	contentType, ok := contentTypes[path.Ext(name)]
	if !ok {
		contentType = "text/plain"
	}
	c.Data(http.StatusOK, contentType, data)
}
