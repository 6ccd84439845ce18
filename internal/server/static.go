package server

import (
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
)

const taskConfigFile = ".taskconfig.json"

var contentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".js":   "text/javascript; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".json": "application/json; charset=utf-8",
	".md":   "text/markdown; charset=utf-8",
}

type statusColumn struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Color string `json:"color"`
}

var defaultTaskConfig = map[string][]statusColumn{
	"statuses": {
		{Key: "backlog", Label: "BACKLOG", Color: "#6b7280"},
		{Key: "todo", Label: "TODO", Color: "#3b82f6"},
		{Key: "review", Label: "REVIEW", Color: "#eab308"},
		{Key: "done", Label: "DONE", Color: "#22c55e"},
	},
}

// static serves files from the doc root. Files under viewer/ that are
// missing locally are looked up in the alternate viewer root.
func (s *Server) static(c echo.Context) error {
	reqPath := c.Request().URL.Path
	if reqPath == "/" || reqPath == "" {
		reqPath = "/viewer/index.html"
	}

	rel := filepath.Clean(strings.TrimLeft(filepath.FromSlash(reqPath), string(filepath.Separator)))

	path, ok := within(s.cfg.Root, rel)
	if !ok {
		return c.String(http.StatusForbidden, "Forbidden")
	}

	exists, _ := s.cfg.FS.Exists(path)

	if !exists && rel == taskConfigFile {
		return c.JSON(http.StatusOK, defaultTaskConfig)
	}

	if !exists && s.cfg.AltViewerRoot != "" && strings.HasPrefix(rel, "viewer"+string(filepath.Separator)) {
		if alt, ok := within(s.cfg.AltViewerRoot, rel); ok {
			if altExists, _ := s.cfg.FS.Exists(alt); altExists {
				path = alt
			}
		}
	}

	return s.serveFile(c, path)
}

func (s *Server) serveFile(c echo.Context, path string) error {
	info, err := s.cfg.FS.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return c.String(http.StatusNotFound, "Not Found")
	}

	data, err := s.cfg.FS.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c.String(http.StatusNotFound, "Not Found")
		}

		return err
	}

	contentType, ok := contentTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		contentType = "application/octet-stream"
	}

	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")

	return c.Blob(http.StatusOK, contentType, data)
}

// within joins rel onto root and reports whether the result stays inside
// root.
func within(root, rel string) (string, bool) {
	root = filepath.Clean(root)
	path := filepath.Join(root, rel)

	if path != root && !strings.HasPrefix(path, root+string(filepath.Separator)) {
		return "", false
	}

	return path, true
}
