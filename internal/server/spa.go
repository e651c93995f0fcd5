package server

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strings"
)

// handleSPA serves the tasting UI build from dir, falling back to
// index.html for paths that are client-side routes.
func handleSPA(dir string) http.HandlerFunc {
	root := os.DirFS(dir)
	files := http.FileServerFS(root)

	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		if name == "" {
			name = "."
		}
		if info, err := fs.Stat(root, name); err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		} else if err != nil && !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrInvalid) {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		http.ServeFileFS(w, r, root, "index.html")
	}
}
