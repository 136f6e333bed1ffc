package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
)

// spaHandler serves files from dir and falls back to dir/index.html so the
// frontend's client-side routes resolve. Without an index it answers 404.
func spaHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}

		index := filepath.Join(dir, "index.html")
		if _, err := os.Stat(index); err != nil {
			writeError(w, http.StatusNotFound, errNoStatic)
			return
		}
		http.ServeFile(w, r, index)
	})
}
