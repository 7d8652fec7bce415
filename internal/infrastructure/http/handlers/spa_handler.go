package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// SPAHandler serves a single-page application's static export as the
// fallback for unmatched routes: an exact file, then path.html, then
// path/index.html, then the root index.html so client-side routing can take
// over. API paths never fall through to the SPA.
type SPAHandler struct {
	dir string
}

func NewSPAHandler(dir string) *SPAHandler {
	return &SPAHandler{dir: dir}
}

var apiPrefixes = []string{"/v1/", "/health", "/metrics"}

func (h *SPAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	for _, prefix := range apiPrefixes {
		if strings.HasPrefix(path, prefix) {
			writeErr(w, http.StatusNotFound, "", "not found")
			return
		}
	}
	if h.dir == "" || !dirExists(h.dir) {
		writeErr(w, http.StatusNotFound, "", "not found")
		return
	}

	clean := filepath.Clean("/" + strings.TrimPrefix(path, "/"))
	rel := strings.TrimPrefix(clean, "/")

	for _, candidate := range []string{
		filepath.Join(h.dir, rel),
		filepath.Join(h.dir, rel+".html"),
		filepath.Join(h.dir, rel, "index.html"),
	} {
		if isFile(candidate) {
			http.ServeFile(w, r, candidate)
			return
		}
	}

	index := filepath.Join(h.dir, "index.html")
	if isFile(index) {
		http.ServeFile(w, r, index)
		return
	}
	writeErr(w, http.StatusNotFound, "", "not found")
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
