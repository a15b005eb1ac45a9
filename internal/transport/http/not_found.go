package http

import "net/http"

// NotFound is the JSON fallback for unrouted paths, registered at "/".
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, codeNotFound, "not found")
}
