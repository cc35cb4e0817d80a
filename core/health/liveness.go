package health

import (
	"io"
	"net/http"
)

// Liveness indicates the process is running. No dependency checks.
func Liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ALIVE")
}
