// Package httpapi exposes the runtime over HTTP: a streaming chat endpoint,
// trace inspection, and replay.
package httpapi

import (
	"net/http"

	"github.com/glassboxlabs/glasstrace/internal/runtimewire"
)

type handlers struct {
	runtime *runtimewire.Runtime
}

func NewRouter(runtime *runtimewire.Runtime) http.Handler {
	h := &handlers{runtime: runtime}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat", h.handleChat)
	mux.HandleFunc("GET /v1/traces", h.handleTraceList)
	mux.HandleFunc("GET /v1/traces/{trace_id}", h.handleTraceQuery)
	mux.HandleFunc("POST /v1/traces/{trace_id}/replay", h.handleTraceReplay)
	mux.HandleFunc("GET /v1/sessions/{session_id}/traces", h.handleSessionTraces)
	return mux
}

func (h *handlers) ensureRuntime(w http.ResponseWriter) bool {
	if h.runtime == nil {
		writeError(w, http.StatusInternalServerError, errorCodeRuntime, "runtime is not configured")
		return false
	}
	return true
}
