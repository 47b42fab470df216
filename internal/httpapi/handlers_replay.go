package httpapi

import (
	"net/http"
)

// handleTraceReplay re-runs a historical trace's input as a fresh run and
// returns the id linkage. The replayed run streams to any live session
// subscribers like an ordinary run; its trace is inspectable afterwards.
func (h *handlers) handleTraceReplay(w http.ResponseWriter, r *http.Request) {
	if !h.ensureRuntime(w) {
		return
	}

	traceID, err := pathUUID(r, "trace_id")
	if err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	result, err := h.runtime.Replay.Replay(r.Context(), traceID)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}
