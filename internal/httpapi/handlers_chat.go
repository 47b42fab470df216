package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/glassboxlabs/glasstrace/agent"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	UserInput string `json:"user_input"`
}

// handleChat starts one agent run and streams its committed events as
// NDJSON until the terminal event. The run itself executes on a context
// detached from the request: a dropped consumer never aborts a run.
func (h *handlers) handleChat(w http.ResponseWriter, r *http.Request) {
	if !h.ensureRuntime(w) {
		return
	}

	var request chatRequest
	if err := decodeJSONBody(r, &request); err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}
	if request.UserInput == "" {
		writeInvalidRequest(w, "user_input is required")
		return
	}

	sessionID := uuid.New()
	if request.SessionID != "" {
		parsed, err := uuid.Parse(request.SessionID)
		if err != nil {
			writeInvalidRequest(w, "session_id must be a UUID")
			return
		}
		sessionID = parsed
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errorCodeRuntime, "streaming is unsupported by response writer")
		return
	}

	// Subscribe before launching so the start event cannot be missed. The
	// trace id is pre-assigned so this consumer follows exactly its own run,
	// never a concurrent run in the same session.
	subscription := h.runtime.Publisher.Subscribe(sessionID)
	defer subscription.Cancel()

	traceID := uuid.New()
	runCtx := context.WithoutCancel(r.Context())
	go func() {
		_, _ = h.runtime.Loop.Run(runCtx, agent.RunInput{
			TraceID:   traceID,
			SessionID: sessionID,
			UserInput: request.UserInput,
		})
	}()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	encoder := json.NewEncoder(w)

	// Events of concurrent runs in the same session share the feed; only the
	// run launched above is streamed.
	wantTrace := traceID.String()
	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-subscription.Events():
			if !open {
				return
			}
			if event.TraceID != wantTrace {
				continue
			}
			if err := encoder.Encode(event); err != nil {
				return
			}
			flusher.Flush()
			if agent.IsTerminalEvent(event) {
				return
			}
		}
	}
}
