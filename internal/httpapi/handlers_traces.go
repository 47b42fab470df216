package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/glassboxlabs/glasstrace/agent"
	"github.com/glassboxlabs/glasstrace/tracestore/inmem"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type traceListResponse struct {
	Traces []agent.Trace `json:"traces"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

type traceQueryResponse struct {
	Trace agent.Trace  `json:"trace"`
	Steps []agent.Step `json:"steps"`
}

func (h *handlers) handleTraceList(w http.ResponseWriter, r *http.Request) {
	if !h.ensureRuntime(w) {
		return
	}

	filter, err := parseListFilter(r)
	if err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	traces, total, err := h.runtime.TraceStore.List(r.Context(), filter)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	if traces == nil {
		traces = []agent.Trace{}
	}

	writeJSON(w, http.StatusOK, traceListResponse{
		Traces: traces,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

func (h *handlers) handleTraceQuery(w http.ResponseWriter, r *http.Request) {
	if !h.ensureRuntime(w) {
		return
	}

	traceID, err := pathUUID(r, "trace_id")
	if err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	trace, err := h.runtime.TraceStore.Trace(r.Context(), traceID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	steps, err := h.runtime.TraceStore.Steps(r.Context(), traceID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	if steps == nil {
		steps = []agent.Step{}
	}

	writeJSON(w, http.StatusOK, traceQueryResponse{
		Trace: trace,
		Steps: steps,
	})
}

func (h *handlers) handleSessionTraces(w http.ResponseWriter, r *http.Request) {
	if !h.ensureRuntime(w) {
		return
	}

	sessionID, err := pathUUID(r, "session_id")
	if err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	filter, err := parseListFilter(r)
	if err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}
	filter.SessionID = sessionID

	traces, total, err := h.runtime.TraceStore.List(r.Context(), filter)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	if traces == nil {
		traces = []agent.Trace{}
	}

	writeJSON(w, http.StatusOK, traceListResponse{
		Traces: traces,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

func parseListFilter(r *http.Request) (inmem.ListFilter, error) {
	filter := inmem.ListFilter{Limit: defaultListLimit}
	query := r.URL.Query()

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return inmem.ListFilter{}, fmt.Errorf("limit must be a positive integer")
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
		filter.Limit = limit
	}

	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return inmem.ListFilter{}, fmt.Errorf("offset must be a non-negative integer")
		}
		filter.Offset = offset
	}

	if raw := query.Get("session_id"); raw != "" {
		sessionID, err := uuid.Parse(raw)
		if err != nil {
			return inmem.ListFilter{}, fmt.Errorf("session_id must be a UUID")
		}
		filter.SessionID = sessionID
	}

	return filter, nil
}
