package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/backend"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/coach"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/gateway/repository/chatlog"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/llm"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

const maxJSONBody = 16 << 20

// BackendHandler serves the history, chat log and similarity routes from
// the in-process repositories.
type BackendHandler struct {
	local *backend.Local
}

func NewBackendHandler(local *backend.Local) *BackendHandler {
	return &BackendHandler{local: local}
}

func (h *BackendHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	items, err := h.local.History(r.Context())
	if err != nil {
		log.Printf("handler: history: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch history")
		return
	}
	out := make([]backend.HistoryItem, 0, len(items))
	for _, o := range items {
		it := backend.HistoryItemFrom(o)
		it.SnapshotURL = h.local.SnapshotURL(r.Context(), o)
		out = append(out, it)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *BackendHandler) HandleChatHistory(w http.ResponseWriter, r *http.Request) {
	turns, err := h.local.ChatHistory(r.Context())
	if err != nil {
		log.Printf("handler: chat history: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch chat history")
		return
	}
	out := make([]backend.ChatItem, 0, len(turns))
	for _, t := range turns {
		out = append(out, backend.ChatItemFrom(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *BackendHandler) HandleChatLog(w http.ResponseWriter, r *http.Request) {
	var in backend.ChatLogRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	err := h.local.LogChat(r.Context(), coach.ChatLog{
		Role:        types.Role(strings.TrimSpace(in.Role)),
		Text:        in.Text,
		GoalContext: in.GoalContext,
	})
	if errors.Is(err, chatlog.ErrInvalidMessage) {
		writeError(w, http.StatusBadRequest, "role must be user or model and text is required")
		return
	}
	if err != nil {
		log.Printf("handler: chat log: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to log chat")
		return
	}
	writeJSON(w, http.StatusOK, backend.LogResponse{Success: true})
}

func (h *BackendHandler) HandleLog(w http.ResponseWriter, r *http.Request) {
	var in backend.LogRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	entry := in.AnalysisLog()
	if s := strings.TrimSpace(in.Screenshot); s != "" {
		img, err := llm.DecodeImage(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "screenshot must be a base64 image")
			return
		}
		entry.Screenshot = img
	}
	id, err := h.local.Log(r.Context(), entry)
	if err != nil {
		log.Printf("handler: log analysis: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to log")
		return
	}
	writeJSON(w, http.StatusOK, backend.LogResponse{Success: true, ID: id})
}

func (h *BackendHandler) HandleContext(w http.ResponseWriter, r *http.Request) {
	var in backend.ContextRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	if len(in.Vector) == 0 {
		writeError(w, http.StatusBadRequest, "No vector provided")
		return
	}
	insights, err := h.local.SimilarContext(r.Context(), in.Vector)
	if err != nil {
		log.Printf("handler: context: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch context")
		return
	}
	if insights == nil {
		insights = []types.Insight{}
	}
	writeJSON(w, http.StatusOK, backend.ContextResponse{Context: insights})
}

// HandleLastAction returns the latest directive cached for ?goal=, or 404
// once it has expired.
func (h *BackendHandler) HandleLastAction(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.local.LastAction(r.URL.Query().Get("goal"))
	if !ok {
		writeError(w, http.StatusNotFound, "No recent action for goal")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("handler: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, backend.ErrorResponse{Error: msg})
}
