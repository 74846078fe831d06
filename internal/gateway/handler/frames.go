package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/frame"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/llm"
)

const maxFrameBody = 8 << 20

// FrameHandler accepts screen frames pushed by the capturing browser tab.
type FrameHandler struct {
	mailbox *frame.Mailbox
}

func NewFrameHandler(m *frame.Mailbox) *FrameHandler {
	return &FrameHandler{mailbox: m}
}

type frameRequest struct {
	Data string `json:"data"`
}

type frameResponse struct {
	Seq uint64 `json:"seq"`
}

// HandleFrame takes a raw image body, or a JSON {"data": "<data URI>"} body,
// or a bare data URI as text.
func (h *FrameHandler) HandleFrame(w http.ResponseWriter, r *http.Request) {
	ct := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type")))
	var data []byte
	switch {
	case strings.HasPrefix(ct, "image/"):
		b, err := io.ReadAll(io.LimitReader(r.Body, maxFrameBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read frame")
			return
		}
		data = b
	case strings.HasPrefix(ct, "application/json"):
		var in frameRequest
		if !decodeJSON(w, r, &in) {
			return
		}
		b, err := llm.DecodeImage(in.Data)
		if err != nil {
			writeError(w, http.StatusBadRequest, "data must be a base64 image")
			return
		}
		data = b
	default:
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxFrameBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read frame")
			return
		}
		b, err := llm.DecodeImage(string(raw))
		if err != nil {
			writeError(w, http.StatusBadRequest, "body must be an image or a data URI")
			return
		}
		data = b
	}

	seq, err := h.mailbox.Publish(data)
	switch {
	case errors.Is(err, frame.ErrInactive):
		writeError(w, http.StatusConflict, "capture is not active")
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, frameResponse{Seq: seq})
	}
}
