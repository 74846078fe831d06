package handler

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/frame"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/llm"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.White)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func postFrame(h *FrameHandler, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/frames", bytes.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.HandleFrame(rec, req)
	return rec
}

func TestFrameHandler(t *testing.T) {
	m := frame.NewMailbox()
	h := NewFrameHandler(m)
	img := testPNG(t)

	rec := postFrame(h, "image/png", img)
	assert.Equal(t, http.StatusConflict, rec.Code)

	m.Activate()
	rec = postFrame(h, "image/png", img)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var out frameResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, uint64(1), out.Seq)

	body, _ := json.Marshal(frameRequest{Data: llm.DataURL("image/png", img)})
	rec = postFrame(h, "application/json", body)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = postFrame(h, "text/plain", []byte(llm.DataURL("image/png", img)))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.NotNil(t, m.Latest())
	assert.Equal(t, uint64(3), m.Latest().Seq)

	rec = postFrame(h, "text/plain", []byte(strings.Repeat("!", 10)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postFrame(h, "image/jpeg", []byte("not a jpeg"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
