package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	var reached int
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { reached++ })
	h := CORS([]string{"http://localhost:5173/"})(next)

	req := httptest.NewRequest(http.MethodOptions, "/api/history", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Zero(t, reached)

	req = httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, 1, reached)

	req = httptest.NewRequest(http.MethodGet, "/api/history", nil)
	rec = httptest.NewRecorder()
	CORS(nil)(next).ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOrigins_CheckWebSocket(t *testing.T) {
	upgrade := func(host, origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "http://"+host+"/api/live", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	listed := ParseOrigins([]string{"http://localhost:5173"})
	assert.True(t, listed.CheckWebSocket(upgrade("localhost:8080", "http://localhost:5173")))
	assert.True(t, listed.CheckWebSocket(upgrade("localhost:8080", "")), "no Origin header")
	assert.True(t, listed.CheckWebSocket(upgrade("localhost:8080", "http://localhost:8080")), "same origin")
	assert.False(t, listed.CheckWebSocket(upgrade("localhost:8080", "https://evil.example")))

	// Unconfigured: browsers are held to the same origin.
	none := ParseOrigins(nil)
	assert.True(t, none.AllowsCORS("https://evil.example"))
	assert.False(t, none.CheckWebSocket(upgrade("localhost:8080", "https://evil.example")))
	assert.True(t, none.CheckWebSocket(upgrade("localhost:8080", "http://LOCALHOST:8080")))

	wildcard := ParseOrigins([]string{"*"})
	assert.True(t, wildcard.CheckWebSocket(upgrade("localhost:8080", "https://evil.example")))
}
