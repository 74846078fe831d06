package llm

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

var (
	reDataURL     = regexp.MustCompile(`(?is)\bdata:(image|video|audio|application)/[a-z0-9+.-]+;base64,[a-z0-9+/=\r\n]+`)
	reDataURLHead = regexp.MustCompile(`(?i)^data:([a-z0-9+./-]+);base64,`)
)

var ErrNotImage = errors.New("llm: payload is not an image")

// DecodeDataURL accepts either a raw base64 string or a data URI and returns
// the decoded bytes plus the declared MIME type (sniffed when absent).
func DecodeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	mime := ""
	if m := reDataURLHead.FindStringSubmatch(s); m != nil {
		mime = strings.ToLower(m[1])
		s = s[len(m[0]):]
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("decode base64: %w", err)
	}
	if mime == "" {
		mime = http.DetectContentType(b)
	}
	return b, mime, nil
}

// DecodeImage is DecodeDataURL restricted to image payloads.
func DecodeImage(s string) ([]byte, error) {
	b, mime, err := DecodeDataURL(s)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, ErrNotImage
	}
	return b, nil
}

// DataURL encodes bytes as a data URI.
func DataURL(mime string, b []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(b)
}

// RedactMedia replaces embedded media payloads so request bodies can be logged.
func RedactMedia(s string) string {
	return reDataURL.ReplaceAllString(s, "[REDACTED media]")
}
