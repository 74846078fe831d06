package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	genai "google.golang.org/genai"
)

// ErrEmptyResponse is returned when a provider answers 2xx without any text.
var ErrEmptyResponse = errors.New("llm: empty response from model")

// ErrorKind is the retry-relevant category of a provider failure.
type ErrorKind int

const (
	KindRejected ErrorKind = iota
	KindQuota
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindQuota:
		return "quota"
	case KindNetwork:
		return "network"
	default:
		return "rejected"
	}
}

// ClassifiedError is a provider failure tagged with its kind. Detail is the
// human-readable message surfaced to the user for rejected requests.
type ClassifiedError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *ClassifiedError) Error() string {
	if e.Err == nil {
		return e.Kind.String() + ": " + e.Detail
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// Retryable reports whether another credential may succeed where this one failed.
func (e *ClassifiedError) Retryable() bool {
	return e.Kind == KindQuota || e.Kind == KindNetwork
}

// HTTPStatusError is a non-2xx answer from an HTTP provider.
type HTTPStatusError struct {
	Provider   string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %s: %s", e.Provider, e.Status, e.Body)
}

var quotaNeedles = []string{
	"quota", "exhausted", "resource_exhausted", "rate limit", "rate_limit",
	"ratelimit", "too many requests", "429",
}

var networkNeedles = []string{
	"failed to fetch", "networkerror", "network error", "connection refused",
	"connection reset", "no such host", "i/o timeout", "tls handshake",
	"broken pipe", "unexpected eof",
}

// Classify tags err with a kind. It returns nil for a nil error and the same
// value when err is already classified.
func Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}
	return &ClassifiedError{Kind: kindOf(err), Detail: detailOf(err), Err: err}
}

func kindOf(err error) ErrorKind {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || strings.EqualFold(apiErr.Status, "RESOURCE_EXHAUSTED") {
			return KindQuota
		}
		if matchAny(strings.ToLower(apiErr.Message), quotaNeedles) {
			return KindQuota
		}
		return KindRejected
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return kindOf(*apiErrPtr)
	}

	var hse *HTTPStatusError
	if errors.As(err, &hse) {
		if hse.StatusCode == http.StatusTooManyRequests {
			return KindQuota
		}
		if matchAny(strings.ToLower(bodyMessage(hse.Body)), quotaNeedles) {
			return KindQuota
		}
		return KindRejected
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindNetwork
	}

	msg := strings.ToLower(err.Error())
	if matchAny(msg, quotaNeedles) {
		return KindQuota
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindNetwork
	}
	if matchAny(msg, networkNeedles) {
		return KindNetwork
	}
	return KindRejected
}

func detailOf(err error) string {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var hse *HTTPStatusError
	if errors.As(err, &hse) {
		if m := bodyMessage(hse.Body); m != "" {
			return m
		}
		return hse.Status
	}
	return err.Error()
}

// bodyMessage extracts error.message from an OpenAI- or Google-style JSON
// error body. Non-JSON bodies are returned as-is.
func bodyMessage(body string) string {
	var env struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &env); err != nil || env.Error.Message == "" {
		return strings.TrimSpace(body)
	}
	parts := []string{env.Error.Message}
	if env.Error.Status != "" {
		parts = append(parts, env.Error.Status)
	}
	if env.Error.Type != "" {
		parts = append(parts, env.Error.Type)
	}
	if s, ok := env.Error.Code.(string); ok && s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

func matchAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
