package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/coach"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/llm"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

// HTTPClient talks to a remote gateway's REST backend.
type HTTPClient struct {
	base string
	hc   *http.Client
}

func NewHTTPClient(baseURL string, hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{base: strings.TrimRight(baseURL, "/"), hc: hc}
}

func (c *HTTPClient) History(ctx context.Context) ([]types.AnalysisOutcome, error) {
	var items []HistoryItem
	if err := c.do(ctx, http.MethodGet, PathHistory, nil, &items); err != nil {
		return nil, err
	}
	out := make([]types.AnalysisOutcome, 0, len(items))
	for _, it := range items {
		out = append(out, it.Outcome())
	}
	return out, nil
}

func (c *HTTPClient) ChatHistory(ctx context.Context) ([]types.ChatTurn, error) {
	var items []ChatItem
	if err := c.do(ctx, http.MethodGet, PathChatHistory, nil, &items); err != nil {
		return nil, err
	}
	out := make([]types.ChatTurn, 0, len(items))
	for _, it := range items {
		out = append(out, it.Turn())
	}
	return out, nil
}

func (c *HTTPClient) LogChat(ctx context.Context, e coach.ChatLog) error {
	req := ChatLogRequest{Role: string(e.Role), Text: e.Text, GoalContext: e.GoalContext}
	return c.do(ctx, http.MethodPost, PathChatLog, req, nil)
}

func (c *HTTPClient) LogAnalysis(ctx context.Context, e coach.AnalysisLog) error {
	req := LogRequestFrom(e)
	if len(e.Screenshot) > 0 {
		req.Screenshot = llm.DataURL("image/jpeg", e.Screenshot)
	}
	return c.do(ctx, http.MethodPost, PathLog, req, nil)
}

func (c *HTTPClient) SimilarContext(ctx context.Context, vector []float32) ([]types.Insight, error) {
	var resp ContextResponse
	if err := c.do(ctx, http.MethodPost, PathContext, ContextRequest{Vector: vector}, &resp); err != nil {
		return nil, err
	}
	return resp.Context, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: marshal %s: %w", path, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return fmt.Errorf("backend: %s %s: %s: %s", method, path, resp.Status, e.Error)
		}
		return fmt.Errorf("backend: %s %s: %s", method, path, resp.Status)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend: decode %s: %w", path, err)
	}
	return nil
}
