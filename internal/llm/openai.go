package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

const (
	DefaultOpenAIModel   = "gpt-4o"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1/chat/completions"
)

// OpenAIConfig tunes an OpenAIProvider. Zero values select the defaults.
type OpenAIConfig struct {
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// OpenAIProvider calls an OpenAI-compatible Chat Completions endpoint.
// See: https://platform.openai.com/docs/api-reference/chat
type OpenAIProvider struct {
	http    *http.Client
	apiKey  string
	model   string
	baseURL string
}

func NewOpenAIProvider(apiKey string, cfg OpenAIConfig) (*OpenAIProvider, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("openai: empty api key")
	}
	p := &OpenAIProvider{
		http:    cfg.HTTPClient,
		apiKey:  apiKey,
		model:   cfg.Model,
		baseURL: cfg.BaseURL,
	}
	if p.http == nil {
		p.http = &http.Client{Timeout: 60 * time.Second}
	}
	if p.model == "" {
		p.model = DefaultOpenAIModel
	}
	if p.baseURL == "" {
		p.baseURL = DefaultOpenAIBaseURL
	}
	return p, nil
}

func (p *OpenAIProvider) Name() string { return "OpenAI:" + p.model }
func (p *OpenAIProvider) Close() error { return nil }

type openAIChatReq struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float32         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

// openAIMessage.Content is either a string or []openAIPart.
type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIChatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

const openAIAnalysisText = "Current screen. Goal: %s. Verify progress and provide next tactical step or clarification question."

func (p *OpenAIProvider) AnalyzeFrame(ctx context.Context, req AnalyzeRequest) (types.AnalysisOutcome, error) {
	body := openAIChatReq{
		Model: p.model,
		Messages: []openAIMessage{
			{Role: "system", Content: SystemInstruction(req.Goal, req.Context, req.Insights)},
			{Role: "user", Content: []openAIPart{
				{Type: "text", Text: fmt.Sprintf(openAIAnalysisText, req.Goal)},
				imagePart("image/jpeg", req.Image),
			}},
		},
		Temperature: AnalysisTemperature,
		MaxTokens:   AnalysisMaxTokens,
	}
	text, err := p.complete(ctx, body)
	if err != nil {
		return types.AnalysisOutcome{}, err
	}
	return ParseOutcome(text), nil
}

func (p *OpenAIProvider) SendChat(ctx context.Context, req ChatRequest) (string, error) {
	msgs := make([]openAIMessage, 0, len(req.History)+2)
	msgs = append(msgs, openAIMessage{Role: "system", Content: ChatPersona})
	for _, turn := range req.History {
		role := "user"
		if turn.Role == types.RoleModel {
			role = "assistant"
		}
		msgs = append(msgs, openAIMessage{Role: role, Content: turn.Text})
	}

	user := []openAIPart{{Type: "text", Text: GoalContextText(req.Goal) + "\n\n" + req.Message}}
	if len(req.Screenshot) > 0 {
		user = append(user, imagePart("image/jpeg", req.Screenshot))
	}
	if req.File != nil {
		if req.File.IsImage() {
			user = append(user, imagePart(req.File.MIMEType, req.File.Data))
		} else {
			text, err := AttachmentText(req.File)
			if err != nil {
				return "", &ClassifiedError{Kind: KindRejected, Detail: err.Error(), Err: err}
			}
			user = append(user, openAIPart{Type: "text", Text: FileBlock(req.File.Name, text)})
		}
	}
	msgs = append(msgs, openAIMessage{Role: "user", Content: user})

	text, err := p.complete(ctx, openAIChatReq{
		Model:       p.model,
		Messages:    msgs,
		Temperature: ChatTemperature,
		MaxTokens:   ChatMaxTokens,
	})
	if err != nil {
		return "", err
	}
	if text == "" {
		return EmptyChatReply, nil
	}
	return text, nil
}

func imagePart(mime string, data []byte) openAIPart {
	return openAIPart{Type: "image_url", ImageURL: &openAIImageURL{URL: DataURL(mime, data)}}
}

// complete posts one chat completion and returns the first choice's text.
// Every error is classified before it leaves.
func (p *OpenAIProvider) complete(ctx context.Context, body openAIChatReq) (string, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return "", &ClassifiedError{Kind: KindRejected, Detail: err.Error(), Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(b))
	if err != nil {
		return "", &ClassifiedError{Kind: KindRejected, Detail: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.http.Do(req)
	if err != nil {
		return "", Classify(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", Classify(&HTTPStatusError{
			Provider:   "openai",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(raw)),
		})
	}
	var out openAIChatResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", Classify(fmt.Errorf("openai: decode response: %w", err))
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}
