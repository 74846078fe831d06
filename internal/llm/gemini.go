package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	genai "google.golang.org/genai"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

const (
	DefaultGeminiModel      = "gemini-3-pro-preview"
	DefaultGeminiEmbedModel = "text-embedding-004"
)

// GeminiConfig tunes a GeminiProvider. Zero values select the defaults.
type GeminiConfig struct {
	Model      string
	EmbedModel string
	// BaseURL overrides the Gemini API endpoint (used by tests).
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiProvider is a thin wrapper around the official genai client bound
// to one API key.
type GeminiProvider struct {
	cli        *genai.Client
	model      string
	embedModel string
}

func NewGeminiProvider(ctx context.Context, apiKey string, cfg GeminiConfig) (*GeminiProvider, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: empty api key")
	}
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	g := &GeminiProvider{cli: cli, model: cfg.Model, embedModel: cfg.EmbedModel}
	if g.model == "" {
		g.model = DefaultGeminiModel
	}
	if g.embedModel == "" {
		g.embedModel = DefaultGeminiEmbedModel
	}
	return g, nil
}

func (g *GeminiProvider) Name() string { return "Gemini:" + g.model }
func (g *GeminiProvider) Close() error { return nil }

func (g *GeminiProvider) AnalyzeFrame(ctx context.Context, req AnalyzeRequest) (types.AnalysisOutcome, error) {
	parts := []*genai.Part{
		genai.NewPartFromBytes(req.Image, "image/jpeg"),
		genai.NewPartFromText(AnalysisUserText(req.Goal)),
	}
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(SystemInstruction(req.Goal, req.Context, req.Insights), genai.RoleUser),
			Temperature:       genai.Ptr(AnalysisTemperature),
		},
	)
	if err != nil {
		return types.AnalysisOutcome{}, Classify(err)
	}
	return ParseOutcome(resp.Text()), nil
}

func (g *GeminiProvider) SendChat(ctx context.Context, req ChatRequest) (string, error) {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		role := genai.Role(genai.RoleUser)
		if turn.Role == types.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}

	parts := []*genai.Part{genai.NewPartFromText(GoalContextText(req.Goal))}
	if len(req.Screenshot) > 0 {
		parts = append(parts,
			genai.NewPartFromBytes(req.Screenshot, "image/jpeg"),
			genai.NewPartFromText(ScreenCaption),
		)
	}
	if req.File != nil {
		if req.File.IsImage() {
			parts = append(parts,
				genai.NewPartFromBytes(req.File.Data, req.File.MIMEType),
				genai.NewPartFromText(imageCaption(req.File.Name)),
			)
		} else {
			text, err := AttachmentText(req.File)
			if err != nil {
				return "", &ClassifiedError{Kind: KindRejected, Detail: err.Error(), Err: err}
			}
			parts = append(parts, genai.NewPartFromText(FileBlock(req.File.Name, text)))
		}
	}
	parts = append(parts, genai.NewPartFromText(req.Message))
	contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))

	resp, err := g.cli.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(ChatPersona, genai.RoleUser),
		Temperature:       genai.Ptr(ChatTemperature),
	})
	if err != nil {
		return "", Classify(err)
	}
	if txt := resp.Text(); txt != "" {
		return txt, nil
	}
	return EmptyChatReply, nil
}

// Embed vectorizes text with the embedding model.
func (g *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.cli.Models.EmbedContent(ctx, g.embedModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, nil)
	if err != nil {
		return nil, Classify(err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, ErrEmptyResponse
	}
	return resp.Embeddings[0].Values, nil
}
