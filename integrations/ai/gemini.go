package ai

import (
	"context"
	"fmt"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.0-flash"

// Gemini generates replies and verdicts with the Gemini API.
type Gemini struct {
	client       *genai.Client
	model        string
	systemPrompt string
}

// NewGemini builds a Gemini adapter. baseURL is optional and only set in tests.
func NewGemini(ctx context.Context, apiKey, model, systemPrompt, baseURL string) (*Gemini, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Gemini{client: client, model: model, systemPrompt: systemPrompt}, nil
}

func (g *Gemini) GenerateReply(ctx context.Context, p domain.ReplyPrompt) (string, error) {
	system, user := buildReplyPrompt(g.systemPrompt, p)
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(user), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.7),
		MaxOutputTokens:   256,
	})
	if err != nil {
		return "", fmt.Errorf("gemini reply: %w", err)
	}
	if result == nil {
		return "", errEmptyCompletion
	}
	logrus.WithField("model", g.model).Debug("[GEMINI] Reply generated")
	return cleanReply(result.Text())
}

func (g *Gemini) Classify(ctx context.Context, text string) (domain.Verdict, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(text), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(classifySystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("gemini classify: %w", err)
	}
	if result == nil {
		return domain.Verdict{}, errEmptyCompletion
	}
	return parseVerdict(result.Text())
}
