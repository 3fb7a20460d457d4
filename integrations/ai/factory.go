package ai

import (
	"context"
	"fmt"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/AzielCF/az-social/core/config"
	"github.com/sirupsen/logrus"
)

// Services is what the decision engine consumes. Text is nil when no
// provider is configured, in which case replies fall back to templates.
type Services struct {
	Text       domain.TextService
	Classifier domain.Classifier
	Fallback   domain.Classifier
}

// NewFromConfig builds the configured provider. The heuristic classifier is
// always available as the fallback.
func NewFromConfig(ctx context.Context, cfg config.AIConfig) (Services, error) {
	out := Services{Classifier: HeuristicClassifier{}, Fallback: HeuristicClassifier{}}

	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return out, fmt.Errorf("AI_PROVIDER=openai requires OPENAI_API_KEY")
		}
		o := NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel, cfg.SystemPrompt)
		out.Text, out.Classifier = o, o
	case "gemini":
		if cfg.GeminiKey == "" {
			return out, fmt.Errorf("AI_PROVIDER=gemini requires GEMINI_API_KEY")
		}
		g, err := NewGemini(ctx, cfg.GeminiKey, cfg.GeminiModel, cfg.SystemPrompt, "")
		if err != nil {
			return out, err
		}
		out.Text, out.Classifier = g, g
	default:
		logrus.Info("[AI] No provider configured, replies use templates and moderation uses keyword rules")
	}
	return out, nil
}
