package ai

import (
	"context"
	"fmt"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI generates replies and verdicts with the Chat Completions API.
type OpenAI struct {
	client       openai.Client
	model        string
	systemPrompt string
}

func NewOpenAI(apiKey, model, systemPrompt string, opts ...option.RequestOption) *OpenAI {
	if model == "" {
		model = DefaultOpenAIModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAI{
		client:       openai.NewClient(opts...),
		model:        model,
		systemPrompt: systemPrompt,
	}
}

func (o *OpenAI) GenerateReply(ctx context.Context, p domain.ReplyPrompt) (string, error) {
	system, user := buildReplyPrompt(o.systemPrompt, p)
	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature:         openai.Float(0.7),
		MaxCompletionTokens: openai.Int(256),
	})
	if err != nil {
		return "", fmt.Errorf("openai reply: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errEmptyCompletion
	}

	logrus.WithFields(logrus.Fields{
		"model":  o.model,
		"tokens": completion.Usage.TotalTokens,
	}).Debug("[OPENAI] Reply generated")
	return cleanReply(completion.Choices[0].Message.Content)
}

func (o *OpenAI) Classify(ctx context.Context, text string) (domain.Verdict, error) {
	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(classifySystemPrompt),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "comment_verdict",
					Schema: any(verdictSchema()),
					Strict: openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("openai classify: %w", err)
	}
	if len(completion.Choices) == 0 {
		return domain.Verdict{}, errEmptyCompletion
	}
	return parseVerdict(completion.Choices[0].Message.Content)
}
