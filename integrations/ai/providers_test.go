package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/AzielCF/az-social/core/config"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatCompletion(content string) string {
	raw, _ := json.Marshal(content)
	return `{"id":"cmpl-1","object":"chat.completion","created":1700000000,"model":"gpt-4o-mini",` +
		`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":` + string(raw) + `}}],` +
		`"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`
}

func newOpenAITest(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAI("sk-test", "", "", option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
}

func TestOpenAI_GenerateReply(t *testing.T) {
	var body map[string]any
	o := newOpenAITest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletion(`"Thank you, @ann!"`)))
	})

	reply, err := o.GenerateReply(context.Background(), domain.ReplyPrompt{
		Surface:        domain.SurfaceComments,
		InboundText:    "so good",
		AuthorUsername: "ann",
	})
	require.NoError(t, err)
	assert.Equal(t, "Thank you, @ann!", reply)
	assert.Equal(t, DefaultOpenAIModel, body["model"])
	assert.Len(t, body["messages"], 2)
}

func TestOpenAI_Classify(t *testing.T) {
	o := newOpenAITest(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotNil(t, body["response_format"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletion(`{"flagged":true,"category":"toxic","reason":"insult"}`)))
	})

	v, err := o.Classify(context.Background(), "you are awful")
	require.NoError(t, err)
	assert.True(t, v.Flagged)
	assert.Equal(t, domain.CategoryToxic, v.Category)
}

func TestOpenAI_ErrorStatus(t *testing.T) {
	o := newOpenAITest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
	})

	_, err := o.GenerateReply(context.Background(), domain.ReplyPrompt{InboundText: "hi"})
	assert.Error(t, err)
}

func TestGemini_GenerateReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Gracias!"}]},"finishReason":"STOP"}]}`))
	}))
	t.Cleanup(srv.Close)

	g, err := NewGemini(context.Background(), "key", "", "", srv.URL+"/")
	require.NoError(t, err)

	reply, err := g.GenerateReply(context.Background(), domain.ReplyPrompt{InboundText: "hola"})
	require.NoError(t, err)
	assert.Equal(t, "Gracias!", reply)
}

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()

	none, err := NewFromConfig(ctx, config.AIConfig{Provider: "none"})
	require.NoError(t, err)
	assert.Nil(t, none.Text)
	assert.IsType(t, HeuristicClassifier{}, none.Classifier)

	_, err = NewFromConfig(ctx, config.AIConfig{Provider: "openai"})
	assert.Error(t, err)

	withKey, err := NewFromConfig(ctx, config.AIConfig{Provider: "openai", OpenAIKey: "sk"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, withKey.Text)
	assert.IsType(t, HeuristicClassifier{}, withKey.Fallback)
}
