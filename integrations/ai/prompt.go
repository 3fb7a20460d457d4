// Package ai adapts hosted language models to reply generation and
// comment classification.
package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/AzielCF/az-social/automation/domain"
)

const (
	defaultSystemPrompt = "You write short, warm replies on behalf of a content creator. " +
		"Answer in one or two sentences. Never invent facts, prices or links. No hashtags."
	maxReplyRunes = 500

	classifySystemPrompt = "You moderate social media comments. Decide whether the text is spam " +
		"(promotion, scams, link bait, follow-for-follow) or toxic (insults, harassment, hate). " +
		"Answer with JSON only: {\"flagged\": bool, \"category\": \"clean\"|\"spam\"|\"toxic\", \"reason\": string}."
)

var (
	errEmptyCompletion = errors.New("model returned an empty completion")
	errBadVerdict      = errors.New("model returned an unreadable verdict")
)

// buildReplyPrompt returns the system and user messages for a reply request.
func buildReplyPrompt(base string, p domain.ReplyPrompt) (string, string) {
	system := strings.TrimSpace(base)
	if system == "" {
		system = defaultSystemPrompt
	}

	var sb strings.Builder
	sb.WriteString(system)
	if p.Persona != nil {
		sb.WriteString("\n\nWrite as ")
		sb.WriteString(nonEmpty(p.Persona.DisplayName, "the creator"))
		sb.WriteString(".")
		if p.Persona.Tone != "" {
			fmt.Fprintf(&sb, " Tone: %s.", p.Persona.Tone)
		}
		if p.Persona.StyleNotes != "" {
			fmt.Fprintf(&sb, " Style notes: %s.", p.Persona.StyleNotes)
		}
		if p.Persona.SignOff != "" {
			fmt.Fprintf(&sb, " End with %q.", p.Persona.SignOff)
		}
		if p.Persona.Language != "" {
			fmt.Fprintf(&sb, " Reply in %s.", p.Persona.Language)
		}
	}

	where := "a comment"
	if p.Surface == domain.SurfaceDMs {
		where = "a direct message"
	}
	user := fmt.Sprintf("Reply to %s", where)
	if p.AuthorUsername != "" {
		user += " from @" + p.AuthorUsername
	}
	user += ":\n\n" + p.InboundText
	return sb.String(), user
}

// cleanReply strips wrapping quotes and caps the length of a model reply.
func cleanReply(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	text = strings.Trim(text, "\"“”")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errEmptyCompletion
	}
	if r := []rune(text); len(r) > maxReplyRunes {
		text = strings.TrimSpace(string(r[:maxReplyRunes]))
	}
	return text, nil
}

// parseVerdict reads a JSON verdict, tolerating markdown code fences.
func parseVerdict(raw string) (domain.Verdict, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var v domain.Verdict
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return domain.Verdict{}, fmt.Errorf("%w: %v", errBadVerdict, err)
	}
	v.Category = strings.ToLower(strings.TrimSpace(v.Category))
	switch v.Category {
	case domain.CategorySpam, domain.CategoryToxic:
	case domain.CategoryClean, "":
		v.Category = domain.CategoryClean
	default:
		return domain.Verdict{}, fmt.Errorf("%w: category %q", errBadVerdict, v.Category)
	}
	if v.Category == domain.CategoryClean {
		v.Flagged = false
	}
	return v, nil
}

func verdictSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"flagged":  map[string]any{"type": "boolean"},
			"category": map[string]any{"type": "string", "enum": []string{domain.CategoryClean, domain.CategorySpam, domain.CategoryToxic}},
			"reason":   map[string]any{"type": "string"},
		},
		"required":             []string{"flagged", "category", "reason"},
		"additionalProperties": false,
	}
}

func nonEmpty(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
