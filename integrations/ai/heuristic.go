package ai

import (
	"context"
	"regexp"
	"strings"

	"github.com/AzielCF/az-social/automation/domain"
)

var (
	linkPattern = regexp.MustCompile(`(?i)(https?://|www\.|\b[a-z0-9-]+\.(com|net|io|xyz|ru|link|shop)\b)`)

	spamPhrases = []string{
		"check my profile", "check my page", "follow me", "follow back", "f4f", "l4l",
		"dm me", "dm for", "free followers", "buy followers", "promo code",
		"earn money", "make money", "crypto", "bitcoin", "giveaway winner", "click the link",
	}
	toxicWords = []string{
		"idiot", "stupid", "loser", "moron", "kill yourself", "hate you", "ugly",
	}
)

// HeuristicClassifier flags obvious spam and abuse with keyword rules. It is
// used when no model is configured and as the fallback when a model fails.
type HeuristicClassifier struct{}

func (HeuristicClassifier) Classify(_ context.Context, text string) (domain.Verdict, error) {
	lower := strings.ToLower(text)
	for _, w := range toxicWords {
		if strings.Contains(lower, w) {
			return domain.Verdict{Flagged: true, Category: domain.CategoryToxic, Reason: "matched " + w}, nil
		}
	}
	for _, p := range spamPhrases {
		if strings.Contains(lower, p) {
			return domain.Verdict{Flagged: true, Category: domain.CategorySpam, Reason: "matched " + p}, nil
		}
	}
	if linkPattern.MatchString(text) {
		return domain.Verdict{Flagged: true, Category: domain.CategorySpam, Reason: "contains a link"}, nil
	}
	return domain.Verdict{Category: domain.CategoryClean}, nil
}
