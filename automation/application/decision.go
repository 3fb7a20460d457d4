package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/sirupsen/logrus"
)

const defaultAITimeout = 15 * time.Second

type DecisionConfig struct {
	// FallbackMessage overrides the built-in friendly template when set.
	FallbackMessage string
	AITimeout       time.Duration
}

// DecisionEngine maps an inbound event and its setting to a Decision.
// It never fails: any collaborator error degrades to a safe outcome.
type DecisionEngine struct {
	cfg        DecisionConfig
	text       domain.TextService
	classifier domain.Classifier
	fallback   domain.Classifier
	personas   domain.PersonaLookup
}

// NewDecisionEngine wires the engine. text and classifier may be nil, in
// which case replies use the template and classification uses fallback.
func NewDecisionEngine(
	cfg DecisionConfig,
	text domain.TextService,
	classifier domain.Classifier,
	fallback domain.Classifier,
	personas domain.PersonaLookup,
) *DecisionEngine {
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = defaultAITimeout
	}
	return &DecisionEngine{
		cfg:        cfg,
		text:       text,
		classifier: classifier,
		fallback:   fallback,
		personas:   personas,
	}
}

func (e *DecisionEngine) Decide(ctx context.Context, ev domain.InboundEvent, setting domain.AutoReplySetting) (d domain.Decision) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("[DECISION] Panic deciding %s/%s: %v", ev.Surface, ev.SourceID, r)
			d = domain.Decision{Action: domain.DecisionSkip, Reason: "decision failed"}
		}
	}()

	if !setting.Enabled {
		return domain.Decision{Action: domain.DecisionSkip, Reason: "auto-reply disabled"}
	}

	switch setting.Mode {
	case domain.ModeReplyAndModerate:
		verdict := e.classify(ctx, ev.Text)
		if verdict.Flagged {
			if ev.Surface != domain.SurfaceComments {
				return domain.Decision{
					Action:  domain.DecisionSkip,
					Reason:  "flagged direct message cannot be hidden",
					Verdict: &verdict,
				}
			}
			if notice := strings.TrimSpace(setting.HideNotice); notice != "" {
				return domain.Decision{
					Action:    domain.DecisionReplyAndHide,
					ReplyText: notice,
					Reason:    "flagged as " + verdict.Category,
					Verdict:   &verdict,
				}
			}
			return domain.Decision{
				Action:  domain.DecisionHide,
				Reason:  "flagged as " + verdict.Category,
				Verdict: &verdict,
			}
		}
		return domain.Decision{
			Action:    domain.DecisionReply,
			ReplyText: e.replyText(ctx, ev, setting, nil),
			Verdict:   &verdict,
		}

	case domain.ModeAIPersona:
		persona := e.lookupPersona(ctx, setting.AccountRef)
		return domain.Decision{
			Action:    domain.DecisionReply,
			ReplyText: e.replyText(ctx, ev, setting, persona),
		}

	default:
		return domain.Decision{
			Action:    domain.DecisionReply,
			ReplyText: e.replyText(ctx, ev, setting, nil),
		}
	}
}

func (e *DecisionEngine) classify(ctx context.Context, text string) domain.Verdict {
	if e.classifier != nil {
		cctx, cancel := context.WithTimeout(ctx, e.cfg.AITimeout)
		v, err := e.classifier.Classify(cctx, text)
		cancel()
		if err == nil {
			return v
		}
		logrus.WithError(err).Warn("[DECISION] Classifier failed, using local heuristic")
	}
	if e.fallback != nil {
		if v, err := e.fallback.Classify(ctx, text); err == nil {
			return v
		}
	}
	return domain.Verdict{Category: domain.CategoryClean}
}

func (e *DecisionEngine) lookupPersona(ctx context.Context, accountRef string) *domain.Persona {
	if e.personas == nil {
		return nil
	}
	p, err := e.personas.GetPersona(ctx, accountRef)
	if err != nil {
		if !errors.Is(err, domain.ErrPersonaNotFound) {
			logrus.WithError(err).Warnf("[DECISION] Persona lookup failed for %s", accountRef)
		}
		return nil
	}
	return &p
}

func (e *DecisionEngine) replyText(ctx context.Context, ev domain.InboundEvent, setting domain.AutoReplySetting, persona *domain.Persona) string {
	if msg := setting.StaticMessage; strings.TrimSpace(msg) != "" {
		return msg
	}
	if setting.Mode == domain.ModeAIPersona && persona == nil {
		return e.template(ev.AuthorUsername)
	}
	if e.text == nil {
		return e.template(ev.AuthorUsername)
	}

	cctx, cancel := context.WithTimeout(ctx, e.cfg.AITimeout)
	defer cancel()
	text, err := e.text.GenerateReply(cctx, domain.ReplyPrompt{
		Surface:        ev.Surface,
		InboundText:    ev.Text,
		AuthorUsername: ev.AuthorUsername,
		Persona:        persona,
	})
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		if err != nil {
			logrus.WithError(err).Warnf("[DECISION] Reply generation failed for %s", ev.SourceID)
		}
		return e.template(ev.AuthorUsername)
	}
	return text
}

func (e *DecisionEngine) template(username string) string {
	if e.cfg.FallbackMessage != "" {
		return e.cfg.FallbackMessage
	}
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return "Thanks so much! We appreciate you."
	}
	return fmt.Sprintf("Thanks so much, @%s! We appreciate you.", username)
}
