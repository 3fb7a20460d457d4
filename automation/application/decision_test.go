package application

import (
	"context"
	"errors"
	"testing"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func commentEvent(text string) domain.InboundEvent {
	return domain.InboundEvent{
		AccountRef:     "acc-1",
		Platform:       domain.PlatformInstagram,
		Surface:        domain.SurfaceComments,
		SourceID:       "c1",
		AuthorID:       "u1",
		AuthorUsername: "maria",
		Text:           text,
	}
}

func enabledSetting(mode domain.ReplyMode) domain.AutoReplySetting {
	return domain.AutoReplySetting{
		AccountRef: "acc-1",
		Surface:    domain.SurfaceComments,
		Enabled:    true,
		Mode:       mode,
		Delay:      domain.RandomDelay(30, 180),
	}
}

func TestDecide_DisabledSkips(t *testing.T) {
	text := &mockTextService{}
	e := NewDecisionEngine(DecisionConfig{}, text, nil, nil, nil)

	setting := enabledSetting(domain.ModeReplyOnly)
	setting.Enabled = false

	d := e.Decide(context.Background(), commentEvent("love it"), setting)
	assert.Equal(t, domain.DecisionSkip, d.Action)
	text.AssertNotCalled(t, "GenerateReply", mock.Anything, mock.Anything)
}

func TestDecide_StaticMessageIsVerbatim(t *testing.T) {
	e := NewDecisionEngine(DecisionConfig{}, nil, nil, nil, nil)

	setting := enabledSetting(domain.ModeReplyOnly)
	setting.StaticMessage = "  Thanks!\n\nSee the link in bio  "

	d := e.Decide(context.Background(), commentEvent("great post"), setting)
	assert.Equal(t, "  Thanks!\n\nSee the link in bio  ", d.ReplyText)
}

func TestDecide_StaticMessageSkipsAI(t *testing.T) {
	text := &mockTextService{}
	e := NewDecisionEngine(DecisionConfig{}, text, nil, nil, nil)

	setting := enabledSetting(domain.ModeReplyOnly)
	setting.StaticMessage = "Thank you!"

	d := e.Decide(context.Background(), commentEvent("great post"), setting)
	assert.Equal(t, domain.DecisionReply, d.Action)
	assert.Equal(t, "Thank you!", d.ReplyText)
	text.AssertNotCalled(t, "GenerateReply", mock.Anything, mock.Anything)
}

func TestDecide_ReplyOnlyUsesTextService(t *testing.T) {
	text := &mockTextService{}
	text.On("GenerateReply", mock.Anything, mock.MatchedBy(func(p domain.ReplyPrompt) bool {
		return p.InboundText == "great post" && p.Persona == nil
	})).Return("Glad you liked it!", nil)
	e := NewDecisionEngine(DecisionConfig{}, text, nil, nil, nil)

	d := e.Decide(context.Background(), commentEvent("great post"), enabledSetting(domain.ModeReplyOnly))
	assert.Equal(t, domain.DecisionReply, d.Action)
	assert.Equal(t, "Glad you liked it!", d.ReplyText)
	text.AssertExpectations(t)
}

func TestDecide_AIFailureFallsBackToTemplate(t *testing.T) {
	text := &mockTextService{}
	text.On("GenerateReply", mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))
	e := NewDecisionEngine(DecisionConfig{}, text, nil, nil, nil)

	d := e.Decide(context.Background(), commentEvent("great post"), enabledSetting(domain.ModeReplyOnly))
	assert.Equal(t, domain.DecisionReply, d.Action)
	assert.Equal(t, "Thanks so much, @maria! We appreciate you.", d.ReplyText)
}

func TestDecide_ConfiguredFallbackMessage(t *testing.T) {
	e := NewDecisionEngine(DecisionConfig{FallbackMessage: "Gracias!"}, nil, nil, nil, nil)

	d := e.Decide(context.Background(), commentEvent("hola"), enabledSetting(domain.ModeReplyOnly))
	assert.Equal(t, "Gracias!", d.ReplyText)
}

func TestDecide_SpamCommentIsHiddenWithoutReply(t *testing.T) {
	text := &mockTextService{}
	classifier := &mockClassifier{}
	classifier.On("Classify", mock.Anything, "buy followers now").
		Return(domain.Verdict{Flagged: true, Category: domain.CategorySpam}, nil)
	e := NewDecisionEngine(DecisionConfig{}, text, classifier, nil, nil)

	d := e.Decide(context.Background(), commentEvent("buy followers now"), enabledSetting(domain.ModeReplyAndModerate))
	assert.Equal(t, domain.DecisionHide, d.Action)
	assert.Empty(t, d.ReplyText)
	assert.False(t, d.Action.Replies())
	text.AssertNotCalled(t, "GenerateReply", mock.Anything, mock.Anything)
}

func TestDecide_FlaggedCommentWithNoticeRepliesAndHides(t *testing.T) {
	classifier := &mockClassifier{}
	classifier.On("Classify", mock.Anything, mock.Anything).
		Return(domain.Verdict{Flagged: true, Category: domain.CategoryToxic}, nil)
	e := NewDecisionEngine(DecisionConfig{}, nil, classifier, nil, nil)

	setting := enabledSetting(domain.ModeReplyAndModerate)
	setting.HideNotice = "This comment was hidden."

	d := e.Decide(context.Background(), commentEvent("you are awful"), setting)
	assert.Equal(t, domain.DecisionReplyAndHide, d.Action)
	assert.Equal(t, "This comment was hidden.", d.ReplyText)
}

func TestDecide_FlaggedDirectMessageIsSkipped(t *testing.T) {
	classifier := &mockClassifier{}
	classifier.On("Classify", mock.Anything, mock.Anything).
		Return(domain.Verdict{Flagged: true, Category: domain.CategorySpam}, nil)
	e := NewDecisionEngine(DecisionConfig{}, nil, classifier, nil, nil)

	ev := commentEvent("cheap followers")
	ev.Surface = domain.SurfaceDMs
	setting := enabledSetting(domain.ModeReplyAndModerate)
	setting.Surface = domain.SurfaceDMs

	d := e.Decide(context.Background(), ev, setting)
	assert.Equal(t, domain.DecisionSkip, d.Action)
}

func TestDecide_ClassifierErrorUsesFallback(t *testing.T) {
	classifier := &mockClassifier{}
	classifier.On("Classify", mock.Anything, mock.Anything).Return(domain.Verdict{}, errors.New("unavailable"))
	fallback := &mockClassifier{}
	fallback.On("Classify", mock.Anything, mock.Anything).
		Return(domain.Verdict{Flagged: true, Category: domain.CategorySpam}, nil)
	e := NewDecisionEngine(DecisionConfig{}, nil, classifier, fallback, nil)

	d := e.Decide(context.Background(), commentEvent("free followers http://x.io"), enabledSetting(domain.ModeReplyAndModerate))
	assert.Equal(t, domain.DecisionHide, d.Action)
	fallback.AssertExpectations(t)
}

func TestDecide_CleanCommentReplies(t *testing.T) {
	classifier := &mockClassifier{}
	classifier.On("Classify", mock.Anything, mock.Anything).Return(domain.Verdict{Category: domain.CategoryClean}, nil)
	e := NewDecisionEngine(DecisionConfig{}, nil, classifier, nil, nil)

	d := e.Decide(context.Background(), commentEvent("so pretty"), enabledSetting(domain.ModeReplyAndModerate))
	assert.Equal(t, domain.DecisionReply, d.Action)
	assert.NotEmpty(t, d.ReplyText)
}

func TestDecide_PersonaShapesReply(t *testing.T) {
	personas := &mockPersonas{}
	personas.On("GetPersona", mock.Anything, "acc-1").Return(domain.Persona{AccountRef: "acc-1", DisplayName: "Chef Ana", Tone: "warm"}, nil)
	text := &mockTextService{}
	text.On("GenerateReply", mock.Anything, mock.MatchedBy(func(p domain.ReplyPrompt) bool {
		return p.Persona != nil && p.Persona.DisplayName == "Chef Ana"
	})).Return("Gracias, Maria! - Ana", nil)
	e := NewDecisionEngine(DecisionConfig{}, text, nil, nil, personas)

	d := e.Decide(context.Background(), commentEvent("recipe please"), enabledSetting(domain.ModeAIPersona))
	assert.Equal(t, domain.DecisionReply, d.Action)
	assert.Equal(t, "Gracias, Maria! - Ana", d.ReplyText)
	text.AssertExpectations(t)
}

func TestDecide_MissingPersonaUsesTemplate(t *testing.T) {
	personas := &mockPersonas{}
	personas.On("GetPersona", mock.Anything, "acc-1").Return(domain.Persona{}, domain.ErrPersonaNotFound)
	text := &mockTextService{}
	e := NewDecisionEngine(DecisionConfig{}, text, nil, nil, personas)

	d := e.Decide(context.Background(), commentEvent("hi"), enabledSetting(domain.ModeAIPersona))
	assert.Equal(t, domain.DecisionReply, d.Action)
	assert.Equal(t, "Thanks so much, @maria! We appreciate you.", d.ReplyText)
	text.AssertNotCalled(t, "GenerateReply", mock.Anything, mock.Anything)
}

func TestDecide_PanicBecomesSkip(t *testing.T) {
	classifier := &mockClassifier{}
	classifier.On("Classify", mock.Anything, mock.Anything).Run(func(mock.Arguments) { panic("boom") })
	e := NewDecisionEngine(DecisionConfig{}, nil, classifier, nil, nil)

	d := e.Decide(context.Background(), commentEvent("x"), enabledSetting(domain.ModeReplyAndModerate))
	assert.Equal(t, domain.DecisionSkip, d.Action)
}
