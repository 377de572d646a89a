package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	reply string
	err   error

	calls      int
	lastSystem string
	lastUser   string
}

func (f *fakeLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	f.lastSystem = systemPrompt
	f.lastUser = userPrompt
	return f.reply, f.err
}

func testCatalog() []Entry {
	return []Entry{
		{MainCategory: "Cards", SubCategory: "Blocking", Question: "how do I block a lost card", Answer: "Call the hotline or block the card in the app."},
		{MainCategory: "Accounts", SubCategory: "Opening", Question: "how do I open a new account", Answer: "Visit a branch with your passport or apply online."},
		{MainCategory: "Mobile", SubCategory: "Install", Question: "where can I download the mobile app", Answer: "The app is available in the App Store and Google Play."},
	}
}

func TestHighConfidenceAnswersWithoutLLM(t *testing.T) {
	llm := &fakeLLM{}
	analyzer := NewAnalyzer(testCatalog(), llm, 0.6)

	result, err := analyzer.Analyze(context.Background(), "how do I block a lost card")
	require.NoError(t, err)

	assert.Equal(t, "Cards", result.MainCategory)
	assert.Equal(t, "Blocking", result.SubCategory)
	assert.Equal(t, "Call the hotline or block the card in the app.", result.OfferedResponse)
	assert.InDelta(t, 1.0, result.Score, 1e-9)
	assert.Zero(t, llm.calls, "an exact match never reaches the LLM")
}

func TestLowConfidenceConsultsLLM(t *testing.T) {
	llm := &fakeLLM{reply: `{"main_category": "Mobile", "sub_category": "Install", "offered_response": "The app is available in the App Store and Google Play.", "score": 0.9}`}
	analyzer := NewAnalyzer(testCatalog(), llm, 0.99)

	result, err := analyzer.Analyze(context.Background(), "I can't find your app anywhere")
	require.NoError(t, err)

	assert.Equal(t, 1, llm.calls)
	assert.Contains(t, llm.lastUser, "I can't find your app anywhere")
	assert.Contains(t, llm.lastUser, "where can I download the mobile app", "candidates accompany the question")

	assert.Equal(t, "Mobile", result.MainCategory)
	assert.Equal(t, "The app is available in the App Store and Google Play.", result.OfferedResponse)
	assert.InDelta(t, 0.9, result.Score, 1e-9)
}

func TestLLMFailureFallsBackToBestMatch(t *testing.T) {
	llm := &fakeLLM{err: errors.New("llm unavailable")}
	analyzer := NewAnalyzer(testCatalog(), llm, 0.99)

	result, err := analyzer.Analyze(context.Background(), "download the mobile app")
	require.NoError(t, err, "an LLM failure degrades, it does not surface")

	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, "Mobile", result.MainCategory)
	assert.Equal(t, "The app is available in the App Store and Google Play.", result.OfferedResponse)
}

func TestNonJSONVerdictFallsBack(t *testing.T) {
	llm := &fakeLLM{reply: "I think this is about the mobile app."}
	analyzer := NewAnalyzer(testCatalog(), llm, 0.99)

	result, err := analyzer.Analyze(context.Background(), "download the mobile app")
	require.NoError(t, err)
	assert.Equal(t, "Mobile", result.MainCategory)
}

func TestEmptyVerdictReplyFallsBack(t *testing.T) {
	llm := &fakeLLM{reply: `{"main_category": "Mobile", "sub_category": "Install", "offered_response": ""}`}
	analyzer := NewAnalyzer(testCatalog(), llm, 0.99)

	result, err := analyzer.Analyze(context.Background(), "download the mobile app")
	require.NoError(t, err)
	assert.NotEmpty(t, result.OfferedResponse)
}

func TestFencedVerdictIsUnwrapped(t *testing.T) {
	llm := &fakeLLM{reply: "```json\n{\"main_category\": \"Cards\", \"sub_category\": \"Blocking\", \"offered_response\": \"Call the hotline or block the card in the app.\", \"score\": 0.7}\n```"}
	analyzer := NewAnalyzer(testCatalog(), llm, 0.99)

	result, err := analyzer.Analyze(context.Background(), "my card is gone")
	require.NoError(t, err)
	assert.Equal(t, "Cards", result.MainCategory)
	assert.InDelta(t, 0.7, result.Score, 1e-9)
}

func TestNilLLMRunsLexicalOnly(t *testing.T) {
	analyzer := NewAnalyzer(testCatalog(), nil, 0.99)

	result, err := analyzer.Analyze(context.Background(), "open a new account")
	require.NoError(t, err)
	assert.Equal(t, "Accounts", result.MainCategory)
}

func TestEmptyCatalog(t *testing.T) {
	analyzer := NewAnalyzer(nil, &fakeLLM{}, 0.6)

	_, err := analyzer.Analyze(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestVerdictScoreDefaults(t *testing.T) {
	llm := &fakeLLM{reply: `{"main_category": "Cards", "sub_category": "Blocking", "offered_response": "Call the hotline or block the card in the app."}`}
	analyzer := NewAnalyzer(testCatalog(), llm, 0.99)

	result, err := analyzer.Analyze(context.Background(), "my card is gone")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, result.Score, 1e-9)
}
