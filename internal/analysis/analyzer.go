package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"unicode"
)

const (
	// topK is how many candidate entries accompany a low-confidence question
	// to the LLM.
	topK = 5

	// DefaultScoreThreshold is the similarity score above which the best
	// catalog entry answers directly, without consulting the LLM.
	DefaultScoreThreshold = 0.6
)

var ErrEmptyCatalog = errors.New("faq catalog is empty")

// Result is the assist shown next to an open admin chat: the category pair
// the question most likely belongs to, the suggested reply, and the
// confidence of the match.
type Result struct {
	MainCategory    string
	SubCategory     string
	OfferedResponse string
	Score           float64
}

// Analyzer classifies an incoming support question against the FAQ catalog.
// High-confidence lexical matches answer directly; everything else is
// referred to the LLM with the top candidates attached. The analyzer never
// fails past the lexical fallback: an LLM error degrades to the best
// candidate instead of surfacing.
type Analyzer struct {
	entries   []Entry
	llm       LLM // nil runs lexical-only
	threshold float64
}

func NewAnalyzer(entries []Entry, llm LLM, threshold float64) *Analyzer {
	if threshold <= 0 {
		threshold = DefaultScoreThreshold
	}
	return &Analyzer{entries: entries, llm: llm, threshold: threshold}
}

func (a *Analyzer) Analyze(ctx context.Context, question string) (Result, error) {
	if len(a.entries) == 0 {
		return Result{}, ErrEmptyCatalog
	}

	candidates := a.topMatches(question, topK)
	best := candidates[0]

	if best.score >= a.threshold || a.llm == nil {
		return best.result(), nil
	}

	result, err := a.consultLLM(ctx, question, candidates)
	if err != nil {
		slog.Warn("analysis falling back to best lexical match", "score", best.score, "error", err)
		return best.result(), nil
	}
	return result, nil
}

type candidate struct {
	entry Entry
	score float64
}

func (c candidate) result() Result {
	return Result{
		MainCategory:    c.entry.MainCategory,
		SubCategory:     c.entry.SubCategory,
		OfferedResponse: c.entry.Answer,
		Score:           c.score,
	}
}

// topMatches ranks every catalog entry by lexical cosine similarity between
// the question and the entry's example question, highest first. Entry
// question text breaks ties so ranking is deterministic.
func (a *Analyzer) topMatches(question string, k int) []candidate {
	queryVec := termFrequencies(question)

	candidates := make([]candidate, len(a.entries))
	for i, entry := range a.entries {
		candidates[i] = candidate{entry: entry, score: cosine(queryVec, termFrequencies(entry.Question))}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].entry.Question < candidates[j].entry.Question
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

func termFrequencies(text string) map[string]float64 {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	vec := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		vec[token]++
	}
	return vec
}

func cosine(a, b map[string]float64) float64 {
	var dot, normA, normB float64
	for term, weight := range a {
		dot += weight * b[term]
		normA += weight * weight
	}
	for _, weight := range b {
		normB += weight * weight
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

const llmSystemPrompt = `You assist a support operator by classifying a customer question.
You are given the question and a list of similar catalog questions with their categories and template answers.
Pick the single best matching catalog option.
Output ONLY JSON of the form:
{"main_category": "...", "sub_category": "...", "offered_response": "...", "score": 0.95}`

type llmVerdict struct {
	MainCategory    string  `json:"main_category"`
	SubCategory     string  `json:"sub_category"`
	OfferedResponse string  `json:"offered_response"`
	Score           float64 `json:"score"`
}

func (a *Analyzer) consultLLM(ctx context.Context, question string, candidates []candidate) (Result, error) {
	type option struct {
		MainCategory    string  `json:"main_category"`
		SubCategory     string  `json:"sub_category"`
		Question        string  `json:"question"`
		OfferedResponse string  `json:"offered_response"`
		Score           float64 `json:"score"`
	}
	options := make([]option, len(candidates))
	for i, c := range candidates {
		options[i] = option{
			MainCategory:    c.entry.MainCategory,
			SubCategory:     c.entry.SubCategory,
			Question:        c.entry.Question,
			OfferedResponse: c.entry.Answer,
			Score:           c.score,
		}
	}
	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return Result{}, fmt.Errorf("could not encode candidates: %w", err)
	}

	userPrompt := fmt.Sprintf("Customer question: %s\n\nSimilar catalog questions:\n%s\n\nPick the best matching option.",
		question, optionsJSON)

	raw, err := a.llm.Generate(ctx, llmSystemPrompt, userPrompt)
	if err != nil {
		return Result{}, err
	}

	var verdict llmVerdict
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &verdict); err != nil {
		return Result{}, fmt.Errorf("llm verdict is not valid JSON: %w", err)
	}
	if verdict.OfferedResponse == "" {
		return Result{}, errors.New("llm verdict has no offered response")
	}
	if verdict.Score == 0 {
		verdict.Score = 0.8
	}

	return Result{
		MainCategory:    verdict.MainCategory,
		SubCategory:     verdict.SubCategory,
		OfferedResponse: verdict.OfferedResponse,
		Score:           verdict.Score,
	}, nil
}

// stripCodeFence unwraps a ```json ... ``` fenced completion.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
