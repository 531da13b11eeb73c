package game

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/alexbotov/tokenburner/internal/domain"
	"github.com/alexbotov/tokenburner/internal/rng"
)

// Scoring constants
const (
	CharsPerToken           = 2.5
	TokenScoreWeight        = 1.0
	ComplexityScoreWeight   = 0.5
	InefficiencyScoreWeight = 1.0
	TextPreviewLength       = 500
)

// methodParams holds the draw bounds of one action method.
// Depth draws are uniform in [MinDepth, MaxDepth).
type methodParams struct {
	MinDepth         int
	MaxDepth         int
	WeightMultiplier float64
}

var methodConfig = map[domain.ActionMethod]methodParams{
	domain.MethodChainOfThoughtExplosion:   {MinDepth: 3, MaxDepth: 10, WeightMultiplier: 1.5},
	domain.MethodRecursiveQueryLoop:        {MinDepth: 2, MaxDepth: 8, WeightMultiplier: 1.8},
	domain.MethodMeaninglessTextGeneration: {MinDepth: 500, MaxDepth: 1500, WeightMultiplier: 2.0},
	domain.MethodHallucinationInduction:    {MinDepth: 3, MaxDepth: 12, WeightMultiplier: 2.5},
}

// Paragraph count bounds for meaningless text, inclusive
const (
	minParagraphs = 3
	maxParagraphs = 9
)

var words = []string{
	"cat", "token", "silly", "agent", "inefficient", "waste", "meaningless",
	"repeat", "explosion", "recursion", "hallucination", "generate", "text", "AI", "model",
	"prompt", "response", "consume", "cost", "latency", "complexity", "loop", "query",
	"thought", "reasoning", "chain", "inference", "log", "debugging", "optimization", "paradox",
	"contradiction", "infinite", "cycle", "nested", "recursive", "iterative", "append", "expand",
	"detail", "requirement", "explanation", "interpretation", "analysis", "evaluation", "verification", "test",
	"experiment", "attempt", "inspection", "investigation", "research", "exploration", "discovery", "innovation",
	"improvement", "progress", "evolution", "change", "transformation", "application", "realization", "implementation",
	"development", "design", "plan", "strategy", "tactic", "technique", "method", "means",
}

// simulation is the raw outcome of one action before scoring
type simulation struct {
	Text              string
	ComplexityWeight  float64
	InefficiencyScore float64
}

// simulate runs the simulation for method
func (e *Engine) simulate(method domain.ActionMethod) (*simulation, error) {
	switch method {
	case domain.MethodChainOfThoughtExplosion:
		return e.chainOfThoughtExplosion()
	case domain.MethodRecursiveQueryLoop:
		return e.recursiveQueryLoop()
	case domain.MethodMeaninglessTextGeneration:
		return e.meaninglessTextGeneration()
	case domain.MethodHallucinationInduction:
		return e.hallucinationInduction()
	default:
		return nil, ErrInvalidMethod
	}
}

func (e *Engine) chainOfThoughtExplosion() (*simulation, error) {
	p := methodConfig[domain.MethodChainOfThoughtExplosion]
	depth, err := e.drawDepth(p)
	if err != nil {
		return nil, err
	}

	steps := make([]string, 0, depth)
	for i := 1; i <= depth; i++ {
		step, err := e.sections([]section{
			{fmt.Sprintf("%d. Thought", i), 50},
			{fmt.Sprintf("%d. Analysis", i), 50},
			{fmt.Sprintf("%d. Evaluation", i), 50},
			{fmt.Sprintf("%d. Conclusion", i), 50},
		})
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	return &simulation{
		Text:             strings.Join(steps, "\n"),
		ComplexityWeight: float64(depth) * p.WeightMultiplier,
	}, nil
}

func (e *Engine) recursiveQueryLoop() (*simulation, error) {
	p := methodConfig[domain.MethodRecursiveQueryLoop]
	depth, err := e.drawDepth(p)
	if err != nil {
		return nil, err
	}

	queries := make([]string, 0, depth)
	for i := 1; i <= depth; i++ {
		query, err := e.sections([]section{
			{fmt.Sprintf("Query #%d", i), 30},
			{fmt.Sprintf("Subquery #%d-1", i), 20},
			{fmt.Sprintf("Subquery #%d-2", i), 20},
			{"Response", 40},
		})
		if err != nil {
			return nil, err
		}
		queries = append(queries, query)
	}

	return &simulation{
		Text:             strings.Join(queries, "\n"),
		ComplexityWeight: float64(depth) * p.WeightMultiplier,
	}, nil
}

func (e *Engine) meaninglessTextGeneration() (*simulation, error) {
	p := methodConfig[domain.MethodMeaninglessTextGeneration]
	count, err := e.rng.Between(minParagraphs, maxParagraphs)
	if err != nil {
		return nil, err
	}

	paragraphs := make([]string, 0, count)
	for i := 0; i < count; i++ {
		length, err := e.drawDepth(p)
		if err != nil {
			return nil, err
		}
		paragraph, err := e.meaninglessText(length)
		if err != nil {
			return nil, err
		}
		paragraphs = append(paragraphs, paragraph)
	}

	return &simulation{
		Text:              strings.Join(paragraphs, "\n\n"),
		InefficiencyScore: float64(count) * p.WeightMultiplier * 100,
	}, nil
}

func (e *Engine) hallucinationInduction() (*simulation, error) {
	p := methodConfig[domain.MethodHallucinationInduction]
	count, err := e.drawDepth(p)
	if err != nil {
		return nil, err
	}

	items := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		body, err := e.sections([]section{
			{"Unfounded claim", 50},
			{"False evidence", 40},
			{"Broken logic", 40},
			{"Nonexistent source", 30},
		})
		if err != nil {
			return nil, err
		}
		items = append(items, fmt.Sprintf("## Hallucination #%d:\n%s", i, body))
	}

	weight := float64(count) * p.WeightMultiplier
	return &simulation{
		Text:              strings.Join(items, "\n\n"),
		ComplexityWeight:  weight,
		InefficiencyScore: weight * 100,
	}, nil
}

type section struct {
	Label string
	Words int
}

// sections renders "label: words" lines joined by newlines
func (e *Engine) sections(parts []section) (string, error) {
	lines := make([]string, 0, len(parts))
	for _, part := range parts {
		text, err := e.meaninglessText(part.Words)
		if err != nil {
			return "", err
		}
		lines = append(lines, part.Label+": "+text)
	}
	return strings.Join(lines, "\n"), nil
}

// meaninglessText joins n randomly chosen words
func (e *Engine) meaninglessText(n int) (string, error) {
	chosen := make([]string, n)
	for i := range chosen {
		word, err := rng.Choose(e.rng, words)
		if err != nil {
			return "", err
		}
		chosen[i] = word
	}
	return strings.Join(chosen, " "), nil
}

func (e *Engine) drawDepth(p methodParams) (int, error) {
	n, err := e.rng.Intn(p.MaxDepth - p.MinDepth)
	if err != nil {
		return 0, err
	}
	return p.MinDepth + n, nil
}

// EstimateTokens approximates the token count of text
func EstimateTokens(text string) int {
	return int(math.Ceil(float64(utf8.RuneCountInString(text)) / CharsPerToken))
}

// CalculateScore returns the score for the game's current totals
func CalculateScore(tokensBurned int, complexityWeight, inefficiencyScore float64) int {
	return int(math.Floor(
		float64(tokensBurned)*TokenScoreWeight*complexityWeight*ComplexityScoreWeight +
			inefficiencyScore*InefficiencyScoreWeight,
	))
}

// preview truncates text to TextPreviewLength characters
func preview(text string) string {
	if utf8.RuneCountInString(text) <= TextPreviewLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:TextPreviewLength])
}
