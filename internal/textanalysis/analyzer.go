package textanalysis

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/jonreiter/govader"
)

// ErrEmptyReason is returned when the return reason is empty or whitespace
var ErrEmptyReason = errors.New("return reason must not be empty")

// SentimentLabel classifies the overall sentiment of a return reason
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "POSITIVE"
	SentimentNegative SentimentLabel = "NEGATIVE"
	SentimentNeutral  SentimentLabel = "NEUTRAL"
)

// Scoring weights for the suspicion score composition
const (
	patternWeight   = 0.2
	scriptedWeight  = 0.15
	lengthWeight    = 0.1
	sentimentWeight = 0.2

	neutralPenalty   = 0.05
	lengthScaleWords = 50.0
	shortReasonWords = 10
)

// VADER compound cutoffs for the positive/negative labels
const compoundCutoff = 0.05

const noIndicatorsSummary = "no strong indicators"

// Result holds the outcome of analyzing a single return reason
type Result struct {
	SuspicionScore  float64        `json:"suspicion_score"`
	PatternMatches  []string       `json:"pattern_matches"`
	ScriptedPhrases []string       `json:"scripted_phrases"`
	SentimentLabel  SentimentLabel `json:"sentiment_label"`
	SentimentScore  float64        `json:"sentiment_score"`
	WordCount       int            `json:"word_count"`
	ReasonSummary   string         `json:"reason_summary"`
}

// Analyzer scores return-reason text for fraud suspicion. Safe for
// concurrent use once constructed.
type Analyzer struct {
	sentiment *govader.SentimentIntensityAnalyzer

	suspiciousPatterns []string
	scriptedPhrases    []string
	patternRegexps     []*regexp.Regexp
	scriptedRegexps    []*regexp.Regexp
}

var defaultSuspiciousPatterns = []string{
	"not as expected", "item broken", "defective", "not working",
	"wrong item", "damaged", "poor quality", "not what i ordered",
	"doesn't fit", "too small", "too large",
}

var defaultScriptedPhrases = []string{
	"as described", "exactly as", "perfect condition",
	"brand new", "never used", "still in box", "original packaging",
}

// NewAnalyzer creates an analyzer with the built-in phrase lists
func NewAnalyzer() *Analyzer {
	a := &Analyzer{
		sentiment:          govader.NewSentimentIntensityAnalyzer(),
		suspiciousPatterns: defaultSuspiciousPatterns,
		scriptedPhrases:    defaultScriptedPhrases,
	}

	a.patternRegexps = compilePhrases(a.suspiciousPatterns)
	a.scriptedRegexps = compilePhrases(a.scriptedPhrases)

	return a
}

// compilePhrases builds whole-phrase matchers so partial words never match
func compilePhrases(phrases []string) []*regexp.Regexp {
	regexps := make([]*regexp.Regexp, len(phrases))
	for i, phrase := range phrases {
		regexps[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(phrase) + `\b`)
	}
	return regexps
}

// Analyze scores a single return reason
func (a *Analyzer) Analyze(reason string) (*Result, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrEmptyReason
	}

	label, confidence := a.classify(reason)
	return a.compose(reason, label, confidence), nil
}

// BatchAnalyze scores many return reasons, running sentiment classification
// over the whole batch once and reusing its results per item.
func (a *Analyzer) BatchAnalyze(reasons []string) ([]*Result, error) {
	for i, reason := range reasons {
		if strings.TrimSpace(reason) == "" {
			return nil, fmt.Errorf("reason at index %d: %w", i, ErrEmptyReason)
		}
	}

	labels, confidences := a.classifyBatch(reasons)

	results := make([]*Result, len(reasons))
	for i, reason := range reasons {
		results[i] = a.compose(reason, labels[i], confidences[i])
	}

	return results, nil
}

// classify runs sentiment analysis on one text
func (a *Analyzer) classify(text string) (SentimentLabel, float64) {
	scores := a.sentiment.PolarityScores(text)
	return labelFromCompound(scores.Compound)
}

// classifyBatch runs sentiment analysis over all texts in one pass
func (a *Analyzer) classifyBatch(texts []string) ([]SentimentLabel, []float64) {
	labels := make([]SentimentLabel, len(texts))
	confidences := make([]float64, len(texts))
	for i, text := range texts {
		scores := a.sentiment.PolarityScores(text)
		labels[i], confidences[i] = labelFromCompound(scores.Compound)
	}
	return labels, confidences
}

func labelFromCompound(compound float64) (SentimentLabel, float64) {
	confidence := clamp01(abs(compound))
	switch {
	case compound >= compoundCutoff:
		return SentimentPositive, confidence
	case compound <= -compoundCutoff:
		return SentimentNegative, confidence
	default:
		return SentimentNeutral, confidence
	}
}

// compose matches phrases, counts words and assembles the suspicion score
func (a *Analyzer) compose(reason string, label SentimentLabel, confidence float64) *Result {
	textLower := strings.ToLower(reason)

	patternMatches := matchPhrases(textLower, a.suspiciousPatterns, a.patternRegexps)
	scriptedMatches := matchPhrases(textLower, a.scriptedPhrases, a.scriptedRegexps)

	var sentimentPenalty float64
	switch label {
	case SentimentNegative:
		sentimentPenalty = confidence * sentimentWeight
	case SentimentPositive:
		sentimentPenalty = (1 - confidence) * sentimentWeight
	default:
		sentimentPenalty = neutralPenalty
	}

	wordCount := countWords(reason)

	patternScore := float64(len(patternMatches)) * patternWeight
	scriptedScore := float64(len(scriptedMatches)) * scriptedWeight
	lengthScore := min(float64(wordCount)/lengthScaleWords, 1.0) * lengthWeight

	suspicionScore := clamp01(patternScore + scriptedScore + lengthScore + sentimentPenalty)

	var reasons []string
	if len(patternMatches) > 0 {
		reasons = append(reasons, "suspicious phrases detected")
	}
	if len(scriptedMatches) > 0 {
		reasons = append(reasons, "scripted/boilerplate language detected")
	}
	if label == SentimentNegative {
		reasons = append(reasons, "negative sentiment")
	}
	if wordCount < shortReasonWords {
		reasons = append(reasons, "very short explanation")
	}

	summary := noIndicatorsSummary
	if len(reasons) > 0 {
		summary = strings.Join(reasons, ", ")
	}

	return &Result{
		SuspicionScore:  suspicionScore,
		PatternMatches:  patternMatches,
		ScriptedPhrases: scriptedMatches,
		SentimentLabel:  label,
		SentimentScore:  confidence,
		WordCount:       wordCount,
		ReasonSummary:   summary,
	}
}

func matchPhrases(textLower string, phrases []string, regexps []*regexp.Regexp) []string {
	matches := make([]string, 0)
	for i, re := range regexps {
		if re.MatchString(textLower) {
			matches = append(matches, phrases[i])
		}
	}
	return matches
}

// countWords counts whitespace-separated tokens, excluding tokens made up
// entirely of punctuation.
func countWords(text string) int {
	count := 0
	for _, token := range strings.Fields(text) {
		if hasLetterOrDigit(token) {
			count++
		}
	}
	return count
}

func hasLetterOrDigit(token string) bool {
	for _, r := range token {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
