package textanalysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeRejectsEmptyReason(t *testing.T) {
	analyzer := NewAnalyzer()

	_, err := analyzer.Analyze("")
	assert.ErrorIs(t, err, ErrEmptyReason)

	_, err = analyzer.Analyze("   \t  ")
	assert.ErrorIs(t, err, ErrEmptyReason)
}

func TestAnalyzeMatchesSuspiciousPatterns(t *testing.T) {
	analyzer := NewAnalyzer()

	result, err := analyzer.Analyze("The item was not as expected and arrived damaged. It's not working properly.")
	require.NoError(t, err)

	assert.Contains(t, result.PatternMatches, "not as expected")
	assert.Contains(t, result.PatternMatches, "damaged")
	assert.Contains(t, result.PatternMatches, "not working")
	assert.Contains(t, result.ReasonSummary, "suspicious phrases detected")
	assert.Greater(t, result.SuspicionScore, 0.4)
}

func TestAnalyzeMatchesScriptedPhrases(t *testing.T) {
	analyzer := NewAnalyzer()

	result, err := analyzer.Analyze("Item is still in box, never used, perfect condition.")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"perfect condition", "never used", "still in box"}, result.ScriptedPhrases)
	assert.Contains(t, result.ReasonSummary, "scripted/boilerplate language detected")
}

func TestAnalyzeDoesNotMatchPartialWords(t *testing.T) {
	analyzer := NewAnalyzer()

	// "undamaged" must not trip the "damaged" pattern
	result, err := analyzer.Analyze("The package arrived undamaged but I changed my mind about the color scheme entirely.")
	require.NoError(t, err)

	assert.NotContains(t, result.PatternMatches, "damaged")
}

func TestAnalyzeFlagsShortExplanations(t *testing.T) {
	analyzer := NewAnalyzer()

	result, err := analyzer.Analyze("Changed my mind.")
	require.NoError(t, err)

	assert.Less(t, result.WordCount, shortReasonWords)
	assert.Contains(t, result.ReasonSummary, "very short explanation")
}

func TestAnalyzeWordCountExcludesPunctuation(t *testing.T) {
	analyzer := NewAnalyzer()

	result, err := analyzer.Analyze("Broken ! ! ! item - totally unusable , sadly")
	require.NoError(t, err)

	// "!", "-" and "," tokens are not words
	assert.Equal(t, 5, result.WordCount)
}

func TestAnalyzeNeutralScoreComposition(t *testing.T) {
	analyzer := NewAnalyzer()

	// Sentiment-free text with no suspicious or scripted phrases: the score
	// must reduce to the length component plus the fixed neutral penalty.
	reason := "the parcel went back to the depot on tuesday via the usual courier route"
	result, err := analyzer.Analyze(reason)
	require.NoError(t, err)
	require.Equal(t, SentimentNeutral, result.SentimentLabel)
	require.Empty(t, result.PatternMatches)
	require.Empty(t, result.ScriptedPhrases)

	expected := lengthWeight*min(float64(result.WordCount)/lengthScaleWords, 1.0) + neutralPenalty
	assert.InDelta(t, expected, result.SuspicionScore, 1e-9)
}

func TestAnalyzeNoIndicatorsSummary(t *testing.T) {
	analyzer := NewAnalyzer()

	result, err := analyzer.Analyze("the parcel went back to the depot on tuesday because the courier rescheduled the delivery twice")
	require.NoError(t, err)
	require.Empty(t, result.PatternMatches)
	require.Empty(t, result.ScriptedPhrases)
	require.GreaterOrEqual(t, result.WordCount, shortReasonWords)

	if result.SentimentLabel == SentimentNeutral {
		assert.Equal(t, noIndicatorsSummary, result.ReasonSummary)
	}
}

func TestAnalyzeNegativeSentimentPenalty(t *testing.T) {
	analyzer := NewAnalyzer()

	result, err := analyzer.Analyze("This is terrible, awful, horrible garbage and I hate it so much.")
	require.NoError(t, err)

	assert.Equal(t, SentimentNegative, result.SentimentLabel)
	assert.Contains(t, result.ReasonSummary, "negative sentiment")
	assert.GreaterOrEqual(t, result.SentimentScore, 0.0)
	assert.LessOrEqual(t, result.SentimentScore, 1.0)
}

func TestAnalyzeScoreIsClamped(t *testing.T) {
	analyzer := NewAnalyzer()

	// Stack enough pattern and scripted matches to exceed 1.0 before clamping
	result, err := analyzer.Analyze(
		"Item broken, defective, not working, wrong item, damaged, poor quality, " +
			"doesn't fit, too small, brand new, never used, still in box, original packaging.")
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.SuspicionScore)
}

func TestBatchAnalyzeReusesBatchSentiment(t *testing.T) {
	analyzer := NewAnalyzer()

	reasons := []string{
		"The item was not as expected and arrived damaged.",
		"The product is exactly as described but doesn't fit me well.",
		"Changed my mind.",
	}

	batch, err := analyzer.BatchAnalyze(reasons)
	require.NoError(t, err)
	require.Len(t, batch, len(reasons))

	// The batch path must agree with the single path item by item
	for i, reason := range reasons {
		single, err := analyzer.Analyze(reason)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i], "mismatch for reason %d", i)
	}
}

func TestBatchAnalyzeRejectsEmptyItem(t *testing.T) {
	analyzer := NewAnalyzer()

	_, err := analyzer.BatchAnalyze([]string{"valid reason text", "  "})
	assert.ErrorIs(t, err, ErrEmptyReason)
}
