package riskmodel

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func highRiskFeatures() Features {
	return Features{
		FeatureReturnFrequency:           18.0,
		FeatureAverageReturnTime:         2.0,
		FeatureProductCategoryDiversity:  9.0,
		FeatureReasonDiversityScore:      0.95,
		FeatureRefundMethodType:          "cash",
		FeaturePriorFraudSimilarityScore: 0.9,
	}
}

func lowRiskFeatures() Features {
	return Features{
		FeatureReturnFrequency:           1.0,
		FeatureAverageReturnTime:         85.0,
		FeatureProductCategoryDiversity:  1.0,
		FeatureReasonDiversityScore:      0.05,
		FeatureRefundMethodType:          "card",
		FeaturePriorFraudSimilarityScore: 0.02,
	}
}

func TestPredictBeforeTraining(t *testing.T) {
	engine := NewEngine()

	_, err := engine.Predict(highRiskFeatures())
	assert.ErrorIs(t, err, ErrNotTrained)
}

func TestSaveBeforeTraining(t *testing.T) {
	engine := NewEngine()

	err := engine.Save(filepath.Join(t.TempDir(), "model.gob"))
	assert.ErrorIs(t, err, ErrNotTrained)
}

func TestPredictMissingFeatures(t *testing.T) {
	engine := NewEngine()
	require.NoError(t, engine.Train(nil))

	features := highRiskFeatures()
	delete(features, FeaturePriorFraudSimilarityScore)

	_, err := engine.Predict(features)

	var missing *MissingFeatureError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{FeaturePriorFraudSimilarityScore}, missing.Keys)
	assert.Contains(t, err.Error(), FeaturePriorFraudSimilarityScore)
}

func TestPredictSeparatesRiskExtremes(t *testing.T) {
	engine := NewEngine()
	require.NoError(t, engine.Train(nil))

	high, err := engine.Predict(highRiskFeatures())
	require.NoError(t, err)
	low, err := engine.Predict(lowRiskFeatures())
	require.NoError(t, err)

	assert.Greater(t, high, low)
	assert.GreaterOrEqual(t, high, 0.0)
	assert.LessOrEqual(t, high, 100.0)
	assert.GreaterOrEqual(t, low, 0.0)
	assert.LessOrEqual(t, low, 100.0)
}

func TestPredictToleratesUnknownRefundMethod(t *testing.T) {
	engine := NewEngine()
	require.NoError(t, engine.Train(nil))

	features := highRiskFeatures()
	features[FeatureRefundMethodType] = "carrier_pigeon"

	score, err := engine.Predict(features)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 100.0)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "risk.gob")

	trained := NewEngine()
	require.NoError(t, trained.Train(nil))
	require.NoError(t, trained.Save(path))

	original, err := trained.Predict(highRiskFeatures())
	require.NoError(t, err)

	loaded := NewEngine()
	require.NoError(t, loaded.Load(path))
	assert.True(t, loaded.Trained())

	restored, err := loaded.Predict(highRiskFeatures())
	require.NoError(t, err)
	assert.InDelta(t, original, restored, 1e-9)
}

func TestLoadMissingFile(t *testing.T) {
	engine := NewEngine()

	err := engine.Load(filepath.Join(t.TempDir(), "nope.gob"))
	assert.ErrorIs(t, err, ErrModelFileNotFound)
	assert.False(t, engine.Trained())
}

func TestTrainWithCustomRows(t *testing.T) {
	rows := make([]TrainingRow, 0, 40)
	for i := 0; i < 20; i++ {
		rows = append(rows, TrainingRow{
			ReturnFrequency:           15 + float64(i%5),
			AverageReturnTime:         3,
			ProductCategoryDiversity:  8,
			ReasonDiversityScore:      0.9,
			RefundMethodType:          "cash",
			PriorFraudSimilarityScore: 0.85,
			RiskScore:                 90,
		})
		rows = append(rows, TrainingRow{
			ReturnFrequency:           1 + float64(i%3),
			AverageReturnTime:         80,
			ProductCategoryDiversity:  1,
			ReasonDiversityScore:      0.1,
			RefundMethodType:          "card",
			PriorFraudSimilarityScore: 0.05,
			RiskScore:                 5,
		})
	}

	engine := NewEngine()
	require.NoError(t, engine.Train(rows))

	high, err := engine.Predict(highRiskFeatures())
	require.NoError(t, err)
	low, err := engine.Predict(lowRiskFeatures())
	require.NoError(t, err)

	assert.Greater(t, high, 50.0)
	assert.Less(t, low, 50.0)
}
