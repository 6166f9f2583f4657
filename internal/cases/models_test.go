package cases

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/returnguard/internal/vision"
)

func TestReturnCaseJSONRoundTrip(t *testing.T) {
	original := ReturnCase{
		ID:              uuid.New(),
		CustomerID:      "cust-42",
		ReturnReason:    "the item stopped working after two days",
		ProductCategory: "electronics",
		RefundMethod:    RefundMethodGiftCard,
		RiskScore:       73.25,
		SuspicionScore:  0.4125,
		Visual: &vision.ComparisonResult{
			SSIMScore:           0.91,
			HistogramSimilarity: 0.88,
			FeatureSimilarity:   0.75,
			OverallSimilarity:   0.853,
			IsSuspicious:        false,
		},
		ActionTaken: "flag",
		Timestamp:   time.Date(2025, 6, 3, 14, 22, 9, 123456789, time.UTC),
	}

	payload, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded ReturnCase
	require.NoError(t, json.Unmarshal(payload, &decoded))

	assert.Equal(t, original.ID, decoded.ID)
	assert.Equal(t, original.CustomerID, decoded.CustomerID)
	assert.Equal(t, original.ReturnReason, decoded.ReturnReason)
	assert.Equal(t, original.ProductCategory, decoded.ProductCategory)
	assert.Equal(t, original.RefundMethod, decoded.RefundMethod)
	assert.Equal(t, original.RiskScore, decoded.RiskScore)
	assert.Equal(t, original.SuspicionScore, decoded.SuspicionScore)
	assert.Equal(t, original.Visual, decoded.Visual)
	assert.Equal(t, original.ActionTaken, decoded.ActionTaken)
	assert.True(t, original.Timestamp.Equal(decoded.Timestamp))
}

func TestReturnCaseJSONOmitsMissingVisual(t *testing.T) {
	returnCase := ReturnCase{ID: uuid.New(), CustomerID: "cust-1"}

	payload, err := json.Marshal(returnCase)
	require.NoError(t, err)

	assert.NotContains(t, string(payload), "visual_comparison")
	assert.Contains(t, string(payload), "refund_method_type")
}
