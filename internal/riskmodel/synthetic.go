package riskmodel

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

const syntheticSampleCount = 1000

var syntheticRefundMethods = []string{"card", "wallet", "gift_card", "cash"}

// syntheticRows generates a bootstrapping/demo dataset: feature distributions
// plus a hand-specified weighted risk target, min-max normalized into [0,100].
// Deployments with real historical labels pass their own rows to Train.
func syntheticRows(n int) []TrainingRow {
	rng := rand.New(rand.NewSource(42))

	rows := make([]TrainingRow, n)
	raw := make([]float64, n)

	for i := range rows {
		row := TrainingRow{
			ReturnFrequency:           rng.Float64() * 20,
			AverageReturnTime:         1 + rng.Float64()*89,
			ProductCategoryDiversity:  1 + rng.Float64()*9,
			ReasonDiversityScore:      rng.Float64(),
			RefundMethodType:          syntheticRefundMethods[rng.Intn(len(syntheticRefundMethods))],
			PriorFraudSimilarityScore: rng.Float64(),
		}

		cashBonus := 0.0
		if row.RefundMethodType == "cash" {
			cashBonus = 10
		}

		raw[i] = row.ReturnFrequency*2 +
			(90-row.AverageReturnTime)*0.5 +
			row.ProductCategoryDiversity*3 +
			row.ReasonDiversityScore*20 +
			cashBonus +
			row.PriorFraudSimilarityScore*30

		rows[i] = row
	}

	lo := floats.Min(raw)
	hi := floats.Max(raw)
	span := hi - lo
	if span == 0 {
		span = 1
	}
	for i := range rows {
		rows[i].RiskScore = (raw[i] - lo) / span * 100
	}

	return rows
}
