package cases

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/returnguard/internal/scoring"
)

func storedCase(customerID string, riskScore float64, action string, age time.Duration) *ReturnCase {
	return &ReturnCase{
		ID:              uuid.New(),
		CustomerID:      customerID,
		ReturnReason:    "reason",
		ProductCategory: "electronics",
		RefundMethod:    RefundMethodCard,
		RiskScore:       riskScore,
		SuspicionScore:  riskScore / 100,
		ActionTaken:     action,
		Timestamp:       time.Now().UTC().Add(-age),
	}
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	returnCase := storedCase("cust-1", 42, "approve", 0)
	require.NoError(t, store.Insert(ctx, returnCase))

	fetched, err := store.GetByID(ctx, returnCase.ID)
	require.NoError(t, err)
	assert.Equal(t, returnCase.CustomerID, fetched.CustomerID)

	// Mutating the fetched copy must not affect the stored case
	fetched.RiskScore = 99
	again, err := store.GetByID(ctx, returnCase.ID)
	require.NoError(t, err)
	assert.Equal(t, 42.0, again.RiskScore)

	newAction := "flag"
	updated, err := store.Update(ctx, returnCase.ID, CaseUpdate{ActionTaken: &newAction})
	require.NoError(t, err)
	assert.Equal(t, "flag", updated.ActionTaken)

	require.NoError(t, store.Delete(ctx, returnCase.ID))

	_, err = store.GetByID(ctx, returnCase.ID)
	assert.ErrorIs(t, err, ErrCaseNotFound)
	assert.ErrorIs(t, store.Delete(ctx, returnCase.ID), ErrCaseNotFound)
}

func TestMemoryStoreUpdateMissingCase(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Update(context.Background(), uuid.New(), CaseUpdate{})
	assert.ErrorIs(t, err, ErrCaseNotFound)
}

func TestMemoryStoreFindFiltersAndPaginates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.InsertMany(ctx, []*ReturnCase{
		storedCase("cust-1", 90, "escalate", time.Hour),
		storedCase("cust-1", 60, "flag", 2*time.Hour),
		storedCase("cust-2", 10, "approve", 3*time.Hour),
	}))

	byCustomer, err := store.Find(ctx, Filter{CustomerID: "cust-1"})
	require.NoError(t, err)
	require.Len(t, byCustomer, 2)
	// Newest first
	assert.Equal(t, 90.0, byCustomer[0].RiskScore)

	minRisk := 50.0
	risky, err := store.Find(ctx, Filter{MinRiskScore: &minRisk})
	require.NoError(t, err)
	assert.Len(t, risky, 2)

	page, err := store.Find(ctx, Filter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, 60.0, page[0].RiskScore)

	past, err := store.Find(ctx, Filter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestMemoryStoreStatistics(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.InsertMany(ctx, []*ReturnCase{
		storedCase("cust-1", 90, "escalate", 0),
		storedCase("cust-2", 60, "flag", 0),
		storedCase("cust-3", 30, "approve", 0),
	}))

	stats, err := store.Statistics(ctx, scoring.DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalCases)
	assert.InDelta(t, 60.0, stats.AverageRiskScore, 1e-9)
	assert.Equal(t, 1, stats.HighRiskCases)
	assert.Equal(t, 1, stats.MediumRiskCases)
	assert.Equal(t, 1, stats.LowRiskCases)
}
