package cases

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/returnguard/internal/scoring"
	"github.com/richxcame/returnguard/internal/textanalysis"
	"github.com/richxcame/returnguard/pkg/events"
	redispkg "github.com/richxcame/returnguard/pkg/redis"
)

type mockScorer struct {
	mock.Mock
}

func (m *mockScorer) ScoreCase(ctx context.Context, input scoring.CaseInput) (*scoring.CaseScore, error) {
	args := m.Called(ctx, input)
	score, _ := args.Get(0).(*scoring.CaseScore)
	return score, args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishCaseScored(ctx context.Context, event events.CaseScoredEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockPublisher) Close() {}

func cacheClient(t *testing.T) (*redispkg.Client, redismock.ClientMock) {
	db, cacheMock := redismock.NewClientMock()
	t.Cleanup(func() { db.Close() })
	return &redispkg.Client{Client: db}, cacheMock
}

func TestCreateCaseInvalidatesStatsCache(t *testing.T) {
	cache, cacheMock := cacheClient(t)
	cacheMock.ExpectDel(statsCacheKey).SetVal(1)

	service := NewService(NewMemoryStore(), nil, cache, nil, scoring.DefaultPolicy())

	riskScore := 42.0
	suspicionScore := 0.3
	returnCase, err := service.CreateCase(context.Background(), CreateCaseRequest{
		CustomerID:      "cust-1",
		ReturnReason:    "item arrived damaged",
		ProductCategory: "electronics",
		RefundMethod:    RefundMethodCard,
		RiskScore:       &riskScore,
		SuspicionScore:  &suspicionScore,
		ActionTaken:     "approve",
	})
	require.NoError(t, err)

	assert.NotEqual(t, returnCase.ID.String(), "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, 42.0, returnCase.RiskScore)
	assert.False(t, returnCase.Timestamp.IsZero())
	assert.NoError(t, cacheMock.ExpectationsWereMet())
}

func TestScoreAndCreateStoresDispositionAndPublishes(t *testing.T) {
	store := NewMemoryStore()
	scorer := new(mockScorer)
	publisher := new(mockPublisher)

	score := &scoring.CaseScore{
		Text: &textanalysis.Result{SuspicionScore: 0.7},
		Disposition: scoring.Disposition{
			Tier:           scoring.TierHigh,
			ActionTaken:    scoring.ActionEscalate,
			Rationale:      "high behavioral risk score",
			RiskScore:      85,
			SuspicionScore: 0.7,
		},
	}

	scorer.On("ScoreCase", mock.Anything, mock.MatchedBy(func(input scoring.CaseInput) bool {
		return input.ReturnReason == "item never arrived" && input.OriginalImage == nil
	})).Return(score, nil)

	publisher.On("PublishCaseScored", mock.Anything, mock.MatchedBy(func(event events.CaseScoredEvent) bool {
		return event.CustomerID == "cust-7" &&
			event.Tier == "HIGH" &&
			event.ActionTaken == "escalate" &&
			event.RiskScore == 85.0
	})).Return(nil)

	service := NewService(store, scorer, nil, publisher, scoring.DefaultPolicy())

	returnCase, caseScore, err := service.ScoreAndCreate(context.Background(), ScoreSubmission{
		CustomerID:      "cust-7",
		ReturnReason:    "item never arrived",
		ProductCategory: "electronics",
		RefundMethod:    RefundMethodCash,
		Features:        map[string]any{"return_frequency": 12.0},
	})
	require.NoError(t, err)

	assert.Equal(t, 85.0, returnCase.RiskScore)
	assert.Equal(t, 0.7, returnCase.SuspicionScore)
	assert.Equal(t, "escalate", returnCase.ActionTaken)
	assert.Equal(t, scoring.TierHigh, caseScore.Disposition.Tier)

	stored, err := store.GetByID(context.Background(), returnCase.ID)
	require.NoError(t, err)
	assert.Equal(t, "cust-7", stored.CustomerID)

	scorer.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestScoreAndCreateToleratesPublishFailure(t *testing.T) {
	scorer := new(mockScorer)
	publisher := new(mockPublisher)

	scorer.On("ScoreCase", mock.Anything, mock.Anything).Return(&scoring.CaseScore{
		Text:        &textanalysis.Result{SuspicionScore: 0.1},
		Disposition: scoring.Disposition{Tier: scoring.TierLow, ActionTaken: scoring.ActionApprove, RiskScore: 10},
	}, nil)
	publisher.On("PublishCaseScored", mock.Anything, mock.Anything).Return(errors.New("nats down"))

	service := NewService(NewMemoryStore(), scorer, nil, publisher, scoring.DefaultPolicy())

	_, _, err := service.ScoreAndCreate(context.Background(), ScoreSubmission{
		CustomerID:   "cust-1",
		ReturnReason: "wrong size",
		RefundMethod: RefundMethodCard,
		Features:     map[string]any{},
	})
	assert.NoError(t, err)
}

func TestScoreAndCreateFailsClosedOnScoringError(t *testing.T) {
	scorer := new(mockScorer)
	scorer.On("ScoreCase", mock.Anything, mock.Anything).
		Return(nil, textanalysis.ErrEmptyReason)

	store := NewMemoryStore()
	service := NewService(store, scorer, nil, nil, scoring.DefaultPolicy())

	_, _, err := service.ScoreAndCreate(context.Background(), ScoreSubmission{CustomerID: "cust-1"})
	assert.ErrorIs(t, err, textanalysis.ErrEmptyReason)

	// Nothing persisted on failure
	found, err := store.Find(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestStatisticsCacheMiss(t *testing.T) {
	cache, cacheMock := cacheClient(t)
	store := NewMemoryStore()

	ctx := context.Background()
	require.NoError(t, store.InsertMany(ctx, []*ReturnCase{
		storedCase("cust-1", 90, "escalate", 0),
		storedCase("cust-2", 10, "approve", 0),
	}))

	cacheMock.ExpectGet(statsCacheKey).RedisNil()
	cacheMock.Regexp().ExpectSet(statsCacheKey, `.*"total_cases":2.*`, statsCacheTTL).SetVal("OK")

	service := NewService(store, nil, cache, nil, scoring.DefaultPolicy())

	stats, err := service.Statistics(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalCases)
	assert.InDelta(t, 50.0, stats.AverageRiskScore, 1e-9)
	assert.NoError(t, cacheMock.ExpectationsWereMet())
}

func TestStatisticsCacheHit(t *testing.T) {
	cache, cacheMock := cacheClient(t)

	cached := scoring.Stats{TotalCases: 7, AverageRiskScore: 33, HighRiskCases: 2}
	payload, err := json.Marshal(cached)
	require.NoError(t, err)

	cacheMock.ExpectGet(statsCacheKey).SetVal(string(payload))

	// Empty store proves the cached value is served
	service := NewService(NewMemoryStore(), nil, cache, nil, scoring.DefaultPolicy())

	stats, err := service.Statistics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 7, stats.TotalCases)
	assert.Equal(t, 33.0, stats.AverageRiskScore)
	assert.NoError(t, cacheMock.ExpectationsWereMet())
}

func TestIngestJSONMissingColumnsRejectsBatch(t *testing.T) {
	store := NewMemoryStore()
	service := NewService(store, nil, nil, nil, scoring.DefaultPolicy())

	count, err := service.IngestJSON(context.Background(), strings.NewReader(`[{"customer_id":"c1"}]`))

	var missing *MissingColumnsError
	assert.ErrorAs(t, err, &missing)
	assert.Zero(t, count)

	found, err := store.Find(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestIngestCSVStoresBatch(t *testing.T) {
	cache, cacheMock := cacheClient(t)
	cacheMock.ExpectDel(statsCacheKey).SetVal(1)

	store := NewMemoryStore()
	service := NewService(store, nil, cache, nil, scoring.DefaultPolicy())

	count, err := service.IngestCSV(context.Background(), strings.NewReader(validCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	found, err := store.Find(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.NoError(t, cacheMock.ExpectationsWereMet())
}

func TestListCasesClampsPagination(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Insert(ctx, storedCase("cust-1", float64(i*10), "approve", time.Duration(i)*time.Hour)))
	}

	service := NewService(store, nil, nil, nil, scoring.DefaultPolicy())

	all, err := service.ListCases(ctx, Filter{Offset: -3})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	limited, err := service.ListCases(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
