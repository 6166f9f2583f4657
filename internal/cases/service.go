package cases

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richxcame/returnguard/internal/scoring"
	"github.com/richxcame/returnguard/internal/vision"
	"github.com/richxcame/returnguard/pkg/common"
	"github.com/richxcame/returnguard/pkg/events"
	"github.com/richxcame/returnguard/pkg/logger"
	"github.com/richxcame/returnguard/pkg/redis"
)

const (
	statsCacheKey = "cases:statistics"
	statsCacheTTL = time.Minute

	defaultListLimit = 50
	maxListLimit     = 200
)

// Service handles return case business logic
type Service struct {
	store     Store
	scorer    Scorer
	cache     *redis.Client
	publisher events.Publisher
	policy    scoring.Policy
}

// NewService creates a new case service. cache may be nil to disable
// statistics caching; publisher may be nil to disable events.
func NewService(store Store, scorer Scorer, cache *redis.Client, publisher events.Publisher, policy scoring.Policy) *Service {
	return &Service{
		store:     store,
		scorer:    scorer,
		cache:     cache,
		publisher: publisher,
		policy:    policy,
	}
}

// CreateCase stores an already-scored case supplied by the caller
func (s *Service) CreateCase(ctx context.Context, req CreateCaseRequest) (*ReturnCase, error) {
	timestamp := time.Now().UTC()
	if req.Timestamp != nil {
		timestamp = *req.Timestamp
	}

	returnCase := &ReturnCase{
		ID:              uuid.New(),
		CustomerID:      req.CustomerID,
		ReturnReason:    req.ReturnReason,
		ProductCategory: req.ProductCategory,
		RefundMethod:    req.RefundMethod,
		RiskScore:       *req.RiskScore,
		SuspicionScore:  *req.SuspicionScore,
		ActionTaken:     req.ActionTaken,
		Timestamp:       timestamp,
	}

	if err := s.store.Insert(ctx, returnCase); err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)

	return returnCase, nil
}

// ScoreSubmission is an unscored intake case plus the behavioral feature
// vector and optional image pair needed to score it
type ScoreSubmission struct {
	CustomerID      string
	ReturnReason    string
	ProductCategory string
	RefundMethod    string
	Features        map[string]any
	OriginalImage   []byte
	ReturnedImage   []byte
}

// ScoreAndCreate runs the scoring pipeline for an intake case, stores the
// scored case with the action derived from its tier, and emits a
// case.scored event when publishing is enabled.
func (s *Service) ScoreAndCreate(ctx context.Context, submission ScoreSubmission) (*ReturnCase, *scoring.CaseScore, error) {
	input := scoring.CaseInput{
		ReturnReason: submission.ReturnReason,
		Features:     submission.Features,
	}

	if len(submission.OriginalImage) > 0 || len(submission.ReturnedImage) > 0 {
		original, err := vision.DecodeImage(submission.OriginalImage)
		if err != nil {
			return nil, nil, err
		}
		returned, err := vision.DecodeImage(submission.ReturnedImage)
		if err != nil {
			return nil, nil, err
		}
		input.OriginalImage = original
		input.ReturnedImage = returned
	}

	score, err := s.scorer.ScoreCase(ctx, input)
	if err != nil {
		return nil, nil, err
	}

	returnCase := &ReturnCase{
		ID:              uuid.New(),
		CustomerID:      submission.CustomerID,
		ReturnReason:    submission.ReturnReason,
		ProductCategory: submission.ProductCategory,
		RefundMethod:    submission.RefundMethod,
		RiskScore:       score.Disposition.RiskScore,
		SuspicionScore:  score.Disposition.SuspicionScore,
		Visual:          score.Visual,
		ActionTaken:     score.Disposition.ActionTaken,
		Timestamp:       time.Now().UTC(),
	}

	if err := s.store.Insert(ctx, returnCase); err != nil {
		return nil, nil, err
	}

	s.invalidateStats(ctx)
	s.publishScored(ctx, returnCase, score.Disposition.Tier)

	return returnCase, score, nil
}

// GetCase retrieves a return case by ID
func (s *Service) GetCase(ctx context.Context, id uuid.UUID) (*ReturnCase, error) {
	return s.store.GetByID(ctx, id)
}

// ListCases retrieves cases matching the filter with bounded pagination
func (s *Service) ListCases(ctx context.Context, filter Filter) ([]*ReturnCase, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	return s.store.Find(ctx, filter)
}

// UpdateCase applies a partial update to a case
func (s *Service) UpdateCase(ctx context.Context, id uuid.UUID, req UpdateCaseRequest) (*ReturnCase, error) {
	returnCase, err := s.store.Update(ctx, id, CaseUpdate{
		ReturnReason:    req.ReturnReason,
		ProductCategory: req.ProductCategory,
		RefundMethod:    req.RefundMethod,
		RiskScore:       req.RiskScore,
		SuspicionScore:  req.SuspicionScore,
		ActionTaken:     req.ActionTaken,
	})
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)

	return returnCase, nil
}

// DeleteCase removes a case
func (s *Service) DeleteCase(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidateStats(ctx)

	return nil
}

// IngestCSV parses and stores a CSV batch, returning the inserted count
func (s *Service) IngestCSV(ctx context.Context, r io.Reader) (int, error) {
	returnCases, err := ParseCSV(r)
	if err != nil {
		return 0, ingestError(err)
	}
	return s.ingest(ctx, returnCases)
}

// IngestJSON parses and stores a JSON batch, returning the inserted count
func (s *Service) IngestJSON(ctx context.Context, r io.Reader) (int, error) {
	returnCases, err := ParseJSON(r)
	if err != nil {
		return 0, ingestError(err)
	}
	return s.ingest(ctx, returnCases)
}

// ingestError keeps MissingColumnsError intact and wraps every other parse
// failure as a bad request
func ingestError(err error) error {
	var missingColumns *MissingColumnsError
	if errors.As(err, &missingColumns) {
		return err
	}
	return common.NewBadRequestError("invalid batch file", err)
}

func (s *Service) ingest(ctx context.Context, returnCases []*ReturnCase) (int, error) {
	if len(returnCases) == 0 {
		return 0, nil
	}

	if err := s.store.InsertMany(ctx, returnCases); err != nil {
		return 0, err
	}

	s.invalidateStats(ctx)

	return len(returnCases), nil
}

// Statistics returns case statistics, served from the Redis cache when
// fresh and recomputed from the store otherwise
func (s *Service) Statistics(ctx context.Context) (*scoring.Stats, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetString(ctx, statsCacheKey); err == nil {
			var stats scoring.Stats
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				return &stats, nil
			}
		}
	}

	stats, err := s.store.Statistics(ctx, s.policy)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := s.cache.SetWithExpiration(ctx, statsCacheKey, string(payload), statsCacheTTL); err != nil {
				logger.WithContext(ctx).Warn("Failed to cache case statistics", zap.Error(err))
			}
		}
	}

	return stats, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, statsCacheKey); err != nil {
		logger.WithContext(ctx).Warn("Failed to invalidate statistics cache", zap.Error(err))
	}
}

func (s *Service) publishScored(ctx context.Context, returnCase *ReturnCase, tier scoring.RiskTier) {
	if s.publisher == nil {
		return
	}

	event := events.CaseScoredEvent{
		CaseID:         returnCase.ID.String(),
		CustomerID:     returnCase.CustomerID,
		RiskScore:      returnCase.RiskScore,
		SuspicionScore: returnCase.SuspicionScore,
		Tier:           string(tier),
		ActionTaken:    returnCase.ActionTaken,
		ScoredAt:       returnCase.Timestamp,
	}

	if err := s.publisher.PublishCaseScored(ctx, event); err != nil {
		logger.WithContext(ctx).Warn("Failed to publish case scored event",
			zap.String("case_id", event.CaseID),
			zap.Error(err),
		)
	}
}
