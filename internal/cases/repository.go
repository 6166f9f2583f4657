package cases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/richxcame/returnguard/internal/scoring"
	"github.com/richxcame/returnguard/internal/vision"
)

// Repository handles return case data operations
type Repository struct {
	db *pgxpool.Pool
}

// Ensure the concrete repository satisfies the store port.
var _ Store = (*Repository)(nil)

// NewRepository creates a new case repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const insertCaseQuery = `
	INSERT INTO return_cases (
		id, customer_id, return_reason, product_category, refund_method_type,
		risk_score, suspicion_score, visual_comparison, action_taken, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

// Insert creates a new return case
func (r *Repository) Insert(ctx context.Context, returnCase *ReturnCase) error {
	visualJSON, err := marshalVisual(returnCase.Visual)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, insertCaseQuery,
		returnCase.ID,
		returnCase.CustomerID,
		returnCase.ReturnReason,
		returnCase.ProductCategory,
		returnCase.RefundMethod,
		returnCase.RiskScore,
		returnCase.SuspicionScore,
		visualJSON,
		returnCase.ActionTaken,
		returnCase.Timestamp,
	)

	return err
}

// InsertMany creates return cases in bulk using a single batched round trip
func (r *Repository) InsertMany(ctx context.Context, returnCases []*ReturnCase) error {
	if len(returnCases) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, returnCase := range returnCases {
		visualJSON, err := marshalVisual(returnCase.Visual)
		if err != nil {
			return err
		}

		batch.Queue(insertCaseQuery,
			returnCase.ID,
			returnCase.CustomerID,
			returnCase.ReturnReason,
			returnCase.ProductCategory,
			returnCase.RefundMethod,
			returnCase.RiskScore,
			returnCase.SuspicionScore,
			visualJSON,
			returnCase.ActionTaken,
			returnCase.Timestamp,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range returnCases {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}

	return results.Close()
}

// GetByID retrieves a return case by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*ReturnCase, error) {
	query := `
		SELECT id, customer_id, return_reason, product_category, refund_method_type,
		       risk_score, suspicion_score, visual_comparison, action_taken, created_at
		FROM return_cases
		WHERE id = $1
	`

	returnCase, err := scanCase(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCaseNotFound
		}
		return nil, err
	}

	return returnCase, nil
}

// Find retrieves return cases matching the filter, newest first
func (r *Repository) Find(ctx context.Context, filter Filter) ([]*ReturnCase, error) {
	var (
		conditions []string
		args       []any
	)

	addCondition := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.CustomerID != "" {
		addCondition("customer_id = $%d", filter.CustomerID)
	}
	if filter.ProductCategory != "" {
		addCondition("product_category = $%d", filter.ProductCategory)
	}
	if filter.ActionTaken != "" {
		addCondition("action_taken = $%d", filter.ActionTaken)
	}
	if filter.MinRiskScore != nil {
		addCondition("risk_score >= $%d", *filter.MinRiskScore)
	}
	if filter.MaxRiskScore != nil {
		addCondition("risk_score <= $%d", *filter.MaxRiskScore)
	}

	query := `
		SELECT id, customer_id, return_reason, product_category, refund_method_type,
		       risk_score, suspicion_score, visual_comparison, action_taken, created_at
		FROM return_cases
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var returnCases []*ReturnCase
	for rows.Next() {
		returnCase, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		returnCases = append(returnCases, returnCase)
	}

	return returnCases, rows.Err()
}

// Update applies a partial update and returns the updated case
func (r *Repository) Update(ctx context.Context, id uuid.UUID, update CaseUpdate) (*ReturnCase, error) {
	var (
		assignments []string
		args        []any
	)

	addAssignment := func(column string, value any) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.ReturnReason != nil {
		addAssignment("return_reason", *update.ReturnReason)
	}
	if update.ProductCategory != nil {
		addAssignment("product_category", *update.ProductCategory)
	}
	if update.RefundMethod != nil {
		addAssignment("refund_method_type", *update.RefundMethod)
	}
	if update.RiskScore != nil {
		addAssignment("risk_score", *update.RiskScore)
	}
	if update.SuspicionScore != nil {
		addAssignment("suspicion_score", *update.SuspicionScore)
	}
	if update.ActionTaken != nil {
		addAssignment("action_taken", *update.ActionTaken)
	}

	if len(assignments) == 0 {
		return r.GetByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`
		UPDATE return_cases
		SET %s
		WHERE id = $%d
		RETURNING id, customer_id, return_reason, product_category, refund_method_type,
		          risk_score, suspicion_score, visual_comparison, action_taken, created_at
	`, strings.Join(assignments, ", "), len(args))

	returnCase, err := scanCase(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCaseNotFound
		}
		return nil, err
	}

	return returnCase, nil
}

// Delete removes a return case
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM return_cases WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCaseNotFound
	}
	return nil
}

// Statistics computes case statistics in a single aggregate query using the
// same tier thresholds as the in-process aggregation policy
func (r *Repository) Statistics(ctx context.Context, policy scoring.Policy) (*scoring.Stats, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(AVG(risk_score), 0),
		       COALESCE(AVG(suspicion_score), 0),
		       COUNT(*) FILTER (WHERE risk_score >= $1),
		       COUNT(*) FILTER (WHERE risk_score >= $2 AND risk_score < $1),
		       COUNT(*) FILTER (WHERE risk_score < $2)
		FROM return_cases
	`

	var stats scoring.Stats
	err := r.db.QueryRow(ctx, query, policy.HighRiskThreshold, policy.MediumRiskThreshold).Scan(
		&stats.TotalCases,
		&stats.AverageRiskScore,
		&stats.AverageSuspicionScore,
		&stats.HighRiskCases,
		&stats.MediumRiskCases,
		&stats.LowRiskCases,
	)
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

func marshalVisual(visual *vision.ComparisonResult) ([]byte, error) {
	if visual == nil {
		return nil, nil
	}
	return json.Marshal(visual)
}

func scanCase(row pgx.Row) (*ReturnCase, error) {
	var returnCase ReturnCase
	var visualJSON []byte

	err := row.Scan(
		&returnCase.ID,
		&returnCase.CustomerID,
		&returnCase.ReturnReason,
		&returnCase.ProductCategory,
		&returnCase.RefundMethod,
		&returnCase.RiskScore,
		&returnCase.SuspicionScore,
		&visualJSON,
		&returnCase.ActionTaken,
		&returnCase.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	if len(visualJSON) > 0 {
		var visual vision.ComparisonResult
		if err := json.Unmarshal(visualJSON, &visual); err == nil {
			returnCase.Visual = &visual
		}
	}

	return &returnCase, nil
}
