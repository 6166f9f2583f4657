package cases

import (
	"context"

	"github.com/richxcame/returnguard/internal/scoring"
)

// Scorer runs the scoring pipeline for an intake case
type Scorer interface {
	ScoreCase(ctx context.Context, input scoring.CaseInput) (*scoring.CaseScore, error)
}
