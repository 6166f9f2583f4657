package cases

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/richxcame/returnguard/internal/scoring"
)

// ErrCaseNotFound is returned when a case ID does not exist
var ErrCaseNotFound = errors.New("return case not found")

// Store is the persistence port for return cases. The Postgres repository
// implements it for production; the in-memory store backs tests.
type Store interface {
	Insert(ctx context.Context, returnCase *ReturnCase) error
	InsertMany(ctx context.Context, returnCases []*ReturnCase) error
	GetByID(ctx context.Context, id uuid.UUID) (*ReturnCase, error)
	Find(ctx context.Context, filter Filter) ([]*ReturnCase, error)
	Update(ctx context.Context, id uuid.UUID, update CaseUpdate) (*ReturnCase, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Statistics(ctx context.Context, policy scoring.Policy) (*scoring.Stats, error)
}
