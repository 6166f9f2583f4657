package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/richxcame/returnguard/pkg/config"
	"github.com/richxcame/returnguard/pkg/logger"
)

// SubjectCaseScored is the subject for scored-case events
const SubjectCaseScored = "returns.case.scored"

// CaseScoredEvent is published after a return case has been scored and stored
type CaseScoredEvent struct {
	CaseID         string    `json:"case_id"`
	CustomerID     string    `json:"customer_id"`
	RiskScore      float64   `json:"risk_score"`
	SuspicionScore float64   `json:"suspicion_score"`
	Tier           string    `json:"tier"`
	ActionTaken    string    `json:"action_taken"`
	ScoredAt       time.Time `json:"scored_at"`
}

// Publisher publishes scoring pipeline events
type Publisher interface {
	PublishCaseScored(ctx context.Context, event CaseScoredEvent) error
	Close()
}

// NewPublisher returns a NATS publisher when enabled, otherwise a no-op
func NewPublisher(cfg *config.EventsConfig) (Publisher, error) {
	if !cfg.Enabled {
		return &noopPublisher{}, nil
	}

	conn, err := nats.Connect(cfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to nats: %w", err)
	}

	return &natsPublisher{conn: conn}, nil
}

type natsPublisher struct {
	conn *nats.Conn
}

func (p *natsPublisher) PublishCaseScored(ctx context.Context, event CaseScoredEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := p.conn.Publish(SubjectCaseScored, payload); err != nil {
		logger.WithContext(ctx).Error("Failed to publish case scored event",
			zap.String("case_id", event.CaseID),
			zap.Error(err),
		)
		return err
	}

	return nil
}

func (p *natsPublisher) Close() {
	if p.conn != nil {
		p.conn.Drain() //nolint:errcheck
	}
}

type noopPublisher struct{}

func (p *noopPublisher) PublishCaseScored(ctx context.Context, event CaseScoredEvent) error {
	return nil
}

func (p *noopPublisher) Close() {}
