package scoring

import (
	"fmt"
	"strings"

	"github.com/richxcame/returnguard/internal/textanalysis"
	"github.com/richxcame/returnguard/internal/vision"
	"github.com/richxcame/returnguard/pkg/config"
)

// RiskTier buckets a behavioral risk score
type RiskTier string

const (
	TierLow    RiskTier = "LOW"
	TierMedium RiskTier = "MEDIUM"
	TierHigh   RiskTier = "HIGH"
)

// Actions derived from the risk tier
const (
	ActionApprove  = "approve"
	ActionFlag     = "flag"
	ActionEscalate = "escalate"
)

const noIndicatorsRationale = "no strong risk indicators"

// Policy holds the canonical tier thresholds and the suspicion cutoff.
// Every consumer (aggregation, statistics, SQL aggregates) reads the same
// values, so tiers never disagree across code paths.
type Policy struct {
	HighRiskThreshold   float64
	MediumRiskThreshold float64
	SuspicionCutoff     float64
}

// DefaultPolicy returns the standard 80/50 tiering with a 0.5 suspicion cutoff
func DefaultPolicy() Policy {
	return Policy{
		HighRiskThreshold:   80,
		MediumRiskThreshold: 50,
		SuspicionCutoff:     0.5,
	}
}

// PolicyFromConfig builds a Policy from scoring configuration
func PolicyFromConfig(cfg *config.ScoringConfig) Policy {
	return Policy{
		HighRiskThreshold:   cfg.HighRiskThreshold,
		MediumRiskThreshold: cfg.MediumRiskThreshold,
		SuspicionCutoff:     cfg.SuspicionCutoff,
	}
}

// Tier maps a risk score in [0,100] to its tier
func (p Policy) Tier(riskScore float64) RiskTier {
	switch {
	case riskScore >= p.HighRiskThreshold:
		return TierHigh
	case riskScore >= p.MediumRiskThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// Disposition is the actionable outcome for one scored case
type Disposition struct {
	Tier           RiskTier                 `json:"tier"`
	ActionTaken    string                   `json:"action_taken"`
	Rationale      string                   `json:"rationale"`
	RiskScore      float64                  `json:"risk_score"`
	SuspicionScore float64                  `json:"suspicion_score"`
	Visual         *vision.ComparisonResult `json:"visual_comparison,omitempty"`
}

// Aggregate combines the evidence signals into a disposition. Text and
// behavioral signals are required; the visual signal is optional. A missing
// required signal is an error — the aggregator never substitutes a guessed
// score for an absent channel.
func (p Policy) Aggregate(signals []Signal) (*Disposition, error) {
	var (
		text       *textanalysis.Result
		visual     *vision.ComparisonResult
		riskScore  float64
		behavioral bool
	)

	for _, signal := range signals {
		switch signal.Kind {
		case SignalText:
			text = signal.Text
		case SignalVisual:
			visual = signal.Visual
		case SignalBehavioral:
			riskScore = signal.RiskScore
			behavioral = true
		default:
			return nil, fmt.Errorf("unknown signal kind: %s", signal.Kind)
		}
	}

	if text == nil {
		return nil, &MissingSignalError{Kind: SignalText}
	}
	if !behavioral {
		return nil, &MissingSignalError{Kind: SignalBehavioral}
	}

	tier := p.Tier(riskScore)

	var indicators []string
	if text.SuspicionScore > p.SuspicionCutoff {
		indicators = append(indicators, "return reason text flagged as suspicious")
	}
	if visual != nil && visual.IsSuspicious {
		indicators = append(indicators, "returned item differs visually from the original")
	}
	switch tier {
	case TierHigh:
		indicators = append(indicators, "high behavioral risk score")
	case TierMedium:
		indicators = append(indicators, "elevated behavioral risk score")
	}

	rationale := noIndicatorsRationale
	if len(indicators) > 0 {
		rationale = strings.Join(indicators, "; ")
	}

	return &Disposition{
		Tier:           tier,
		ActionTaken:    actionForTier(tier),
		Rationale:      rationale,
		RiskScore:      riskScore,
		SuspicionScore: text.SuspicionScore,
		Visual:         visual,
	}, nil
}

func actionForTier(tier RiskTier) string {
	switch tier {
	case TierHigh:
		return ActionEscalate
	case TierMedium:
		return ActionFlag
	default:
		return ActionApprove
	}
}

// ScoredCase is the minimal view of a stored case needed for statistics
type ScoredCase struct {
	RiskScore      float64
	SuspicionScore float64
}

// Stats summarizes a set of scored cases
type Stats struct {
	TotalCases            int     `json:"total_cases"`
	AverageRiskScore      float64 `json:"average_risk_score"`
	AverageSuspicionScore float64 `json:"average_suspicion_score"`
	HighRiskCases         int     `json:"high_risk_cases"`
	MediumRiskCases       int     `json:"medium_risk_cases"`
	LowRiskCases          int     `json:"low_risk_cases"`
}

// Statistics computes case statistics in a single pass. An empty input
// yields zero counts and zero averages, never NaN.
func (p Policy) Statistics(cases []ScoredCase) Stats {
	stats := Stats{TotalCases: len(cases)}
	if len(cases) == 0 {
		return stats
	}

	var riskSum, suspicionSum float64
	for _, c := range cases {
		riskSum += c.RiskScore
		suspicionSum += c.SuspicionScore

		switch p.Tier(c.RiskScore) {
		case TierHigh:
			stats.HighRiskCases++
		case TierMedium:
			stats.MediumRiskCases++
		default:
			stats.LowRiskCases++
		}
	}

	stats.AverageRiskScore = riskSum / float64(len(cases))
	stats.AverageSuspicionScore = suspicionSum / float64(len(cases))

	return stats
}
