package scoring

import (
	"fmt"

	"github.com/richxcame/returnguard/internal/textanalysis"
	"github.com/richxcame/returnguard/internal/vision"
)

// SignalKind identifies an evidence channel
type SignalKind string

const (
	SignalText       SignalKind = "text"
	SignalVisual     SignalKind = "visual"
	SignalBehavioral SignalKind = "behavioral"
)

// Signal is a tagged union over the independently computed evidence
// channels. Exactly the field matching Kind is populated, so new kinds can
// be added without changing the aggregator contract.
type Signal struct {
	Kind      SignalKind
	Text      *textanalysis.Result
	Visual    *vision.ComparisonResult
	RiskScore float64
}

// TextSignal wraps a return-reason analysis result
func TextSignal(result *textanalysis.Result) Signal {
	return Signal{Kind: SignalText, Text: result}
}

// VisualSignal wraps an image comparison result
func VisualSignal(result *vision.ComparisonResult) Signal {
	return Signal{Kind: SignalVisual, Visual: result}
}

// BehavioralSignal wraps a predicted risk score in [0,100]
func BehavioralSignal(riskScore float64) Signal {
	return Signal{Kind: SignalBehavioral, RiskScore: riskScore}
}

// MissingSignalError reports a required evidence channel absent from an
// aggregation request. The aggregator fails closed rather than guessing.
type MissingSignalError struct {
	Kind SignalKind
}

func (e *MissingSignalError) Error() string {
	return fmt.Sprintf("missing required signal: %s", e.Kind)
}
