package scoring

import (
	"context"
	"image"
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/richxcame/returnguard/internal/textanalysis"
	"github.com/richxcame/returnguard/internal/vision"
	"github.com/richxcame/returnguard/pkg/logger"
)

// CaseInput is everything needed to score one return case. Images are
// optional; the behavioral feature vector is supplied by the caller from
// customer history aggregates.
type CaseInput struct {
	ReturnReason  string
	Features      map[string]any
	OriginalImage image.Image
	ReturnedImage image.Image
}

// CaseScore is the full scoring output for one case
type CaseScore struct {
	Text        *textanalysis.Result     `json:"text_analysis"`
	Visual      *vision.ComparisonResult `json:"visual_comparison,omitempty"`
	Disposition Disposition              `json:"disposition"`
}

// Service orchestrates the three scorers and the aggregation policy.
// Scoring is CPU-bound, so the batch path fans out over a bounded worker
// pool sized to available cores.
type Service struct {
	analyzer  Analyzer
	inspector Inspector
	model     Predictor
	policy    Policy
	workers   int
}

// NewService creates a scoring service. workers <= 0 uses the CPU count.
func NewService(analyzer Analyzer, inspector Inspector, model Predictor, policy Policy, workers int) *Service {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &Service{
		analyzer:  analyzer,
		inspector: inspector,
		model:     model,
		policy:    policy,
		workers:   workers,
	}
}

// Policy returns the tiering policy the service scores with
func (s *Service) Policy() Policy {
	return s.policy
}

// AnalyzeReason scores a single return reason text
func (s *Service) AnalyzeReason(reason string) (*textanalysis.Result, error) {
	return s.analyzer.Analyze(reason)
}

// AnalyzeReasons scores a batch of return reasons with one sentiment pass
func (s *Service) AnalyzeReasons(reasons []string) ([]*textanalysis.Result, error) {
	return s.analyzer.BatchAnalyze(reasons)
}

// CompareImages decodes and compares an original/returned image pair
func (s *Service) CompareImages(original, returned []byte) (*vision.ComparisonResult, error) {
	originalImg, err := vision.DecodeImage(original)
	if err != nil {
		return nil, err
	}

	returnedImg, err := vision.DecodeImage(returned)
	if err != nil {
		return nil, err
	}

	return s.inspector.Compare(originalImg, returnedImg)
}

// ScoreCase runs text, behavioral, and (when images are present) visual
// scoring for one case and aggregates the signals into a disposition. Any
// failed signal fails the whole call.
func (s *Service) ScoreCase(ctx context.Context, input CaseInput) (*CaseScore, error) {
	timer := prometheus.NewTimer(scoringDuration)
	defer timer.ObserveDuration()

	text, err := s.analyzer.Analyze(input.ReturnReason)
	if err != nil {
		return nil, err
	}

	score, err := s.scoreWithText(input, text)
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx).Debug("Case scored",
		zap.Float64("risk_score", score.Disposition.RiskScore),
		zap.Float64("suspicion_score", score.Disposition.SuspicionScore),
		zap.String("tier", string(score.Disposition.Tier)),
	)

	return score, nil
}

// ScoreBatch scores many cases, amortizing sentiment inference in a single
// batched call and fanning the remaining per-case work out to the worker
// pool. Results are returned in input order; the first error fails the
// whole batch.
func (s *Service) ScoreBatch(ctx context.Context, inputs []CaseInput) ([]*CaseScore, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	scoringBatchSize.Observe(float64(len(inputs)))

	reasons := make([]string, len(inputs))
	for i, input := range inputs {
		reasons[i] = input.ReturnReason
	}

	texts, err := s.analyzer.BatchAnalyze(reasons)
	if err != nil {
		return nil, err
	}

	results := make([]*CaseScore, len(inputs))
	errs := make([]error, len(inputs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i], errs[i] = s.scoreWithText(inputs[i], texts[i])
			}
		}()
	}

	dispatch := func() error {
		defer close(jobs)
		for i := range inputs {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}

	ctxErr := dispatch()
	wg.Wait()

	if ctxErr != nil {
		return nil, ctxErr
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}

func (s *Service) scoreWithText(input CaseInput, text *textanalysis.Result) (*CaseScore, error) {
	riskScore, err := s.model.Predict(input.Features)
	if err != nil {
		return nil, err
	}

	signals := []Signal{TextSignal(text), BehavioralSignal(riskScore)}

	var visual *vision.ComparisonResult
	if input.OriginalImage != nil || input.ReturnedImage != nil {
		visual, err = s.inspector.Compare(input.OriginalImage, input.ReturnedImage)
		if err != nil {
			return nil, err
		}
		signals = append(signals, VisualSignal(visual))
	}

	disposition, err := s.policy.Aggregate(signals)
	if err != nil {
		return nil, err
	}

	casesScoredTotal.WithLabelValues(string(disposition.Tier)).Inc()

	return &CaseScore{Text: text, Visual: visual, Disposition: *disposition}, nil
}
