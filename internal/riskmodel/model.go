package riskmodel

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Required feature keys for risk prediction
const (
	FeatureReturnFrequency           = "return_frequency"
	FeatureAverageReturnTime         = "average_return_time"
	FeatureProductCategoryDiversity  = "product_category_diversity"
	FeatureReasonDiversityScore      = "reason_diversity_score"
	FeatureRefundMethodType          = "refund_method_type"
	FeaturePriorFraudSimilarityScore = "prior_fraud_similarity_score"
)

var numericFeatures = []string{
	FeatureReturnFrequency,
	FeatureAverageReturnTime,
	FeatureProductCategoryDiversity,
	FeatureReasonDiversityScore,
	FeaturePriorFraudSimilarityScore,
}

var featureColumns = []string{
	FeatureReturnFrequency,
	FeatureAverageReturnTime,
	FeatureProductCategoryDiversity,
	FeatureReasonDiversityScore,
	FeatureRefundMethodType,
	FeaturePriorFraudSimilarityScore,
}

// ErrNotTrained is returned when predict/save is called before train or load
var ErrNotTrained = errors.New("model not trained")

// ErrModelFileNotFound is returned when loading from a missing path
var ErrModelFileNotFound = errors.New("model file not found")

// MissingFeatureError reports which required feature keys are absent
type MissingFeatureError struct {
	Keys []string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("missing features: %s", strings.Join(e.Keys, ", "))
}

// Features is a customer feature vector keyed by feature name. Numeric
// features hold float64 values; refund_method_type holds a string.
type Features map[string]any

// TrainingRow is one labeled sample for training the regression pipeline
type TrainingRow struct {
	ReturnFrequency           float64
	AverageReturnTime         float64
	ProductCategoryDiversity  float64
	ReasonDiversityScore      float64
	RefundMethodType          string
	PriorFraudSimilarityScore float64
	RiskScore                 float64 // target, [0,100]
}

// Engine is the behavioral risk regression model. Predict is safe for
// concurrent use; Train and Load are exclusive against all other calls.
type Engine struct {
	mu       sync.RWMutex
	pipeline *pipeline
}

// pipeline bundles the fitted preprocessing steps and the boosted ensemble.
// Field names are exported for gob serialization.
type pipeline struct {
	Scaler  *standardScaler
	Encoder *oneHotEncoder
	Model   *ensemble
}

// Boosting hyperparameters matching the reference configuration
const (
	numEstimators = 100
	learningRate  = 0.1
	maxTreeDepth  = 5
	minLeafSize   = 5
)

// NewEngine creates an untrained engine
func NewEngine() *Engine {
	return &Engine{}
}

// Train fits the full pipeline. When rows is empty a synthetic bootstrap
// dataset is generated; production deployments pass real historical labels.
func (e *Engine) Train(rows []TrainingRow) error {
	if len(rows) == 0 {
		rows = syntheticRows(syntheticSampleCount)
	}

	numeric := make([][]float64, len(rows))
	categories := make([]string, len(rows))
	targets := make([]float64, len(rows))
	for i, row := range rows {
		numeric[i] = []float64{
			row.ReturnFrequency,
			row.AverageReturnTime,
			row.ProductCategoryDiversity,
			row.ReasonDiversityScore,
			row.PriorFraudSimilarityScore,
		}
		categories[i] = row.RefundMethodType
		targets[i] = row.RiskScore
	}

	scaler := fitScaler(numeric)
	encoder := fitEncoder(categories)

	design := make([][]float64, len(rows))
	for i := range rows {
		design[i] = append(scaler.transform(numeric[i]), encoder.transform(categories[i])...)
	}

	model := trainEnsemble(design, targets, numEstimators, learningRate, maxTreeDepth, minLeafSize)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.pipeline = &pipeline{Scaler: scaler, Encoder: encoder, Model: model}

	return nil
}

// Predict returns the behavioral risk score in [0,100] for a feature vector
func (e *Engine) Predict(features Features) (float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.pipeline == nil {
		return 0, ErrNotTrained
	}

	if err := validateFeatures(features); err != nil {
		return 0, err
	}

	numeric := make([]float64, len(numericFeatures))
	for i, key := range numericFeatures {
		value, err := toFloat(features[key])
		if err != nil {
			return 0, fmt.Errorf("feature %s: %w", key, err)
		}
		numeric[i] = value
	}

	category, ok := features[FeatureRefundMethodType].(string)
	if !ok {
		return 0, fmt.Errorf("feature %s: expected string", FeatureRefundMethodType)
	}

	x := append(e.pipeline.Scaler.transform(numeric), e.pipeline.Encoder.transform(category)...)
	score := e.pipeline.Model.predict(x)

	return clampScore(score), nil
}

// Save serializes the fitted pipeline to disk as an opaque blob
func (e *Engine) Save(path string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.pipeline == nil {
		return ErrNotTrained
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("unable to create model directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create model file: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(e.pipeline); err != nil {
		return fmt.Errorf("unable to encode model: %w", err)
	}

	return f.Sync()
}

// Load deserializes a fitted pipeline from disk, replacing any current one.
// The file handle is released on every exit path.
func (e *Engine) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrModelFileNotFound, path)
		}
		return fmt.Errorf("unable to open model file: %w", err)
	}
	defer f.Close()

	var p pipeline
	if err := gob.NewDecoder(f).Decode(&p); err != nil {
		return fmt.Errorf("unable to decode model: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.pipeline = &p

	return nil
}

// Trained reports whether a fitted pipeline is available
func (e *Engine) Trained() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pipeline != nil
}

func validateFeatures(features Features) error {
	var missing []string
	for _, key := range featureColumns {
		if _, ok := features[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &MissingFeatureError{Keys: missing}
	}
	return nil
}

func toFloat(v any) (float64, error) {
	switch value := v.(type) {
	case float64:
		return value, nil
	case float32:
		return float64(value), nil
	case int:
		return float64(value), nil
	case int64:
		return float64(value), nil
	default:
		return 0, fmt.Errorf("expected numeric value, got %T", v)
	}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
