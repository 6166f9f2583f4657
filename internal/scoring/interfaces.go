package scoring

import (
	"image"

	"github.com/richxcame/returnguard/internal/riskmodel"
	"github.com/richxcame/returnguard/internal/textanalysis"
	"github.com/richxcame/returnguard/internal/vision"
)

// Analyzer scores return-reason text
type Analyzer interface {
	Analyze(reason string) (*textanalysis.Result, error)
	BatchAnalyze(reasons []string) ([]*textanalysis.Result, error)
}

// Inspector compares original and returned product images
type Inspector interface {
	Compare(original, returned image.Image) (*vision.ComparisonResult, error)
}

// Predictor estimates the behavioral risk score for a feature vector
type Predictor interface {
	Predict(features riskmodel.Features) (float64, error)
}
