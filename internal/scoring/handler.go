package scoring

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/richxcame/returnguard/internal/riskmodel"
	"github.com/richxcame/returnguard/internal/textanalysis"
	"github.com/richxcame/returnguard/internal/vision"
	"github.com/richxcame/returnguard/pkg/common"
	"github.com/richxcame/returnguard/pkg/validation"
)

// Handler handles HTTP requests for the scoring pipeline
type Handler struct {
	service *Service
}

// NewHandler creates a new scoring handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// AnalyzeReasonRequest is the request body for single reason analysis
type AnalyzeReasonRequest struct {
	ReturnReason string `json:"return_reason" binding:"required"`
}

// AnalyzeReasonsRequest is the request body for batch reason analysis
type AnalyzeReasonsRequest struct {
	ReturnReasons []string `json:"return_reasons" binding:"required,min=1"`
}

// ScoreCaseRequest is the request body for scoring a full case
type ScoreCaseRequest struct {
	ReturnReason string         `json:"return_reason" binding:"required"`
	Features     map[string]any `json:"features" binding:"required"`
}

// AnalyzeReason scores a single return reason text
func (h *Handler) AnalyzeReason(c *gin.Context) {
	var req AnalyzeReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingErrorResponse(c, err)
		return
	}

	result, err := h.service.AnalyzeReason(req.ReturnReason)
	if err != nil {
		scoringErrorResponse(c, err)
		return
	}

	common.SuccessResponse(c, result)
}

// AnalyzeReasons scores a batch of return reasons
func (h *Handler) AnalyzeReasons(c *gin.Context) {
	var req AnalyzeReasonsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingErrorResponse(c, err)
		return
	}

	results, err := h.service.AnalyzeReasons(req.ReturnReasons)
	if err != nil {
		scoringErrorResponse(c, err)
		return
	}

	common.SuccessResponse(c, results)
}

// CompareImages compares original and returned product photos uploaded as
// multipart form files named original_image and returned_image
func (h *Handler) CompareImages(c *gin.Context) {
	original, err := formFileBytes(c, "original_image")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "original_image file is required")
		return
	}

	returned, err := formFileBytes(c, "returned_image")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "returned_image file is required")
		return
	}

	result, err := h.service.CompareImages(original, returned)
	if err != nil {
		scoringErrorResponse(c, err)
		return
	}

	common.SuccessResponse(c, result)
}

// ScoreCase runs the full pipeline for one case supplied inline
func (h *Handler) ScoreCase(c *gin.Context) {
	var req ScoreCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingErrorResponse(c, err)
		return
	}

	score, err := h.service.ScoreCase(c.Request.Context(), CaseInput{
		ReturnReason: req.ReturnReason,
		Features:     req.Features,
	})
	if err != nil {
		scoringErrorResponse(c, err)
		return
	}

	common.SuccessResponse(c, score)
}

// RegisterRoutes registers scoring routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	scoring := rg.Group("/scoring")
	{
		scoring.POST("/analyze-reason", h.AnalyzeReason)
		scoring.POST("/analyze-reasons", h.AnalyzeReasons)
		scoring.POST("/compare-images", h.CompareImages)
		scoring.POST("/score", h.ScoreCase)
	}
}

func formFileBytes(c *gin.Context, name string) ([]byte, error) {
	header, err := c.FormFile(name)
	if err != nil {
		return nil, err
	}

	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

func bindingErrorResponse(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		common.ErrorResponse(c, http.StatusBadRequest, validation.NewValidationError(validationErrs).Error())
		return
	}
	common.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
}

// scoringErrorResponse maps domain errors to HTTP status codes
func scoringErrorResponse(c *gin.Context, err error) {
	var missingFeatures *riskmodel.MissingFeatureError

	switch {
	case errors.Is(err, textanalysis.ErrEmptyReason),
		errors.Is(err, vision.ErrImageDecode),
		errors.Is(err, vision.ErrMissingImage):
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.As(err, &missingFeatures):
		common.ErrorResponse(c, http.StatusBadRequest, missingFeatures.Error())
	case errors.Is(err, riskmodel.ErrNotTrained):
		common.ErrorResponse(c, http.StatusServiceUnavailable, "risk model is not trained")
	default:
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to score case")
	}
}
