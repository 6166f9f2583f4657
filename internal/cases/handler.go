package cases

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/richxcame/returnguard/internal/riskmodel"
	"github.com/richxcame/returnguard/internal/textanalysis"
	"github.com/richxcame/returnguard/internal/vision"
	"github.com/richxcame/returnguard/pkg/common"
	"github.com/richxcame/returnguard/pkg/validation"
)

// Handler handles HTTP requests for return cases
type Handler struct {
	service *Service
}

// NewHandler creates a new case handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CreateCase stores an already-scored case
func (h *Handler) CreateCase(c *gin.Context) {
	var req CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingErrorResponse(c, err)
		return
	}

	returnCase, err := h.service.CreateCase(c.Request.Context(), req)
	if err != nil {
		caseErrorResponse(c, err)
		return
	}

	common.CreatedResponse(c, returnCase)
}

// ScoreSubmissionRequest is the multipart form for scoring an intake case.
// features holds the behavioral feature vector as a JSON object; the image
// pair is optional and uploaded as original_image / returned_image files.
type ScoreSubmissionRequest struct {
	CustomerID      string `form:"customer_id" binding:"required"`
	ReturnReason    string `form:"return_reason" binding:"required"`
	ProductCategory string `form:"product_category" binding:"required"`
	RefundMethod    string `form:"refund_method_type" binding:"required,oneof=card wallet cash gift_card store_credit"`
	Features        string `form:"features" binding:"required"`
}

// ScoreCase scores an unscored intake case and stores the result
func (h *Handler) ScoreCase(c *gin.Context) {
	var req ScoreSubmissionRequest
	if err := c.ShouldBind(&req); err != nil {
		bindingErrorResponse(c, err)
		return
	}

	var features map[string]any
	if err := json.Unmarshal([]byte(req.Features), &features); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "features must be a JSON object")
		return
	}

	submission := ScoreSubmission{
		CustomerID:      req.CustomerID,
		ReturnReason:    req.ReturnReason,
		ProductCategory: req.ProductCategory,
		RefundMethod:    req.RefundMethod,
		Features:        features,
	}

	if original, err := formFileBytes(c, "original_image"); err == nil {
		submission.OriginalImage = original
	}
	if returned, err := formFileBytes(c, "returned_image"); err == nil {
		submission.ReturnedImage = returned
	}

	returnCase, score, err := h.service.ScoreAndCreate(c.Request.Context(), submission)
	if err != nil {
		caseErrorResponse(c, err)
		return
	}

	common.CreatedResponse(c, gin.H{
		"case":          returnCase,
		"text_analysis": score.Text,
		"rationale":     score.Disposition.Rationale,
		"tier":          score.Disposition.Tier,
	})
}

// GetCase retrieves a case by ID
func (h *Handler) GetCase(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid case id")
		return
	}

	returnCase, err := h.service.GetCase(c.Request.Context(), id)
	if err != nil {
		caseErrorResponse(c, err)
		return
	}

	common.SuccessResponse(c, returnCase)
}

// ListCases retrieves cases matching the query filters
func (h *Handler) ListCases(c *gin.Context) {
	filter := Filter{
		CustomerID:      c.Query("customer_id"),
		ProductCategory: c.Query("product_category"),
		ActionTaken:     c.Query("action_taken"),
	}

	if raw := c.Query("min_risk_score"); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "invalid min_risk_score")
			return
		}
		filter.MinRiskScore = &value
	}
	if raw := c.Query("max_risk_score"); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "invalid max_risk_score")
			return
		}
		filter.MaxRiskScore = &value
	}

	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "0"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	returnCases, err := h.service.ListCases(c.Request.Context(), filter)
	if err != nil {
		caseErrorResponse(c, err)
		return
	}

	common.SuccessResponse(c, returnCases)
}

// UpdateCase applies a partial update to a case
func (h *Handler) UpdateCase(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid case id")
		return
	}

	var req UpdateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingErrorResponse(c, err)
		return
	}

	returnCase, err := h.service.UpdateCase(c.Request.Context(), id, req)
	if err != nil {
		caseErrorResponse(c, err)
		return
	}

	common.SuccessResponse(c, returnCase)
}

// DeleteCase removes a case
func (h *Handler) DeleteCase(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid case id")
		return
	}

	if err := h.service.DeleteCase(c.Request.Context(), id); err != nil {
		caseErrorResponse(c, err)
		return
	}

	common.SuccessResponse(c, gin.H{"deleted": id})
}

// UploadCases ingests a CSV or JSON batch uploaded as a "file" form field
func (h *Handler) UploadCases(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "file is required")
		return
	}

	f, err := header.Open()
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "unable to read uploaded file")
		return
	}
	defer f.Close()

	var count int
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".csv":
		count, err = h.service.IngestCSV(c.Request.Context(), f)
	case ".json":
		count, err = h.service.IngestJSON(c.Request.Context(), f)
	default:
		common.ErrorResponse(c, http.StatusBadRequest, "file must be .csv or .json")
		return
	}
	if err != nil {
		caseErrorResponse(c, err)
		return
	}

	common.CreatedResponse(c, gin.H{"ingested": count})
}

// Statistics returns aggregate case statistics
func (h *Handler) Statistics(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context())
	if err != nil {
		caseErrorResponse(c, err)
		return
	}

	common.SuccessResponse(c, stats)
}

// RegisterRoutes registers case routes. Mutating routes go on the
// authenticated group; reads stay public.
func (h *Handler) RegisterRoutes(public, authenticated *gin.RouterGroup) {
	publicCases := public.Group("/cases")
	{
		publicCases.GET("", h.ListCases)
		publicCases.GET("/statistics", h.Statistics)
		publicCases.GET("/:id", h.GetCase)
	}

	authCases := authenticated.Group("/cases")
	{
		authCases.POST("", h.CreateCase)
		authCases.POST("/score", h.ScoreCase)
		authCases.POST("/upload", h.UploadCases)
		authCases.PUT("/:id", h.UpdateCase)
		authCases.DELETE("/:id", h.DeleteCase)
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

// caseErrorResponse maps store, ingestion, and scoring errors to HTTP codes
func caseErrorResponse(c *gin.Context, err error) {
	var (
		missingColumns  *MissingColumnsError
		missingFeatures *riskmodel.MissingFeatureError
		appErr          *common.AppError
	)

	switch {
	case errors.Is(err, ErrCaseNotFound):
		common.ErrorResponse(c, http.StatusNotFound, "return case not found")
	case errors.As(err, &missingColumns):
		common.ErrorResponse(c, http.StatusBadRequest, missingColumns.Error())
	case errors.As(err, &missingFeatures):
		common.ErrorResponse(c, http.StatusBadRequest, missingFeatures.Error())
	case errors.Is(err, textanalysis.ErrEmptyReason),
		errors.Is(err, vision.ErrImageDecode),
		errors.Is(err, vision.ErrMissingImage):
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, riskmodel.ErrNotTrained):
		common.ErrorResponse(c, http.StatusServiceUnavailable, "risk model is not trained")
	case errors.As(err, &appErr):
		common.ErrorResponse(c, appErr.Code, appErr.Message)
	default:
		common.ErrorResponse(c, http.StatusInternalServerError, "internal server error")
	}
}
