package cases

import (
	"time"

	"github.com/google/uuid"

	"github.com/richxcame/returnguard/internal/vision"
)

// Refund method values accepted on intake
const (
	RefundMethodCard        = "card"
	RefundMethodWallet      = "wallet"
	RefundMethodCash        = "cash"
	RefundMethodGiftCard    = "gift_card"
	RefundMethodStoreCredit = "store_credit"
)

// ReturnCase is one return claim. ID is immutable after creation;
// RiskScore and SuspicionScore are always populated before a case counts
// as scored.
type ReturnCase struct {
	ID              uuid.UUID                `json:"id"`
	CustomerID      string                   `json:"customer_id"`
	ReturnReason    string                   `json:"return_reason"`
	ProductCategory string                   `json:"product_category"`
	RefundMethod    string                   `json:"refund_method_type"`
	RiskScore       float64                  `json:"risk_score"`
	SuspicionScore  float64                  `json:"suspicion_score"`
	Visual          *vision.ComparisonResult `json:"visual_comparison,omitempty"`
	ActionTaken     string                   `json:"action_taken"`
	Timestamp       time.Time                `json:"timestamp"`
}

// CreateCaseRequest is the request body for creating an already-scored case
type CreateCaseRequest struct {
	CustomerID      string     `json:"customer_id" binding:"required"`
	ReturnReason    string     `json:"return_reason" binding:"required"`
	ProductCategory string     `json:"product_category" binding:"required"`
	RefundMethod    string     `json:"refund_method_type" binding:"required,oneof=card wallet cash gift_card store_credit"`
	RiskScore       *float64   `json:"risk_score" binding:"required,gte=0,lte=100"`
	SuspicionScore  *float64   `json:"suspicion_score" binding:"required,gte=0,lte=1"`
	ActionTaken     string     `json:"action_taken" binding:"required,oneof=approve flag escalate"`
	Timestamp       *time.Time `json:"timestamp"`
}

// UpdateCaseRequest is the request body for a partial case update
type UpdateCaseRequest struct {
	ReturnReason    *string  `json:"return_reason"`
	ProductCategory *string  `json:"product_category"`
	RefundMethod    *string  `json:"refund_method_type" binding:"omitempty,oneof=card wallet cash gift_card store_credit"`
	RiskScore       *float64 `json:"risk_score" binding:"omitempty,gte=0,lte=100"`
	SuspicionScore  *float64 `json:"suspicion_score" binding:"omitempty,gte=0,lte=1"`
	ActionTaken     *string  `json:"action_taken" binding:"omitempty,oneof=approve flag escalate"`
}

// Filter narrows case listing. Zero values mean "no constraint".
type Filter struct {
	CustomerID      string
	ProductCategory string
	ActionTaken     string
	MinRiskScore    *float64
	MaxRiskScore    *float64
	Limit           int
	Offset          int
}

// CaseUpdate carries the mutable case fields; nil means "leave unchanged"
type CaseUpdate struct {
	ReturnReason    *string
	ProductCategory *string
	RefundMethod    *string
	RiskScore       *float64
	SuspicionScore  *float64
	ActionTaken     *string
}
