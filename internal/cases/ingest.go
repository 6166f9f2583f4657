package cases

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var requiredColumns = []string{
	"customer_id",
	"return_reason",
	"risk_score",
	"suspicion_score",
	"refund_method_type",
	"action_taken",
	"product_category",
}

// MissingColumnsError rejects a batch that lacks required columns,
// naming every missing column.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
}

// ParseCSV reads a CSV batch with a header row. The timestamp column is
// optional; absent or blank timestamps default to the current time.
func ParseCSV(r io.Reader) ([]*ReturnCase, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("unable to read csv header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}

	if err := checkColumns(func(name string) bool {
		_, ok := columns[name]
		return ok
	}); err != nil {
		return nil, err
	}

	timestampIdx, hasTimestamp := columns["timestamp"]

	var returnCases []*ReturnCase
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("unable to read csv record: %w", err)
		}

		riskScore, err := strconv.ParseFloat(record[columns["risk_score"]], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid risk_score: %w", line, err)
		}

		suspicionScore, err := strconv.ParseFloat(record[columns["suspicion_score"]], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid suspicion_score: %w", line, err)
		}

		timestamp := time.Now().UTC()
		if hasTimestamp && timestampIdx < len(record) && record[timestampIdx] != "" {
			timestamp, err = time.Parse(time.RFC3339, record[timestampIdx])
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid timestamp: %w", line, err)
			}
		}

		returnCases = append(returnCases, &ReturnCase{
			ID:              uuid.New(),
			CustomerID:      record[columns["customer_id"]],
			ReturnReason:    record[columns["return_reason"]],
			ProductCategory: record[columns["product_category"]],
			RefundMethod:    record[columns["refund_method_type"]],
			RiskScore:       riskScore,
			SuspicionScore:  suspicionScore,
			ActionTaken:     record[columns["action_taken"]],
			Timestamp:       timestamp,
		})
	}

	return returnCases, nil
}

type ingestRecord struct {
	CustomerID      *string  `json:"customer_id"`
	ReturnReason    *string  `json:"return_reason"`
	ProductCategory *string  `json:"product_category"`
	RefundMethod    *string  `json:"refund_method_type"`
	RiskScore       *float64 `json:"risk_score"`
	SuspicionScore  *float64 `json:"suspicion_score"`
	ActionTaken     *string  `json:"action_taken"`
	Timestamp       *string  `json:"timestamp"`
}

// ParseJSON reads a JSON array batch with the same required columns as CSV
func ParseJSON(r io.Reader) ([]*ReturnCase, error) {
	var records []ingestRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("unable to decode json batch: %w", err)
	}

	missing := make(map[string]struct{})
	for _, record := range records {
		fields := map[string]bool{
			"customer_id":        record.CustomerID != nil,
			"return_reason":      record.ReturnReason != nil,
			"product_category":   record.ProductCategory != nil,
			"refund_method_type": record.RefundMethod != nil,
			"risk_score":         record.RiskScore != nil,
			"suspicion_score":    record.SuspicionScore != nil,
			"action_taken":       record.ActionTaken != nil,
		}
		for name, present := range fields {
			if !present {
				missing[name] = struct{}{}
			}
		}
	}
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, &MissingColumnsError{Columns: names}
	}

	returnCases := make([]*ReturnCase, 0, len(records))
	for i, record := range records {
		timestamp := time.Now().UTC()
		if record.Timestamp != nil && *record.Timestamp != "" {
			parsed, err := time.Parse(time.RFC3339, *record.Timestamp)
			if err != nil {
				return nil, fmt.Errorf("record %d: invalid timestamp: %w", i, err)
			}
			timestamp = parsed
		}

		returnCases = append(returnCases, &ReturnCase{
			ID:              uuid.New(),
			CustomerID:      *record.CustomerID,
			ReturnReason:    *record.ReturnReason,
			ProductCategory: *record.ProductCategory,
			RefundMethod:    *record.RefundMethod,
			RiskScore:       *record.RiskScore,
			SuspicionScore:  *record.SuspicionScore,
			ActionTaken:     *record.ActionTaken,
			Timestamp:       timestamp,
		})
	}

	return returnCases, nil
}

func checkColumns(present func(string) bool) error {
	var missing []string
	for _, name := range requiredColumns {
		if !present(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &MissingColumnsError{Columns: missing}
	}
	return nil
}
