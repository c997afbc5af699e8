package models

import (
	"encoding/json"
	"fmt"
)

// StrategyReportRequest is the body sent to the backend's ai-strategy endpoint.
type StrategyReportRequest struct {
	StockInfo Instrument `json:"stock_info"`
}

// DecodeReport extracts the "report" text from an ai-strategy response.
// An absent or non-string report yields "" so callers can apply their fallback.
func DecodeReport(data []byte) (string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", fmt.Errorf("report response must be a JSON object: %w", err)
	}
	var report string
	if v, ok := raw["report"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &report); err != nil {
			return "", nil
		}
	}
	return report, nil
}
