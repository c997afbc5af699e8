package models

import (
	"encoding/json"
	"fmt"
)

// PortfolioSnapshot is the optional holdings view served next to the scores.
// Holdings are opaque to the portal and passed through as received.
type PortfolioSnapshot struct {
	Holdings []json.RawMessage `json:"holdings"`
}

// DecodePortfolio validates a portfolio body. The only requirement is a
// "holdings" array; a missing or non-array field rejects the snapshot.
func DecodePortfolio(data []byte) (*PortfolioSnapshot, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("portfolio must be a JSON object: %w", err)
	}
	h, ok := raw["holdings"]
	if !ok || isNull(h) {
		return nil, fmt.Errorf("portfolio is missing holdings")
	}
	var holdings []json.RawMessage
	if err := json.Unmarshal(h, &holdings); err != nil {
		return nil, fmt.Errorf("portfolio holdings must be an array: %w", err)
	}
	if holdings == nil {
		holdings = []json.RawMessage{}
	}
	return &PortfolioSnapshot{Holdings: holdings}, nil
}
