package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Instrument is one scored ETF row as published by the quant backend.
// Fields the portal does not understand are kept in Extra and written back
// unchanged when the instrument is forwarded to the report endpoint.
type Instrument struct {
	Name        string  `json:"name"`
	PriceCurr   float64 `json:"price_curr"`
	GradeScore  string  `json:"grade_score"`
	Alpha1M     float64 `json:"alpha_1m"`
	Trend1W     string  `json:"trend_1w"`
	RVol        float64 `json:"rvol"`
	VolStatus   string  `json:"vol_status"`
	Description string  `json:"description"`

	Extra map[string]json.RawMessage `json:"-"`
}

var instrumentKeys = map[string]bool{
	"name": true, "price_curr": true, "grade_score": true, "alpha_1m": true,
	"trend_1w": true, "rvol": true, "vol_status": true, "description": true,
}

// UnmarshalJSON coerces an untrusted backend object into an Instrument.
// Numbers may arrive as JSON numbers or numeric strings; anything else
// becomes zero. Strings accept numbers and booleans as their text form.
func (i *Instrument) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("instrument must be a JSON object: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("instrument must be a JSON object, got null")
	}

	*i = Instrument{
		Name:        coerceString(raw["name"]),
		PriceCurr:   coerceFloat(raw["price_curr"]),
		GradeScore:  coerceString(raw["grade_score"]),
		Alpha1M:     coerceFloat(raw["alpha_1m"]),
		Trend1W:     coerceString(raw["trend_1w"]),
		RVol:        coerceFloat(raw["rvol"]),
		VolStatus:   coerceString(raw["vol_status"]),
		Description: coerceString(raw["description"]),
	}

	for k, v := range raw {
		if instrumentKeys[k] {
			continue
		}
		if i.Extra == nil {
			i.Extra = make(map[string]json.RawMessage)
		}
		i.Extra[k] = v
	}
	return nil
}

// MarshalJSON writes the known fields plus any passthrough fields.
func (i Instrument) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(instrumentKeys)+len(i.Extra))
	for k, v := range i.Extra {
		out[k] = v
	}
	out["name"] = i.Name
	out["price_curr"] = i.PriceCurr
	out["grade_score"] = i.GradeScore
	out["alpha_1m"] = i.Alpha1M
	out["trend_1w"] = i.Trend1W
	out["rvol"] = i.RVol
	out["vol_status"] = i.VolStatus
	out["description"] = i.Description
	return json.Marshal(out)
}

// DecodeInstruments parses a JSON array of instruments. Elements that are not
// objects are dropped; the order of the remaining elements is preserved.
func DecodeInstruments(data json.RawMessage) ([]Instrument, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("instrument list must be a JSON array: %w", err)
	}

	list := make([]Instrument, 0, len(elems))
	for _, e := range elems {
		var inst Instrument
		if err := json.Unmarshal(e, &inst); err != nil {
			continue
		}
		list = append(list, inst)
	}
	return list, nil
}

func isNull(v json.RawMessage) bool {
	return len(v) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func coerceString(v json.RawMessage) string {
	if isNull(v) {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return ""
}

func coerceFloat(v json.RawMessage) float64 {
	if isNull(v) {
		return 0
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
		s = strings.ReplaceAll(s, ",", "")
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f
		}
	}
	return 0
}
