package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexInt is an int that can be unmarshaled from either a JSON number or string.
// Model output often quotes numbers ("position": "2") or leaves them null.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler for FlexInt.
// It accepts both numeric values and string representations of numbers.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = FlexInt(int(num))
		return nil
	}

	var strVal string
	if err := json.Unmarshal(data, &strVal); err == nil {
		if strVal == "" {
			*f = 0
			return nil
		}
		parsed, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(strVal), "#"))
		if err != nil {
			*f = 0
			return nil
		}
		*f = FlexInt(parsed)
		return nil
	}

	// Default to 0 for other cases (null, etc.)
	*f = 0
	return nil
}

// MarshalJSON implements json.Marshaler for FlexInt.
// Always marshals as a numeric value.
func (f FlexInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(f))
}

// Int returns the FlexInt as a standard int.
func (f FlexInt) Int() int {
	return int(f)
}

// FlexFloat is a float64 that tolerates string-encoded numbers in model output.
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler for FlexFloat.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*f = FlexFloat(v)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = FlexFloat(parsed)
		return nil
	}

	*f = 0
	return nil
}

// Float returns the FlexFloat as a standard float64.
func (f FlexFloat) Float() float64 {
	return float64(f)
}

// FlexBool is a bool that also accepts "true"/"yes"/"1" strings.
type FlexBool bool

// UnmarshalJSON implements json.Unmarshaler for FlexBool.
func (b *FlexBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = FlexBool(v)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "1":
			*b = true
		default:
			*b = false
		}
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*b = n != 0
		return nil
	}

	*b = false
	return nil
}

// SchemaFinding is one schema-audit finding flattened to text. It accepts a
// plain string or an object such as {"element": "FAQPage", "description": "..."},
// which becomes "FAQPage: ...".
type SchemaFinding string

// UnmarshalJSON implements json.Unmarshaler for SchemaFinding.
func (f *SchemaFinding) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = SchemaFinding(strings.TrimSpace(s))
		return nil
	}

	var obj struct {
		Element     string `json:"element"`
		Improvement string `json:"improvement"`
		Gain        string `json:"gain"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		*f = ""
		return nil
	}
	key := obj.Element
	if key == "" {
		key = obj.Improvement
	}
	if key == "" {
		key = obj.Gain
	}
	if key == "" {
		key = "Item"
	}
	*f = SchemaFinding(key + ": " + strings.TrimSpace(obj.Description))
	return nil
}
