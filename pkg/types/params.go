package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Params holds the decoded parameters of an action.
// Values follow encoding/json conventions: numbers arrive as float64.
type Params map[string]any

// Has reports whether key is present and not null.
func (p Params) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

// String returns the string value for key, or "" when absent.
func (p Params) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the integer value for key and whether it was present and numeric.
func (p Params) Int(key string) (int, bool) {
	switch v := p[key].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// IntOr returns the integer value for key or def when absent.
func (p Params) IntOr(key string, def int) int {
	if n, ok := p.Int(key); ok {
		return n
	}
	return def
}

// Bool returns the boolean value for key, or def when absent or not a bool.
func (p Params) Bool(key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

// Decode copies the params into out through a JSON round trip.
func (p Params) Decode(out any) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

// TabID returns an explicit tab id from either the tab_id or tabId key.
func (p Params) TabID() (int, bool) {
	if id, ok := p.Int("tab_id"); ok {
		return id, true
	}
	return p.Int("tabId")
}
