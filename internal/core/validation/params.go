// internal/core/validation/params.go
package validation

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ammerola/household-be/internal/core/domain"
)

// Params holds a rule's tunable values as decoded from JSON or configuration
type Params map[string]any

// Clone returns a shallow copy
func (p Params) Clone() Params {
	out := make(Params, len(p))
	maps.Copy(out, p)
	return out
}

// Merge returns a copy of p overlaid with override
func (p Params) Merge(override Params) Params {
	out := p.Clone()
	maps.Copy(out, override)
	return out
}

func paramError(key string, v any, want string) error {
	return domain.NewValidationError(key, fmt.Sprintf("expected %s, got %T", want, v))
}

// Int reads an integer parameter
func (p Params) Int(key string, def int64) (int64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, paramError(key, v, "integer")
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	}
	return 0, paramError(key, v, "integer")
}

// Duration reads a duration given as a Go duration string or a number of seconds
func (p Params) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, domain.NewValidationError(key, err.Error())
		}
		return parsed, nil
	case int:
		return time.Duration(d) * time.Second, nil
	case int64:
		return time.Duration(d) * time.Second, nil
	case float64:
		return time.Duration(d * float64(time.Second)), nil
	}
	return 0, paramError(key, v, "duration")
}

// Bool reads a boolean parameter
func (p Params) Bool(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, paramError(key, v, "boolean")
	}
	return b, nil
}

// Decimal reads a decimal parameter given as a number or string
func (p Params) Decimal(key string, def decimal.Decimal) (decimal.Decimal, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch d := v.(type) {
	case decimal.Decimal:
		return d, nil
	case string:
		parsed, err := decimal.NewFromString(d)
		if err != nil {
			return decimal.Zero, domain.NewValidationError(key, err.Error())
		}
		return parsed, nil
	case int:
		return decimal.NewFromInt(int64(d)), nil
	case int64:
		return decimal.NewFromInt(d), nil
	case float64:
		return decimal.NewFromFloat(d), nil
	}
	return decimal.Zero, paramError(key, v, "decimal")
}

// Strings reads a list of strings
func (p Params) Strings(key string, def []string) ([]string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, paramError(key, item, "string")
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, paramError(key, v, "list of strings")
}
