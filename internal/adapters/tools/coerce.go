package tools

import (
	"strconv"
	"strings"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
)

// coerce normalizes loosely typed arguments before schema validation.
// Nulls and blank strings are dropped and numbers become float64. Enum
// values are lower-cased, permit types go through their aliases. Declared
// defaults fill missing optional values.
func coerce(def Definition, args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	params := make(map[string]Param, len(def.Params))
	for _, p := range def.Params {
		params[p.Name] = p
	}

	for key, value := range args {
		if value == nil {
			continue
		}
		p, known := params[key]
		if !known {
			out[key] = value
			continue
		}
		if s, ok := value.(string); ok {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			value = s
		}

		switch p.Type {
		case TypeInteger:
			out[key] = toNumber(value)
		default:
			out[key] = normalizeString(p, value)
		}
	}

	for _, p := range def.Params {
		if _, ok := out[p.Name]; !ok && p.Default != nil {
			out[p.Name] = toNumberIfInteger(p, p.Default)
		}
	}
	return out
}

func toNumber(value any) any {
	switch v := value.(type) {
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		return v
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	default:
		return v
	}
}

func toNumberIfInteger(p Param, value any) any {
	if p.Type == TypeInteger {
		return toNumber(value)
	}
	return value
}

func normalizeString(p Param, value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	if p.Name == "permit_type" {
		if t, err := domain.ParsePermitType(s); err == nil {
			return string(t)
		}
		return s
	}
	if len(p.Enum) > 0 {
		return strings.ToLower(s)
	}
	return s
}
