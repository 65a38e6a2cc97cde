package prompt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/MuiGoku123432/adoflow/pkg/domain"
)

// IsEmpty reports whether a submitted value counts as "not provided" for
// required-field validation.
func IsEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	default:
		return false
	}
}

// Coerce validates and converts a submitted raw value according to the
// prompt's kind: numbers are parsed, datetimes are canonicalized to RFC 3339
// UTC, picklist values must be one of the allowed values. Identity defaults
// are the executor's job; here an identity value passes through as a string.
func Coerce(p domain.FieldPrompt, value any) (any, error) {
	switch p.Kind {
	case domain.KindNumber:
		return coerceNumber(value)
	case domain.KindDateTime:
		return coerceDateTime(value)
	case domain.KindPicklist:
		return coercePicklist(p, value)
	case domain.KindIdentity:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected identity string, got %T", value)
		}
		return s, nil
	default:
		return coerceString(value)
	}
}

func coerceNumber(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", v.String())
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", v)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("expected number, got %T", value)
	}
}

// dateLayouts are accepted on input; output is always RFC 3339 UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func coerceDateTime(value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339), nil
	case string:
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, v); err == nil {
				return parsed.UTC().Format(time.RFC3339), nil
			}
		}
		return nil, fmt.Errorf("invalid datetime %q", v)
	default:
		return nil, fmt.Errorf("expected datetime, got %T", value)
	}
}

func coercePicklist(p domain.FieldPrompt, value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected picklist string, got %T", value)
	}
	for _, allowed := range p.AllowedValues {
		if s == allowed {
			return s, nil
		}
	}
	return nil, fmt.Errorf("value %q is not an allowed value", s)
}

func coerceString(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case float64, int, int64, bool:
		return fmt.Sprint(v), nil
	default:
		return nil, fmt.Errorf("expected string, got %T", value)
	}
}
