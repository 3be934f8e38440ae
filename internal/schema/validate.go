package schema

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Validate coerces data to the schema of tag. It never fails: objects are
// coerced field by field, arrays element by element, and anything else
// degrades to an empty object. Unknown tags pass through untouched and
// report known=false.
func Validate(tag TypeTag, data any, now time.Time) (out any, known bool) {
	data = normalizeJSON(data)
	def, ok := definitions[tag]

	switch v := data.(type) {
	case map[string]any:
		if !ok {
			return v, false
		}
		return coerceObject(def, v, now), true
	case []any:
		if !ok {
			return v, false
		}
		items := make([]any, 0, len(v))
		for _, item := range v {
			if obj, isObj := item.(map[string]any); isObj {
				items = append(items, coerceObject(def, obj, now))
				continue
			}
			items = append(items, item)
		}
		return items, true
	default:
		return map[string]any{}, ok
	}
}

func coerceObject(def Definition, in map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(in)+len(def.Fields))
	for k, v := range in {
		out[k] = v
	}
	for name, field := range def.Fields {
		v, present := in[name]
		if !present && field.Nullable {
			continue
		}
		out[name] = Coerce(field, v, now)
	}
	return out
}

// Coerce converts v to field's kind. Null becomes the kind's zero value unless
// the field is nullable; a value that cannot be converted is returned as is.
func Coerce(field Field, v any, now time.Time) any {
	if v == nil {
		if field.Nullable {
			return nil
		}
		return zeroValue(field.Kind, now)
	}
	if out, ok := coerceValue(field.Kind, v); ok {
		return out
	}
	return v
}

func zeroValue(k Kind, now time.Time) any {
	switch k {
	case KindString:
		return ""
	case KindNumber:
		return float64(0)
	case KindBoolean:
		return false
	case KindArray:
		return []any{}
	case KindObject:
		return map[string]any{}
	case KindDate:
		return now.UTC().Format(time.RFC3339Nano)
	case KindTimestamp:
		return float64(now.UnixMilli())
	default:
		return nil
	}
}

func coerceValue(k Kind, v any) (any, bool) {
	switch k {
	case KindString:
		return toString(v)
	case KindNumber:
		return toNumber(v)
	case KindBoolean:
		return toBool(v)
	case KindArray:
		a, ok := v.([]any)
		return a, ok
	case KindObject:
		m, ok := v.(map[string]any)
		return m, ok
	case KindDate:
		t, ok := ParseTime(v)
		if !ok {
			return nil, false
		}
		return t.UTC().Format(time.RFC3339Nano), true
	case KindTimestamp:
		t, ok := ParseTime(v)
		if !ok {
			return nil, false
		}
		return float64(t.UnixMilli()), true
	default:
		return nil, false
	}
}

func toString(v any) (any, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return nil, false
	}
}

func toNumber(v any) (any, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case bool:
		if t {
			return float64(1), true
		}
		return float64(0), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		return f, true
	default:
		return nil, false
	}
}

func toBool(v any) (any, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		return t != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1":
			return true, true
		case "false", "no", "0", "":
			return false, true
		}
	}
	return nil, false
}

// ParseTime reads a date from a string in any common layout or from epoch
// seconds/milliseconds.
func ParseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case float64:
		if t > 1e11 {
			return time.UnixMilli(int64(t)).UTC(), true
		}
		return time.Unix(int64(t), 0).UTC(), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		parsed, err := dateparse.ParseIn(s, time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

// normalizeJSON turns Go values (structs, typed slices, ints) into the
// generic shapes produced by encoding/json.
func normalizeJSON(data any) any {
	switch data.(type) {
	case nil, string, float64, bool:
		return data
	}
	b, err := json.Marshal(data)
	if err != nil {
		return data
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return data
	}
	return out
}
