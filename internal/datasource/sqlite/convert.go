package sqlite

import (
	"strconv"

	"github.com/platformbuilds/mirador-dashboards/internal/datasource"
	"github.com/platformbuilds/mirador-dashboards/internal/filter"
)

// fromColumn converts a scanned column value back into the Go type of meta.
func fromColumn(meta datasource.FieldMeta, v any) any {
	if v == nil {
		return nil
	}
	switch meta.Type {
	case datasource.FieldInteger, datasource.FieldMany2one:
		if n, ok := toInt(v); ok {
			return n
		}
	case datasource.FieldFloat, datasource.FieldMonetary:
		if f, ok := toFloat(v); ok {
			return f
		}
	case datasource.FieldBoolean:
		if n, ok := toInt(v); ok {
			return n != 0
		}
	case datasource.FieldDate, datasource.FieldDatetime:
		if s, ok := fromText(v); ok {
			if t, ok := filter.ParseTime(s); ok {
				return t
			}
			return s
		}
	}
	if s, ok := fromText(v); ok {
		return s
	}
	return v
}

func fromText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	}
	return "", false
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case float64:
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}
