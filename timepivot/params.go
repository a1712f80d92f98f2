package timepivot

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// fillQueryWithParameters substitutes '?' placeholders in queryPattern with the given
// parameters formatted as SQL literals.
func fillQueryWithParameters(queryPattern string, params []interface{}) (string, error) {
	parts := strings.Split(queryPattern, "?")
	if len(parts)-1 != len(params) {
		return "", fmt.Errorf(
			"number of placeholders in queryPattern (%d) does not match number of params (%d)",
			len(parts)-1, len(params),
		)
	}
	var query strings.Builder
	for i, part := range parts[:len(parts)-1] {
		query.WriteString(part)
		formatted, err := formatArg(params[i])
		if err != nil {
			return "", fmt.Errorf("failed to format parameter: %v", err)
		}
		query.WriteString(formatted)
	}
	query.WriteString(parts[len(parts)-1])
	return query.String(), nil
}

// formatArg renders a single value as a SQL literal. Strings are single-quoted with
// embedded quotes doubled, byte slices are hex encoded, maps and slices are serialized
// to a quoted JSON string (the encoding the JSON-string column shape stores).
func formatArg(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "NULL", nil
	case string:
		return quoteLiteral(v), nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case time.Time:
		return quoteLiteral(v.Format("2006-01-02 15:04:05")), nil
	case []byte:
		return quoteLiteral(hex.EncodeToString(v)), nil
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		encoded, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("failed to encode %T as JSON: %v", value, err)
		}
		return quoteLiteral(string(encoded)), nil
	default:
		return "", fmt.Errorf("unsupported type: %T", value)
	}
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
