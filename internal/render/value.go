package render

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// FormatValue turns a cell value into display text. Null renders as the empty string.
func FormatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case json.Number:
		return typed.String()
	case []byte:
		return string(typed)
	case bool:
		return strconv.FormatBool(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case time.Time:
		return typed.Format(time.RFC3339Nano)
	case map[string]any, []any:
		raw, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}
		return string(raw)
	default:
		return fmt.Sprint(typed)
	}
}
