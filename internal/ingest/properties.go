package ingest

import (
	"fmt"
	"strconv"

	"geojson2tiles/internal/intern"
	"geojson2tiles/internal/store"
)

// collectProperties validates a GeoJSON Feature's properties object and
// converts each accepted value to its textual source form. Any value
// that is not string/number/boolean aborts the whole feature rather
// than being individually skipped.
func collectProperties(props map[string]interface{}) ([]store.Property, error) {
	out := make([]store.Property, 0, len(props))
	for k, v := range props {
		switch val := v.(type) {
		case string:
			out = append(out, store.Property{Tag: intern.TagString, Key: k, Value: val})
		case float64:
			out = append(out, store.Property{Tag: intern.TagNumber, Key: k, Value: formatNumber(val)})
		case bool:
			out = append(out, store.Property{Tag: intern.TagBoolean, Key: k, Value: strconv.FormatBool(val)})
		default:
			return nil, fmt.Errorf("unsupported property value type for key %q: %T", k, v)
		}
	}
	return out, nil
}

// formatNumber renders a JSON number in its shortest round-tripping
// decimal form, matching how the original's scanf/printf pair would
// reproduce an integral value without a trailing ".0". Non-integral
// values can't recover their exact source text this way: jsonpull
// decodes through encoding/json into float64 before this function ever
// sees the value, so e.g. a source literal of 3.10 round-trips as 3.1.
func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
