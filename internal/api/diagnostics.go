package api

import "encoding/json"

// Fields stripped from diagnostics payloads before they leave the
// process. unique_id and dedup_key embed the slugified serial, so they
// go too.
var redactedKeys = map[string]struct{}{
	"ip_address":    {},
	"ip_addr":       {},
	"host":          {},
	"mac_address":   {},
	"macAddress":    {},
	"serial_no":     {},
	"serialNumber":  {},
	"serial_number": {},
	"unique_id":     {},
	"dedup_key":     {},
}

const redactedValue = "**REDACTED**"

// redactJSON walks a decoded JSON value and replaces sensitive fields so
// diagnostics dumps are safe to attach to support tickets.
func redactJSON(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			if _, ok := redactedKeys[k]; ok {
				out[k] = redactedValue
				continue
			}
			out[k] = redactJSON(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = redactJSON(inner)
		}
		return out
	default:
		return v
	}
}

// redactStruct round-trips an arbitrary value through JSON and applies
// redaction to the generic form.
func redactStruct(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return redactJSON(generic), nil
}
