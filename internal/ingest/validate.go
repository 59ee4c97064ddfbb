package ingest

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
)

// ErrMalformedPayload means the body was not a JSON object at all; field
// level validation never ran.
var ErrMalformedPayload = errors.New("payload is not a JSON object")

// ValidationError carries every violated rule keyed by field name, so a
// client fixing its sender sees all problems at once rather than one per
// round trip. The map is also the 400 response body.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return "invalid scan: " + strings.Join(names, ", ")
}

func (e *ValidationError) add(field, reason string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], reason)
}

// Validate checks the raw payload against the scan schema and returns the
// typed record. It is a pure check: no defaulting, no derivation.
func Validate(payload []byte) (*Scan, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil || raw == nil {
		return nil, ErrMalformedPayload
	}

	vErr := &ValidationError{}
	scan := &Scan{}

	if b, ok := raw["device_id"]; !ok {
		vErr.add("device_id", "missing required field")
	} else if err := json.Unmarshal(b, &scan.DeviceID); err != nil {
		vErr.add("device_id", "must be a string")
	} else if strings.TrimSpace(scan.DeviceID) == "" {
		vErr.add("device_id", "must not be empty")
	}

	if b, ok := raw["rssi_values"]; !ok {
		vErr.add("rssi_values", "missing required field")
	} else if err := json.Unmarshal(b, &scan.RSSIValues); err != nil {
		vErr.add("rssi_values", "must be a list of integers")
	} else if len(scan.RSSIValues) == 0 {
		vErr.add("rssi_values", "must not be empty")
	}

	validateInstant(raw, "in_time", &scan.InTime, vErr)
	validateInstant(raw, "out_time", &scan.OutTime, vErr)

	if b, ok := raw["average_distance"]; !ok {
		vErr.add("average_distance", "missing required field")
	} else if err := json.Unmarshal(b, &scan.AverageDistance); err != nil {
		vErr.add("average_distance", "must be a number")
	} else if scan.AverageDistance < 0 {
		vErr.add("average_distance", "must not be negative")
	}

	if b, ok := raw["booth_id"]; ok {
		if err := json.Unmarshal(b, &scan.BoothID); err != nil || scan.BoothID < 0 {
			vErr.add("booth_id", "must be a non-negative integer")
		}
	}

	if len(vErr.Fields) > 0 {
		return nil, vErr
	}
	return scan, nil
}

func validateInstant(raw map[string]json.RawMessage, field string, dst *TimeValue, vErr *ValidationError) {
	b, ok := raw[field]
	if !ok {
		vErr.add(field, "missing required field")
		return
	}
	if err := json.Unmarshal(b, dst); err != nil {
		vErr.add(field, errNotATimestamp.Error())
	}
}
