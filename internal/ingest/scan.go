package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Scan is the validated input record. Only the Validator produces one;
// downstream steps never touch raw payload bytes.
type Scan struct {
	DeviceID        string
	RSSIValues      []int
	InTime          TimeValue
	OutTime         TimeValue
	AverageDistance float64
	BoothID         int // 0 when the payload omitted it
}

var errNotATimestamp = errors.New("must be epoch seconds or a timestamp string")

// TimeValue holds an instant in whichever of the two accepted encodings the
// sender used: integer epoch seconds, or a pre-formatted timestamp string.
type TimeValue struct {
	Epoch  int64
	Text   string
	IsText bool
	Set    bool
}

func Epoch(sec int64) TimeValue { return TimeValue{Epoch: sec, Set: true} }

func Text(s string) TimeValue { return TimeValue{Text: s, IsText: true, Set: true} }

func (t *TimeValue) UnmarshalJSON(b []byte) error {
	*t = TimeValue{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return errNotATimestamp
		}
		t.Text = s
		t.IsText = true
		t.Set = true
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return errNotATimestamp
	}
	t.Epoch = n
	t.Set = true
	return nil
}

func (t TimeValue) MarshalJSON() ([]byte, error) {
	if !t.Set {
		return []byte("null"), nil
	}
	if t.IsText {
		return json.Marshal(t.Text)
	}
	return json.Marshal(t.Epoch)
}
