package ingest

import (
	"time"
)

// maxEpoch is 2100-01-01T00:00:00Z; anything past it is assumed to be a
// sender bug (milliseconds instead of seconds, usually).
const maxEpoch = 4102444800

// NormalizationError is a client-caused failure to interpret an instant.
type NormalizationError struct {
	Field  string
	Reason string
}

func (e *NormalizationError) Error() string {
	return e.Field + ": " + e.Reason
}

// Normalizer renders every persisted instant in one fixed timezone,
// regardless of the sender's locale or encoding.
type Normalizer struct {
	loc *time.Location
}

func NewNormalizer(timezone string) (*Normalizer, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &Normalizer{loc: loc}, nil
}

// Instant renders v as an RFC 3339 string in the fixed zone. Epoch input is
// converted with the zone's offset; string input is parsed and re-rendered.
// An unset value yields "" and no error; the caller decides whether an
// absent instant is acceptable for the field.
func (n *Normalizer) Instant(field string, v TimeValue) (string, error) {
	if !v.Set {
		return "", nil
	}
	if v.IsText {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
			if t, err := time.ParseInLocation(layout, v.Text, n.loc); err == nil {
				return t.In(n.loc).Format(time.RFC3339), nil
			}
		}
		return "", &NormalizationError{Field: field, Reason: "unrecognized timestamp format"}
	}
	if v.Epoch < 0 || v.Epoch > maxEpoch {
		return "", &NormalizationError{Field: field, Reason: "epoch seconds out of range"}
	}
	return time.Unix(v.Epoch, 0).In(n.loc).Format(time.RFC3339), nil
}

// Stamp renders an ingestion-time instant in the same fixed zone.
func (n *Normalizer) Stamp(at time.Time) string {
	return at.In(n.loc).Format(time.RFC3339)
}
