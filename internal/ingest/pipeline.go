package ingest

import (
	"context"
	"time"

	"github.com/RidhamAnand/EDAI-4/internal/realtime"
	"github.com/RidhamAnand/EDAI-4/internal/store"

	"gorm.io/datatypes"
)

// SessionStore is the slice of the persistence layer the pipeline needs:
// one atomic durable write per derived session.
type SessionStore interface {
	Insert(ctx context.Context, s *store.Session) error
}

// Notifier fans a post-commit event out to subscribers. Implementations must
// be safe for concurrent use and must never block the caller.
type Notifier interface {
	Broadcast(ev realtime.Event)
}

// StoreError wraps a failed durable write so the endpoint can distinguish it
// from client-caused failures.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string { return "session insert failed: " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

// Pipeline turns one raw scan payload into one stored session:
// validate, reduce, normalize, store, notify — strictly in that order.
// Notification only ever follows a confirmed write.
type Pipeline struct {
	Store        SessionStore
	Notifier     Notifier
	Normalizer   *Normalizer
	DefaultBooth int
}

// Ingest processes payload received at the given instant. The returned
// session has its store-assigned id set. Errors are ErrMalformedPayload,
// *ValidationError, *NormalizationError or *StoreError.
func (p *Pipeline) Ingest(ctx context.Context, payload []byte, receivedAt time.Time) (*store.Session, error) {
	return p.ingest(ctx, payload, p.DefaultBooth, receivedAt)
}

// IngestForBooth is Ingest with a caller-supplied booth fallback, used by
// transports that carry the booth identity out of band (the MQTT topic).
// A booth_id inside the payload still wins.
func (p *Pipeline) IngestForBooth(ctx context.Context, payload []byte, boothID int, receivedAt time.Time) (*store.Session, error) {
	return p.ingest(ctx, payload, boothID, receivedAt)
}

func (p *Pipeline) ingest(ctx context.Context, payload []byte, fallbackBooth int, receivedAt time.Time) (*store.Session, error) {
	scan, err := Validate(payload)
	if err != nil {
		return nil, err
	}

	retention := Retention(scan.RSSIValues)

	inTime, err := p.Normalizer.Instant("in_time", scan.InTime)
	if err != nil {
		return nil, err
	}
	outTime, err := p.Normalizer.Instant("out_time", scan.OutTime)
	if err != nil {
		return nil, err
	}

	boothID := scan.BoothID
	if boothID == 0 {
		boothID = fallbackBooth
	}

	sess := &store.Session{
		BoothID:         boothID,
		DeviceID:        scan.DeviceID,
		RSSIValues:      datatypes.JSONSlice[int](scan.RSSIValues),
		UserRetention:   retention,
		InTime:          inTime,
		OutTime:         outTime,
		AverageDistance: scan.AverageDistance,
		Timestamp:       p.Normalizer.Stamp(receivedAt),
	}

	if err := p.Store.Insert(ctx, sess); err != nil {
		return nil, &StoreError{Err: err}
	}

	if p.Notifier != nil {
		p.Notifier.Broadcast(realtime.Event{Type: realtime.EventDataUpdated, BoothID: sess.BoothID})
	}
	return sess, nil
}
