package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

var ErrNotAScanTopic = errors.New("not a scan topic")

// MQTTMessage is the slice of a broker message the source needs.
type MQTTMessage interface {
	Topic() string
	Payload() []byte
}

// MQTTSource feeds broker-published scans through the same pipeline the HTTP
// endpoint uses. There is no requester to answer, so failures are logged and
// the message dropped.
type MQTTSource struct {
	Pipeline *Pipeline
}

func (s *MQTTSource) HandleMessage(ctx context.Context, msg MQTTMessage, receivedAt time.Time) {
	topic := msg.Topic()
	boothID, err := ParseBoothID(topic)
	if err != nil {
		if errors.Is(err, ErrNotAScanTopic) {
			return
		}
		slog.Warn("scan topic parse failed", "topic", topic, "error", err)
		return
	}

	payload := msg.Payload()
	if len(payload) == 0 {
		return
	}

	sess, err := s.Pipeline.IngestForBooth(ctx, payload, boothID, receivedAt)
	if err != nil {
		slog.Warn("mqtt scan rejected", "topic", topic, "booth_id", boothID, "error", err)
		return
	}
	slog.Debug("mqtt scan stored", "booth_id", sess.BoothID, "device_id", sess.DeviceID, "id", sess.ID)
}

// ParseBoothID extracts the booth from a "booths/<id>/scans" topic.
func ParseBoothID(topic string) (int, error) {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	if len(parts) != 3 || parts[0] != "booths" || parts[2] != "scans" {
		return 0, ErrNotAScanTopic
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil || id <= 0 {
		return 0, errors.New("invalid booth id in topic")
	}
	return id, nil
}
