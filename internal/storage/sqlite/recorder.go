package sqlite

import (
	"time"

	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/internal/events"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

// Subscribe persists text messages and ATC session changes published on bus
func (s *Storage) Subscribe(bus *events.Bus) {
	events.On(bus, func(e events.TextMessagesReceived) { s.storeMessages(e.Messages) })
	events.On(bus, func(e events.TextMessagesSent) { s.storeMessages(e.Messages) })
	events.On(bus, func(e events.AtcStationConnectionChanged) {
		if err := s.RecordAtcSession(e.Station, e.Connected, time.Now()); err != nil {
			s.logger.Error("Failed to record ATC session",
				logger.String("callsign", e.Station.Callsign.String()),
				logger.Error(err))
		}
	})
}

func (s *Storage) storeMessages(messages []aviation.TextMessage) {
	for _, m := range messages {
		if _, err := s.StoreTextMessage(m); err != nil {
			s.logger.Error("Failed to store text message",
				logger.String("from", m.From.String()),
				logger.Error(err))
		}
	}
}
