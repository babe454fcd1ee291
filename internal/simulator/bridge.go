package simulator

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/internal/websocket"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

// Message types exchanged with the simulator plugin
const (
	MessageTypeAddAircraft     = "sim_add_aircraft"
	MessageTypeRemoveAircraft  = "sim_remove_aircraft"
	MessageTypeUpdateSituation = "sim_update_situation"
	MessageTypeUpdateParts     = "sim_update_parts"
	MessageTypeOwnSituation    = "own_situation"
	MessageTypeOwnCockpit      = "own_cockpit"
	MessageTypeResync          = "sim_resync"
)

// ErrSimulatorBusy is returned when the hub queue is full and a message was not sent
var ErrSimulatorBusy = errors.New("simulator queue full")

// Broadcaster sends a message to every connected plugin, reporting false when it was dropped
type Broadcaster interface {
	TryBroadcast(message *websocket.Message) bool
}

// OwnAircraftSink receives the own aircraft state reported by the simulator
type OwnAircraftSink interface {
	UpdateSituation(s aviation.Situation) bool
	UpdateCockpit(com1, com2 aviation.ComSystem, xpdr aviation.Transponder) bool
}

// BridgeDriver is a Driver that talks to a simulator plugin over the WebSocket hub.
// It also handles the plugin's own-aircraft reports.
type BridgeDriver struct {
	hub    Broadcaster
	own    OwnAircraftSink
	gate   *Gate
	logger *logger.Logger
}

// NewBridgeDriver creates a bridge broadcasting on hub and feeding own
func NewBridgeDriver(hub Broadcaster, own OwnAircraftSink, log *logger.Logger) *BridgeDriver {
	return &BridgeDriver{
		hub:    hub,
		own:    own,
		logger: log.Named("sim-bridge"),
	}
}

// AttachGate lets a resync request replay the rendered aircraft
func (b *BridgeDriver) AttachGate(g *Gate) {
	b.gate = g
}

func (b *BridgeDriver) send(messageType string, data map[string]any) error {
	if !b.hub.TryBroadcast(&websocket.Message{Type: messageType, Data: data}) {
		return fmt.Errorf("%s: %w", messageType, ErrSimulatorBusy)
	}
	return nil
}

func (b *BridgeDriver) PhysicallyAddRemoteAircraft(aircraft aviation.RemoteAircraft) error {
	return b.send(MessageTypeAddAircraft, map[string]any{"aircraft": aircraft})
}

func (b *BridgeDriver) PhysicallyRemoveRemoteAircraft(callsign aviation.Callsign) error {
	return b.send(MessageTypeRemoveAircraft, map[string]any{"callsign": callsign})
}

func (b *BridgeDriver) UpdateRemoteAircraftSituation(aircraft aviation.RemoteAircraft) error {
	return b.send(MessageTypeUpdateSituation, map[string]any{
		"callsign":  aircraft.Callsign,
		"situation": aircraft.Situation,
	})
}

func (b *BridgeDriver) UpdateRemoteAircraftParts(aircraft aviation.RemoteAircraft) error {
	return b.send(MessageTypeUpdateParts, map[string]any{
		"callsign": aircraft.Callsign,
		"parts":    aircraft.Parts,
	})
}

type ownSituationPayload struct {
	Lat            float64   `json:"lat"`
	Lon            float64   `json:"lon"`
	AltitudeFt     float64   `json:"altitude_ft"`
	HeadingDeg     float64   `json:"heading_deg"`
	PitchDeg       float64   `json:"pitch_deg"`
	BankDeg        float64   `json:"bank_deg"`
	GroundSpeedKts float64   `json:"ground_speed_kts"`
	Timestamp      time.Time `json:"timestamp"`
}

type ownCockpitPayload struct {
	Com1ActiveMHz   float64 `json:"com1_active_mhz"`
	Com1StandbyMHz  float64 `json:"com1_standby_mhz"`
	Com1Volume      int     `json:"com1_volume"`
	Com2ActiveMHz   float64 `json:"com2_active_mhz"`
	Com2StandbyMHz  float64 `json:"com2_standby_mhz"`
	Com2Volume      int     `json:"com2_volume"`
	TransponderCode int     `json:"transponder_code"`
	TransponderMode string  `json:"transponder_mode"`
}

// HandleMessage handles own-aircraft reports from the plugin
func (b *BridgeDriver) HandleMessage(client *websocket.Client, messageType string, data map[string]any) error {
	switch messageType {
	case MessageTypeOwnSituation:
		var p ownSituationPayload
		if err := decodeData(data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", messageType, err)
		}
		b.own.UpdateSituation(aviation.Situation{
			Position:       aviation.Position{Lat: p.Lat, Lon: p.Lon, AltitudeFt: p.AltitudeFt},
			HeadingDeg:     p.HeadingDeg,
			PitchDeg:       p.PitchDeg,
			BankDeg:        p.BankDeg,
			GroundSpeedKts: p.GroundSpeedKts,
			Timestamp:      p.Timestamp,
		})
		return nil

	case MessageTypeOwnCockpit:
		var p ownCockpitPayload
		if err := decodeData(data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", messageType, err)
		}
		com1 := aviation.ComSystem{
			Active:  aviation.FrequencyFromMHz(p.Com1ActiveMHz),
			Standby: aviation.FrequencyFromMHz(p.Com1StandbyMHz),
			Volume:  p.Com1Volume,
		}
		com2 := aviation.ComSystem{
			Active:  aviation.FrequencyFromMHz(p.Com2ActiveMHz),
			Standby: aviation.FrequencyFromMHz(p.Com2StandbyMHz),
			Volume:  p.Com2Volume,
		}
		mode := aviation.TransponderMode(p.TransponderMode)
		if mode == "" {
			mode = aviation.TransponderStandby
		}
		b.own.UpdateCockpit(com1, com2, aviation.Transponder{Code: p.TransponderCode, Mode: mode})
		return nil

	case MessageTypeResync:
		if b.gate == nil {
			return nil
		}
		rendered := b.gate.RenderedCallsigns()
		b.logger.Info("Simulator requested resync", logger.Int("rendered", len(rendered)))
		for _, cs := range rendered {
			if ac, ok := b.gate.provider.AircraftByCallsign(cs); ok {
				client.SendMessage(&websocket.Message{
					Type: MessageTypeAddAircraft,
					Data: map[string]any{"aircraft": ac},
				})
			}
		}
		return nil

	default:
		b.logger.Debug("Unhandled message type", logger.String("type", messageType))
		return nil
	}
}

func decodeData(data map[string]any, v any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
