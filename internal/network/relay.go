package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/internal/events"
	"github.com/yegors/airspace-monitor/pkg/logger"
	"golang.org/x/time/rate"
)

var (
	ErrNotConnected   = errors.New("not connected")
	ErrQueryQueueFull = errors.New("query queue full")
)

const (
	relayWriteWait = 10 * time.Second
	relayPongWait  = 60 * time.Second

	defaultQueryQueueSize = 1024
)

// RelayOptions configure a RelayDriver
type RelayOptions struct {
	URL            string
	DialTimeout    time.Duration
	QueriesPerSec  int
	// QueryQueueSize bounds the queries waiting for a send token
	QueryQueueSize int
}

// RelayDriver speaks JSON frames with an FSD relay over a websocket
type RelayDriver struct {
	opts    RelayOptions
	dialer  websocket.Dialer
	queries *rate.Limiter
	logger  *logger.Logger
	now     func() time.Time

	mu          sync.Mutex
	conn        *websocket.Conn
	status      events.ConnectionStatus
	callbacks   Callbacks
	server      Server
	mode        LoginMode
	callsign    aviation.Callsign
	icao        aviation.AircraftIcao
	terminating bool
	pending     chan queryPayload
	stopSession context.CancelFunc

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// NewRelayDriver creates a disconnected driver
func NewRelayDriver(opts RelayOptions, log *logger.Logger) *RelayDriver {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.QueriesPerSec <= 0 {
		opts.QueriesPerSec = 20
	}
	if opts.QueryQueueSize <= 0 {
		opts.QueryQueueSize = defaultQueryQueueSize
	}
	return &RelayDriver{
		opts:    opts,
		dialer:  websocket.Dialer{HandshakeTimeout: opts.DialTimeout},
		queries: rate.NewLimiter(rate.Limit(opts.QueriesPerSec), opts.QueriesPerSec),
		logger:  log.Named("fsd-relay"),
		now:     time.Now,
		status:  events.Disconnected,
		mode:    LoginPilot,
	}
}

// SetCallbacks sets the receiver of inbound frames and status changes
func (d *RelayDriver) SetCallbacks(cb Callbacks) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks = cb
}

func (d *RelayDriver) PresetServer(server Server) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.server = server
}

func (d *RelayDriver) PresetLoginMode(mode LoginMode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = mode
}

func (d *RelayDriver) PresetCallsign(callsign aviation.Callsign) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callsign = callsign
}

func (d *RelayDriver) PresetIcaoCodes(icao aviation.AircraftIcao) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.icao = icao
}

func (d *RelayDriver) Status() events.ConnectionStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *RelayDriver) IsConnected() bool {
	return d.Status().IsConnected()
}

// setStatus records a new status and reports it outside the lock
func (d *RelayDriver) setStatus(next events.ConnectionStatus) {
	d.mu.Lock()
	prev := d.status
	if prev == next {
		d.mu.Unlock()
		return
	}
	d.status = next
	cb := d.callbacks
	d.mu.Unlock()

	d.logger.Info("Connection status changed",
		logger.String("previous", string(prev)),
		logger.String("current", string(next)))
	if cb != nil {
		cb.OnConnectionStatusChanged(prev, next)
	}
}

// InitiateConnection dials the relay and asks it to log in with the preset data.
// The session is connected once the relay reports it.
func (d *RelayDriver) InitiateConnection(ctx context.Context) error {
	d.mu.Lock()
	if d.conn != nil {
		d.mu.Unlock()
		return fmt.Errorf("initiate connection: already %s", d.status)
	}
	payload := connectPayload{
		Address:  d.server.Address,
		Port:     d.server.Port,
		UserID:   d.server.User.ID,
		Password: d.server.Password,
		RealName: d.server.User.RealName,
		Mode:     string(d.mode),
		Callsign: d.callsign.String(),
		Aircraft: d.icao.AircraftDesignator,
		Airline:  d.icao.AirlineDesignator,
		Combined: d.icao.CombinedType,
	}
	d.terminating = false
	d.mu.Unlock()

	d.setStatus(events.Connecting)

	dialCtx, cancel := context.WithTimeout(ctx, d.opts.DialTimeout)
	defer cancel()
	conn, _, err := d.dialer.DialContext(dialCtx, d.opts.URL, nil)
	if err != nil {
		d.setStatus(events.Failed)
		d.setStatus(events.Disconnected)
		return fmt.Errorf("dial relay %s: %w", d.opts.URL, err)
	}

	d.mu.Lock()
	d.conn = conn
	d.mu.Unlock()

	if err := d.send(frameConnect, payload); err != nil {
		conn.Close()
		d.mu.Lock()
		d.conn = nil
		d.mu.Unlock()
		d.setStatus(events.Failed)
		d.setStatus(events.Disconnected)
		return err
	}

	// The query sender lives as long as this socket, not the caller's context.
	sessionCtx, stopSession := context.WithCancel(context.Background())
	pending := make(chan queryPayload, d.opts.QueryQueueSize)
	d.mu.Lock()
	d.pending = pending
	d.stopSession = stopSession
	d.mu.Unlock()

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		d.sendQueries(sessionCtx, pending)
	}()
	go func() {
		defer d.wg.Done()
		d.readLoop(conn)
	}()
	return nil
}

// TerminateConnection asks the relay to log off and closes the socket
func (d *RelayDriver) TerminateConnection() error {
	d.mu.Lock()
	conn := d.conn
	d.terminating = true
	d.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	d.setStatus(events.Disconnecting)

	if err := d.send(frameDisconnect, nil); err != nil {
		d.logger.Debug("Failed to send disconnect frame", logger.Error(err))
	}
	d.writeMu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(relayWriteWait))
	d.writeMu.Unlock()
	conn.Close()
	return nil
}

// Wait blocks until the reader goroutine has finished
func (d *RelayDriver) Wait() {
	d.wg.Wait()
}

func (d *RelayDriver) readLoop(conn *websocket.Conn) {
	defer func() {
		conn.Close()
		d.mu.Lock()
		terminating := d.terminating
		if d.conn == conn {
			d.conn = nil
			d.pending = nil
		}
		stopSession := d.stopSession
		d.mu.Unlock()
		if stopSession != nil {
			stopSession()
		}
		if !terminating {
			d.setStatus(events.Failed)
		}
		d.setStatus(events.Disconnected)
	}()

	conn.SetReadDeadline(time.Now().Add(relayPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(relayPongWait))
	})

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			d.mu.Lock()
			terminating := d.terminating
			d.mu.Unlock()
			if !terminating && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				d.logger.Warn("Relay read failed", logger.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(relayPongWait))
		d.handleFrame(f)
	}
}

func (d *RelayDriver) handleFrame(f frame) {
	if f.Type == frameConnectionStatus {
		var p statusPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			d.logger.Debug("Malformed status frame", logger.Error(err))
			return
		}
		if p.Error != "" {
			d.logger.Warn("Relay reported an error", logger.String("error", p.Error))
		}
		d.setStatus(p.Status)
		return
	}

	d.mu.Lock()
	cb := d.callbacks
	d.mu.Unlock()
	if cb == nil {
		return
	}
	if err := dispatch(f, cb, d.now()); err != nil {
		d.logger.Debug("Dropping relay frame", logger.String("type", f.Type), logger.Error(err))
	}
}

func (d *RelayDriver) send(frameType string, payload any) error {
	f, err := newFrame(frameType, payload)
	if err != nil {
		return err
	}

	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(relayWriteWait))
	if err := conn.WriteJSON(f); err != nil {
		return fmt.Errorf("write %s frame: %w", frameType, err)
	}
	return nil
}

// query queues a request; sendQueries writes it once the rate limiter grants a token
func (d *RelayDriver) query(kind string, callsign aviation.Callsign, icao string) error {
	d.mu.Lock()
	pending := d.pending
	connected := d.status.IsConnected()
	d.mu.Unlock()
	if !connected || pending == nil {
		return ErrNotConnected
	}

	select {
	case pending <- queryPayload{Kind: kind, Callsign: callsign.String(), Icao: icao}:
		return nil
	default:
		d.logger.Warn("Query queue full", logger.String("kind", kind), logger.String("callsign", callsign.String()))
		return ErrQueryQueueFull
	}
}

func (d *RelayDriver) sendQueries(ctx context.Context, pending <-chan queryPayload) {
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-pending:
			if err := d.queries.Wait(ctx); err != nil {
				return
			}
			if err := d.send(frameQuery, q); err != nil {
				d.logger.Debug("Failed to send query",
					logger.String("kind", q.Kind), logger.String("callsign", q.Callsign), logger.Error(err))
			}
		}
	}
}

func (d *RelayDriver) SendFrequencyQuery(callsign aviation.Callsign) error {
	return d.query(queryFrequency, callsign, "")
}

func (d *RelayDriver) SendRealNameQuery(callsign aviation.Callsign) error {
	return d.query(queryRealName, callsign, "")
}

func (d *RelayDriver) SendIcaoCodesQuery(callsign aviation.Callsign) error {
	return d.query(queryIcaoCodes, callsign, "")
}

func (d *RelayDriver) SendAtisQuery(callsign aviation.Callsign) error {
	return d.query(queryAtis, callsign, "")
}

func (d *RelayDriver) SendServerQuery(callsign aviation.Callsign) error {
	return d.query(queryServer, callsign, "")
}

func (d *RelayDriver) SendCapabilitiesQuery(callsign aviation.Callsign) error {
	return d.query(queryCapabilities, callsign, "")
}

// SendAircraftModelQuery asks another client for the model it flies
func (d *RelayDriver) SendAircraftModelQuery(callsign aviation.Callsign) error {
	return d.query(queryAircraftModel, callsign, "")
}

func (d *RelayDriver) SendFlightPlanQuery(callsign aviation.Callsign) error {
	return d.query(queryFlightPlan, callsign, "")
}

func (d *RelayDriver) SendMetarQuery(icao string) error {
	return d.query(queryMetar, "", icao)
}

// SendTextMessages sends private and radio messages
func (d *RelayDriver) SendTextMessages(messages []aviation.TextMessage) error {
	if !d.IsConnected() {
		return ErrNotConnected
	}
	payload := textMessagesPayload{Messages: make([]textMessagePayload, 0, len(messages))}
	for _, m := range messages {
		payload.Messages = append(payload.Messages, textMessageFrom(m))
	}
	return d.send(frameTextMessages, payload)
}
