package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/internal/events"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

// OwnAircraft is what the context needs to log in
type OwnAircraft interface {
	Get() aviation.OwnAircraft
}

// Options tune the periodic refresh of network data
type Options struct {
	DataUpdateInterval time.Duration
	AtisUpdateInterval time.Duration
	ConnectTimeout     time.Duration
}

// Context owns the network session. A nil *Context means the network is unavailable.
type Context struct {
	Airspace

	driver Driver
	own    OwnAircraft
	bus    *events.Bus
	opts   Options
	logger *logger.Logger

	mu      sync.Mutex
	server  Server
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewContext wires a driver to the airspace. Inbound callbacks should be routed to the returned context.
func NewContext(driver Driver, airspace Airspace, own OwnAircraft, bus *events.Bus, opts Options, log *logger.Logger) *Context {
	if opts.DataUpdateInterval <= 0 {
		opts.DataUpdateInterval = 30 * time.Second
	}
	if opts.AtisUpdateInterval <= 0 {
		opts.AtisUpdateInterval = 60 * time.Second
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 15 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Context{
		Airspace: airspace,
		driver:   driver,
		own:      own,
		bus:      bus,
		opts:     opts,
		logger:   log.Named("network"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Connect validates the login data and starts connecting.
// Validation problems come back as error messages, never as a Go error.
func (c *Context) Connect(server Server, mode LoginMode) aviation.StatusMessageList {
	own := c.own.Get()
	switch {
	case !server.HasValidCredentials():
		return aviation.StatusMessageList{aviation.NewError("Invalid user credentials")}
	case !server.IsValid():
		return aviation.StatusMessageList{aviation.NewError("Invalid server " + server.String())}
	case own.Icao.AircraftDesignator == "":
		return aviation.StatusMessageList{aviation.NewError("Invalid ICAO data for own aircraft")}
	case own.Callsign.IsEmpty():
		return aviation.StatusMessageList{aviation.NewError("Invalid callsign for own aircraft")}
	}

	switch c.driver.Status() {
	case events.Connected:
		return aviation.StatusMessageList{aviation.NewError("Already connected")}
	case events.Connecting, events.Disconnecting:
		return aviation.StatusMessageList{aviation.NewError("Pending connection, please wait")}
	}

	if mode == "" {
		mode = LoginPilot
	}
	c.driver.PresetServer(server)
	c.driver.PresetLoginMode(mode)
	c.driver.PresetCallsign(own.Callsign)
	c.driver.PresetIcaoCodes(own.Icao)

	c.mu.Lock()
	c.server = server
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(c.ctx, c.opts.ConnectTimeout)
	defer cancel()
	if err := c.driver.InitiateConnection(ctx); err != nil {
		c.logger.Warn("Connection failed", logger.String("server", server.String()), logger.Error(err))
		return aviation.StatusMessageList{aviation.NewError(fmt.Sprintf("Connection failed: %v", err))}
	}

	c.logger.Info("Connection pending",
		logger.String("server", server.Name),
		logger.String("address", server.Address),
		logger.Int("port", server.Port),
		logger.String("mode", string(mode)))
	return aviation.StatusMessageList{aviation.NewInfo(fmt.Sprintf("Connection pending %s %d", server.Address, server.Port))}
}

// Disconnect terminates the session
func (c *Context) Disconnect() aviation.StatusMessageList {
	switch c.driver.Status() {
	case events.Connected:
		if err := c.driver.TerminateConnection(); err != nil {
			return aviation.StatusMessageList{aviation.NewError(fmt.Sprintf("Disconnect failed: %v", err))}
		}
		return aviation.StatusMessageList{aviation.NewInfo("Connection terminating")}
	case events.Connecting, events.Disconnecting:
		return aviation.StatusMessageList{aviation.NewInfo("Pending connection, please wait")}
	default:
		return aviation.StatusMessageList{aviation.NewWarning("Already disconnected")}
	}
}

func (c *Context) Status() events.ConnectionStatus {
	return c.driver.Status()
}

func (c *Context) IsConnected() bool {
	return c.driver.Status().IsConnected()
}

// Server returns the server of the last connect attempt
func (c *Context) Server() Server {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server
}

// SendTextMessages sends messages and publishes them as sent
func (c *Context) SendTextMessages(messages []aviation.TextMessage) error {
	if len(messages) == 0 {
		return nil
	}
	own := c.own.Get().Callsign
	out := make([]aviation.TextMessage, 0, len(messages))
	for _, m := range messages {
		if m.From.IsEmpty() {
			m.From = own
		}
		if m.SentAt.IsZero() {
			m.SentAt = time.Now().UTC()
		}
		m.Outgoing = true
		out = append(out, m)
	}
	if err := c.driver.SendTextMessages(out); err != nil {
		return fmt.Errorf("send text messages: %w", err)
	}
	c.bus.Publish(events.TextMessagesSent{Messages: out})
	return nil
}

// OnConnectionStatusChanged publishes the change and clears the airspace once disconnected
func (c *Context) OnConnectionStatusChanged(previous, current events.ConnectionStatus) {
	c.bus.Publish(events.ConnectionStatusChanged{Previous: previous, Current: current})

	switch current {
	case events.Connected:
		c.Airspace.RequestDataUpdates()
		c.Airspace.RequestAtisUpdates()
	case events.Disconnected:
		c.Airspace.Clear()
	}
}

// Start launches the periodic data and ATIS refresh
func (c *Context) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}
	c.logger.Info("Starting network refresh",
		logger.Duration("data_interval", c.opts.DataUpdateInterval),
		logger.Duration("atis_interval", c.opts.AtisUpdateInterval))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.refreshLoop()
	}()
	c.started = true
	return nil
}

// Stop ends the refresh loop and terminates a live session
func (c *Context) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	c.mu.Unlock()

	c.logger.Info("Stopping network context")
	c.cancel()
	c.wg.Wait()
	if c.driver.Status().IsConnected() {
		if err := c.driver.TerminateConnection(); err != nil {
			c.logger.Warn("Failed to terminate connection", logger.Error(err))
		}
	}
	return nil
}

func (c *Context) refreshLoop() {
	dataTicker := time.NewTicker(c.opts.DataUpdateInterval)
	defer dataTicker.Stop()
	atisTicker := time.NewTicker(c.opts.AtisUpdateInterval)
	defer atisTicker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-dataTicker.C:
			c.Airspace.RequestDataUpdates()
		case <-atisTicker.C:
			c.Airspace.RequestAtisUpdates()
		}
	}
}
