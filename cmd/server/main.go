package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/yegors/airspace-monitor/internal/airspace"
	"github.com/yegors/airspace-monitor/internal/api"
	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/internal/bookings"
	"github.com/yegors/airspace-monitor/internal/config"
	"github.com/yegors/airspace-monitor/internal/datafile"
	"github.com/yegors/airspace-monitor/internal/events"
	"github.com/yegors/airspace-monitor/internal/feeds"
	"github.com/yegors/airspace-monitor/internal/network"
	"github.com/yegors/airspace-monitor/internal/ownaircraft"
	"github.com/yegors/airspace-monitor/internal/simulator"
	"github.com/yegors/airspace-monitor/internal/storage/sqlite"
	"github.com/yegors/airspace-monitor/internal/voice"
	"github.com/yegors/airspace-monitor/internal/websocket"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

// stopper is a background component stopped on shutdown
type stopper struct {
	name string
	stop func() error
}

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting airspace monitor",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus(log)
	var started []stopper

	own := ownaircraft.NewProvider(initialOwnAircraft(cfg.OwnAircraft), bus, log)

	var storage *sqlite.Storage
	if cfg.Storage.Type == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0755); err != nil {
			log.Error("Failed to create database directory", logger.Error(err), logger.String("path", cfg.Storage.SQLitePath))
			os.Exit(1)
		}
		storage, err = sqlite.Open(cfg.Storage.SQLitePath, log)
		if err != nil {
			log.Error("Failed to open SQLite storage", logger.Error(err))
			os.Exit(1)
		}
		defer storage.Close()
		storage.Subscribe(bus)
		log.Info("Using SQLite storage", logger.String("path", cfg.Storage.SQLitePath))
	}

	feedClient := feeds.NewClient(feeds.ClientConfig{
		Timeout:    config.Seconds(cfg.Feeds.TimeoutSecs),
		MaxRetries: cfg.Feeds.MaxRetries,
		UserAgent:  cfg.Feeds.UserAgent,
	}, log)

	// The monitor takes the data file as an interface; a nil reader must stay an untyped nil.
	var static airspace.StaticData
	var dataReader *datafile.Reader
	if cfg.Datafile.Enabled {
		dataReader = datafile.NewReader(cfg.Datafile.URL, config.Seconds(cfg.Datafile.RefreshSecs), feedClient, log)
		static = dataReader
	}

	relay := network.NewRelayDriver(network.RelayOptions{
		URL:           cfg.Network.RelayURL,
		DialTimeout:   config.Seconds(cfg.Network.DialTimeoutSecs),
		QueriesPerSec: cfg.Network.QueriesPerSecond,
	}, log)

	monitor, err := airspace.NewMonitor(relay, own, static, bus, airspace.Options{
		MetarStaleAfter: config.Millis(cfg.Metar.StaleAfterMs),
		MetarWait:       config.Millis(cfg.Metar.WaitMs),
		MetarCacheSize:  cfg.Metar.CacheSize,
	}, log)
	if err != nil {
		log.Error("Failed to create airspace monitor", logger.Error(err))
		os.Exit(1)
	}

	netCtx := network.NewContext(relay, monitor, own, bus, network.Options{
		DataUpdateInterval: config.Seconds(cfg.Network.DataUpdateSecs),
		AtisUpdateInterval: config.Seconds(cfg.Network.AtisUpdateSecs),
		ConnectTimeout:     config.Seconds(cfg.Network.ConnectTimeoutSecs),
	}, log)
	relay.SetCallbacks(netCtx)

	wsServer := websocket.NewServer(log)
	go wsServer.Run(ctx)
	wsServer.ForwardEvents(bus)

	bridge := simulator.NewBridgeDriver(wsServer, own, log)
	gate := simulator.NewGate(bridge, monitor, cfg.Rendering.UpdatesPerSecond, log)
	gate.Subscribe(bus)
	bridge.AttachGate(gate)
	wsServer.SetMessageHandler(bridge)
	if cfg.Rendering.MaxAircraft > 0 {
		gate.SetMaxRenderedAircraft(cfg.Rendering.MaxAircraft)
	}
	if cfg.Rendering.MaxDistanceNM > 0 {
		gate.SetMaxRenderedDistance(cfg.Rendering.MaxDistanceNM)
	}
	rendering := simulator.NewService(gate, config.Seconds(cfg.Rendering.SnapshotSecs), log)

	automatic := cfg.Voice.AutomaticResolution == nil || *cfg.Voice.AutomaticResolution
	voiceResolver := voice.NewResolver(monitor, own, bus, automatic, log)
	if len(cfg.Voice.Overrides) > 0 {
		if err := voiceResolver.SetOverrides(cfg.Voice.Overrides); err != nil {
			log.Error("Invalid voice room overrides", logger.Error(err))
			os.Exit(1)
		}
	}

	if dataReader != nil {
		if err := dataReader.Start(); err != nil {
			log.Error("Failed to start data file reader", logger.Error(err))
			os.Exit(1)
		}
		started = append(started, stopper{"data file reader", dataReader.Stop})
	}

	if cfg.Bookings.Enabled {
		bookingReader := bookings.NewReader(cfg.Bookings.URL, config.Seconds(cfg.Bookings.RefreshSecs), feedClient, monitor, log)
		if err := bookingReader.Start(); err != nil {
			log.Error("Failed to start bookings reader", logger.Error(err))
			os.Exit(1)
		}
		started = append(started, stopper{"bookings reader", bookingReader.Stop})
	}

	if err := rendering.Start(); err != nil {
		log.Error("Failed to start rendering service", logger.Error(err))
		os.Exit(1)
	}
	started = append(started, stopper{"rendering service", rendering.Stop})

	if err := netCtx.Start(); err != nil {
		log.Error("Failed to start network context", logger.Error(err))
		os.Exit(1)
	}
	started = append(started, stopper{"network context", netCtx.Stop})

	router := api.NewRouter(api.Services{
		Monitor:   monitor,
		Network:   netCtx,
		Own:       own,
		Voice:     voiceResolver,
		Gate:      gate,
		Rendering: rendering,
		Storage:   storage,
		Datafile:  dataReader,
		WSServer:  wsServer,
	}, cfg, log)

	var servers []*http.Server
	allPorts := []int{cfg.Server.Port}
	if len(cfg.Server.AdditionalPorts) > 0 {
		allPorts = append(allPorts, cfg.Server.AdditionalPorts...)
	}

	log.Info("Configured listener ports", logger.Any("ports", allPorts))

	handler := router.Routes()
	for _, port := range allPorts {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, port)
		server := &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  config.Seconds(cfg.Server.ReadTimeoutSecs),
			WriteTimeout: config.Seconds(cfg.Server.WriteTimeoutSecs),
			IdleTimeout:  config.Seconds(cfg.Server.IdleTimeoutSecs),
		}
		servers = append(servers, server)

		go func(s *http.Server) {
			log.Info("Starting HTTP server", logger.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP server error on startup", logger.String("addr", s.Addr), logger.Error(err))
			}
		}(server)
	}

	if cfg.Network.AutoConnect {
		autoConnect(cfg, netCtx, log)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	for i := len(started) - 1; i >= 0; i-- {
		s := started[i]
		log.Info("Stopping " + s.name + "...")
		if err := s.stop(); err != nil {
			log.Error("Error stopping "+s.name, logger.Error(err))
		}
	}
	relay.Wait()

	cancel()

	log.Info("Shutting down HTTP servers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP server shutdown error", logger.String("addr", srv.Addr), logger.Error(err))
			} else {
				log.Info("HTTP server shutdown complete", logger.String("addr", srv.Addr))
			}
		}(s)
	}
	wg.Wait()

	log.Info("Server fully stopped")
}

func initialOwnAircraft(c config.OwnAircraftConfig) aviation.OwnAircraft {
	return aviation.OwnAircraft{
		Callsign: aviation.NewCallsign(c.Callsign),
		Icao: aviation.AircraftIcao{
			AircraftDesignator: c.AircraftIcao,
			AirlineDesignator:  c.AirlineIcao,
		},
		Situation: aviation.Situation{
			Position: aviation.Position{Lat: c.Latitude, Lon: c.Longitude, AltitudeFt: c.AltitudeFt},
		},
		Com1:        aviation.ComSystem{Active: aviation.FrequencyFromMHz(c.Com1MHz)},
		Com2:        aviation.ComSystem{Active: aviation.FrequencyFromMHz(c.Com2MHz)},
		Transponder: aviation.Transponder{Code: 2000, Mode: aviation.TransponderStandby},
	}
}

func autoConnect(cfg *config.Config, netCtx *network.Context, log *logger.Logger) {
	entry, ok := cfg.Network.ServerByName(cfg.Network.DefaultServer)
	if !ok {
		log.Warn("Auto connect skipped, default server not configured",
			logger.String("server", cfg.Network.DefaultServer))
		return
	}
	server := network.Server{
		Name:     entry.Name,
		Address:  entry.Address,
		Port:     entry.Port,
		User:     aviation.User{ID: entry.UserID, RealName: entry.RealName},
		Password: entry.Password,
	}
	msgs := netCtx.Connect(server, network.LoginMode(cfg.Network.LoginMode))
	if msgs.HasErrors() {
		log.Warn("Auto connect failed", logger.String("result", msgs.String()))
		return
	}
	log.Info("Auto connect started", logger.String("server", server.Name))
}
