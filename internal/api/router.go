package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yegors/airspace-monitor/internal/config"
	"github.com/yegors/airspace-monitor/internal/websocket"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

// Router builds the HTTP routes
type Router struct {
	handler  *Handler
	static   *StaticFileHandler
	wsServer *websocket.Server
	origins  []string
	logger   *logger.Logger
}

// NewRouter creates a router for the given services
func NewRouter(services Services, cfg *config.Config, log *logger.Logger) *Router {
	rt := &Router{
		handler:  NewHandler(services, cfg, log),
		wsServer: services.WSServer,
		logger:   log.Named("http"),
	}
	if cfg != nil {
		rt.origins = cfg.Server.CORSAllowedOrigins
		if cfg.Server.StaticFilesDir != "" {
			rt.static = NewStaticFileHandler(cfg.Server.StaticFilesDir, log)
		}
	}
	return rt
}

// Routes returns the root handler
func (rt *Router) Routes() http.Handler {
	h := rt.handler
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(rt.cors)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.GetHealth)
		r.Get("/config", h.GetConfig)

		r.Route("/network", func(r chi.Router) {
			r.Get("/status", h.GetNetworkStatus)
			r.Get("/servers", h.GetNetworkServers)
			r.Post("/connect", h.Connect)
			r.Post("/disconnect", h.Disconnect)
		})

		r.Route("/stations", func(r chi.Router) {
			r.Get("/online", h.GetOnlineStations)
			r.Get("/online/{callsign}", h.GetOnlineStation)
			r.Get("/booked", h.GetBookedStations)
			r.Get("/{callsign}/sessions", h.GetStationSessions)
		})

		r.Route("/aircraft", func(r chi.Router) {
			r.Get("/", h.GetAllAircraft)
			r.Get("/{callsign}", h.GetAircraftByCallsign)
			r.Put("/{callsign}/enabled", h.SetAircraftEnabled)
			r.Put("/{callsign}/model", h.SetAircraftModel)
		})

		r.Route("/own-aircraft", func(r chi.Router) {
			r.Get("/", h.GetOwnAircraft)
			r.Put("/cockpit", h.SetOwnCockpit)
			r.Put("/situation", h.SetOwnSituation)
		})

		r.Route("/voice", func(r chi.Router) {
			r.Get("/selected", h.GetSelectedVoice)
			r.Put("/overrides", h.SetVoiceOverrides)
			r.Put("/automatic", h.SetVoiceAutomatic)
			r.Put("/rooms/{unit}/connected", h.SetVoiceRoomConnected)
		})

		r.Get("/metar/{icao}", h.GetMetar)
		r.Get("/flightplans/{callsign}", h.GetFlightPlan)
		r.Get("/clients", h.GetClients)

		r.Route("/messages", func(r chi.Router) {
			r.Get("/", h.GetMessages)
			r.Post("/", h.SendMessage)
		})

		r.Route("/rendering", func(r chi.Router) {
			r.Get("/", h.GetRendering)
			r.Put("/", h.SetRendering)
			r.Post("/highlight", h.HighlightAircraft)
			r.Get("/stats", h.GetRenderingStats)
		})
	})

	if rt.wsServer != nil {
		r.Get("/ws", rt.wsServer.HandleConnection)
	}
	if rt.static != nil {
		r.Handle("/*", rt.static)
	}

	return r
}

func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		rt.logger.Debug("HTTP request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (rt *Router) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && rt.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rt *Router) originAllowed(origin string) bool {
	for _, o := range rt.origins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
