package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server      ServerConfig      `toml:"server"`       // HTTP server settings
	Logging     LoggingConfig     `toml:"logging"`      // Application logging settings
	Storage     StorageConfig     `toml:"storage"`      // Data persistence settings
	Network     NetworkConfig     `toml:"network"`      // FSD relay and session settings
	OwnAircraft OwnAircraftConfig `toml:"own_aircraft"` // Initial state of the aircraft we fly
	Feeds       FeedsConfig       `toml:"feeds"`        // Shared HTTP client settings for bookings and data file
	Bookings    FeedConfig        `toml:"bookings"`     // ATC bookings feed
	Datafile    FeedConfig        `toml:"datafile"`     // VATSIM data file feed
	Metar       MetarConfig       `toml:"metar"`        // METAR cache settings
	Voice       VoiceConfig       `toml:"voice"`        // Voice room resolution settings
	Rendering   RenderingConfig   `toml:"rendering"`    // Simulator rendering restrictions
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // Primary HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // Origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum keep-alive idle time
	AdditionalPorts    []int    `toml:"additional_ports"`      // Additional HTTP ports to listen on
	StaticFilesDir     string   `toml:"static_files_dir"`      // Directory with the web UI, empty to disable
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`        // Log level: "debug", "info", "warn", or "error"
	Format     string `toml:"format"`       // Log format: "json" (structured) or "console" (human-readable)
	File       string `toml:"file"`         // Optional rotating log file
	MaxSizeMB  int    `toml:"max_size_mb"`  // Rotate after this many megabytes
	MaxBackups int    `toml:"max_backups"`  // Rotated files to keep
	MaxAgeDays int    `toml:"max_age_days"` // Days to keep rotated files
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	Type       string `toml:"type"`        // Storage backend type (only "sqlite" is supported, "none" disables it)
	SQLitePath string `toml:"sqlite_path"` // Path of the SQLite database file
}

// NetworkConfig contains the FSD relay and session settings
type NetworkConfig struct {
	RelayURL           string        `toml:"relay_url"`                    // Websocket URL of the FSD relay
	DialTimeoutSecs    int           `toml:"dial_timeout_seconds"`         // Relay dial timeout
	QueriesPerSecond   int           `toml:"queries_per_second"`           // Outbound query throttle
	DataUpdateSecs     int           `toml:"data_update_interval_seconds"` // Interval of aircraft/station data refresh while connected
	AtisUpdateSecs     int           `toml:"atis_update_interval_seconds"` // Interval of ATIS refresh while connected
	ConnectTimeoutSecs int           `toml:"connect_timeout_seconds"`      // Timeout for establishing a session
	LoginMode          string        `toml:"login_mode"`                   // "pilot" or "observer"
	AutoConnect        bool          `toml:"auto_connect"`                 // Connect to the default server at startup
	DefaultServer      string        `toml:"default_server"`               // Name of the server used for auto connect
	Servers            []ServerEntry `toml:"servers"`                      // Known FSD servers
}

// ServerEntry is one FSD server with the credentials used on it
type ServerEntry struct {
	Name     string `toml:"name"`
	Address  string `toml:"address"`
	Port     int    `toml:"port"`
	UserID   string `toml:"user_id"`
	RealName string `toml:"real_name"`
	Password string `toml:"password"`
}

// OwnAircraftConfig is the initial state of our own aircraft
type OwnAircraftConfig struct {
	Callsign     string  `toml:"callsign"`
	AircraftIcao string  `toml:"aircraft_icao"`
	AirlineIcao  string  `toml:"airline_icao"`
	Com1MHz      float64 `toml:"com1_mhz"`
	Com2MHz      float64 `toml:"com2_mhz"`
	Latitude     float64 `toml:"latitude"`
	Longitude    float64 `toml:"longitude"`
	AltitudeFt   float64 `toml:"altitude_ft"`
}

// FeedsConfig configures the HTTP client shared by the periodic feeds
type FeedsConfig struct {
	TimeoutSecs int    `toml:"timeout_seconds"` // Per request timeout
	MaxRetries  int    `toml:"max_retries"`     // Retries for failed requests
	UserAgent   string `toml:"user_agent"`      // User-Agent header
}

// FeedConfig configures one periodically read feed
type FeedConfig struct {
	Enabled     bool   `toml:"enabled"`
	URL         string `toml:"url"`
	RefreshSecs int    `toml:"refresh_interval_seconds"`
}

// MetarConfig contains METAR cache settings
type MetarConfig struct {
	CacheSize    int `toml:"cache_size"`     // Airports kept in the cache
	StaleAfterMs int `toml:"stale_after_ms"` // Cached METARs older than this are queried again
	WaitMs       int `toml:"wait_ms"`        // Default wait for a fresh METAR
}

// VoiceConfig contains voice room resolution settings
type VoiceConfig struct {
	AutomaticResolution *bool    `toml:"automatic_resolution"` // Resolve voice rooms from tuned stations (default true)
	Overrides           []string `toml:"overrides"`            // Two voice room URLs overriding COM1/COM2, "" keeps automatic
}

// RenderingConfig contains simulator rendering restrictions
type RenderingConfig struct {
	MaxAircraft      int     `toml:"max_aircraft"`               // Maximum rendered aircraft, 0 = unlimited
	MaxDistanceNM    float64 `toml:"max_distance_nm"`            // Maximum rendered distance, 0 = unlimited
	UpdatesPerSecond int     `toml:"updates_per_second"`         // Situation updates per second, 0 = unlimited
	SnapshotSecs     int     `toml:"snapshot_interval_seconds"`  // Interval of the restricted rendering snapshot
	HighlightSecs    int     `toml:"highlight_duration_seconds"` // Default highlight duration
}

const (
	DefaultBookingsURL = "https://cert.vatsim.net/vatsimnet/atcbook.xml"
	DefaultDatafileURL = "https://data.vatsim.net/v3/vatsim-data.json"
)

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// Parse decodes configuration from TOML text
func Parse(data string) (*Config, error) {
	var config Config
	if _, err := toml.Decode(data, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,
		"configs/config.toml",
		"config.toml",
	}

	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate fills defaults and validates the configuration
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	if c.Logging.File != "" {
		if c.Logging.MaxSizeMB <= 0 {
			c.Logging.MaxSizeMB = 50
		}
		if c.Logging.MaxBackups <= 0 {
			c.Logging.MaxBackups = 3
		}
		if c.Logging.MaxAgeDays <= 0 {
			c.Logging.MaxAgeDays = 14
		}
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			c.Storage.SQLitePath = "data/airspace-monitor.db"
		}
	case "none":
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	if err := c.ValidateNetwork(); err != nil {
		return err
	}
	if err := c.validateOwnAircraft(); err != nil {
		return err
	}

	if c.Feeds.TimeoutSecs <= 0 {
		c.Feeds.TimeoutSecs = 20
	}
	if c.Feeds.MaxRetries < 0 {
		return fmt.Errorf("invalid feeds max_retries: %d (must be >= 0)", c.Feeds.MaxRetries)
	}
	if c.Feeds.UserAgent == "" {
		c.Feeds.UserAgent = "airspace-monitor"
	}
	if err := validateFeed("bookings", &c.Bookings, DefaultBookingsURL, 180); err != nil {
		return err
	}
	if err := validateFeed("datafile", &c.Datafile, DefaultDatafileURL, 60); err != nil {
		return err
	}

	if c.Metar.CacheSize <= 0 {
		c.Metar.CacheSize = 256
	}
	if c.Metar.StaleAfterMs <= 0 {
		c.Metar.StaleAfterMs = 10000
	}
	if c.Metar.WaitMs <= 0 {
		c.Metar.WaitMs = 1000
	}

	if c.Voice.AutomaticResolution == nil {
		enabled := true
		c.Voice.AutomaticResolution = &enabled
	}
	if n := len(c.Voice.Overrides); n != 0 && n != 2 {
		return fmt.Errorf("voice overrides need exactly 2 entries, got %d", n)
	}

	return c.validateRendering()
}

func (c *Config) validateServer() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	portsSeen := map[int]bool{c.Server.Port: true}
	for _, p := range c.Server.AdditionalPorts {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid additional server port: %d", p)
		}
		if portsSeen[p] {
			return fmt.Errorf("duplicate port configured: %d (primary or additional)", p)
		}
		portsSeen[p] = true
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.ReadTimeoutSecs < 0 || c.Server.WriteTimeoutSecs < 0 || c.Server.IdleTimeoutSecs < 0 {
		return fmt.Errorf("server timeouts must be >= 0")
	}
	if c.Server.IdleTimeoutSecs == 0 {
		c.Server.IdleTimeoutSecs = 120
	}
	if c.Server.StaticFilesDir != "" {
		if _, err := os.Stat(c.Server.StaticFilesDir); os.IsNotExist(err) {
			return fmt.Errorf("static files directory does not exist: %s", c.Server.StaticFilesDir)
		}
	}
	return nil
}

// ValidateNetwork validates the relay and server list
func (c *Config) ValidateNetwork() error {
	n := &c.Network
	if n.RelayURL == "" {
		return fmt.Errorf("network relay_url is required")
	}
	u, err := url.Parse(n.RelayURL)
	if err != nil {
		return fmt.Errorf("invalid network relay_url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("network relay_url must use ws or wss, got %q", u.Scheme)
	}

	if n.DialTimeoutSecs <= 0 {
		n.DialTimeoutSecs = 10
	}
	if n.QueriesPerSecond <= 0 {
		n.QueriesPerSecond = 20
	}
	if n.DataUpdateSecs <= 0 {
		n.DataUpdateSecs = 30
	}
	if n.AtisUpdateSecs <= 0 {
		n.AtisUpdateSecs = 60
	}
	if n.ConnectTimeoutSecs <= 0 {
		n.ConnectTimeoutSecs = 15
	}
	if n.LoginMode == "" {
		n.LoginMode = "pilot"
	}
	if n.LoginMode != "pilot" && n.LoginMode != "observer" {
		return fmt.Errorf("invalid network login_mode: %s", n.LoginMode)
	}

	names := make(map[string]bool)
	for i, s := range n.Servers {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("network server %d has no name", i)
		}
		if names[s.Name] {
			return fmt.Errorf("duplicate network server name: %s", s.Name)
		}
		names[s.Name] = true
		if s.Port == 0 {
			n.Servers[i].Port = 6809
		}
	}
	if n.DefaultServer == "" && len(n.Servers) > 0 {
		n.DefaultServer = n.Servers[0].Name
	}
	if n.DefaultServer != "" && !names[n.DefaultServer] {
		return fmt.Errorf("default_server %q is not in the server list", n.DefaultServer)
	}
	if n.AutoConnect && n.DefaultServer == "" {
		return fmt.Errorf("auto_connect requires at least one server")
	}
	return nil
}

// ServerByName returns the configured server with the given name
func (n NetworkConfig) ServerByName(name string) (ServerEntry, bool) {
	for _, s := range n.Servers {
		if s.Name == name {
			return s, true
		}
	}
	return ServerEntry{}, false
}

func (c *Config) validateOwnAircraft() error {
	o := &c.OwnAircraft
	o.Callsign = strings.ToUpper(strings.TrimSpace(o.Callsign))
	o.AircraftIcao = strings.ToUpper(strings.TrimSpace(o.AircraftIcao))
	o.AirlineIcao = strings.ToUpper(strings.TrimSpace(o.AirlineIcao))
	if o.Latitude < -90 || o.Latitude > 90 {
		return fmt.Errorf("invalid own aircraft latitude: %f", o.Latitude)
	}
	if o.Longitude < -180 || o.Longitude > 180 {
		return fmt.Errorf("invalid own aircraft longitude: %f", o.Longitude)
	}
	for name, mhz := range map[string]float64{"com1_mhz": o.Com1MHz, "com2_mhz": o.Com2MHz} {
		if mhz != 0 && (mhz < 118 || mhz >= 137) {
			return fmt.Errorf("invalid own aircraft %s: %.3f (must be within 118.000-136.975)", name, mhz)
		}
	}
	return nil
}

func validateFeed(name string, f *FeedConfig, defaultURL string, defaultRefreshSecs int) error {
	if !f.Enabled {
		return nil
	}
	if f.URL == "" {
		f.URL = defaultURL
	}
	u, err := url.Parse(f.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid %s url: %s", name, f.URL)
	}
	if f.RefreshSecs <= 0 {
		f.RefreshSecs = defaultRefreshSecs
	}
	return nil
}

func (c *Config) validateRendering() error {
	r := &c.Rendering
	if r.MaxAircraft < 0 {
		return fmt.Errorf("invalid rendering max_aircraft: %d (must be >= 0)", r.MaxAircraft)
	}
	if r.MaxDistanceNM < 0 {
		return fmt.Errorf("invalid rendering max_distance_nm: %f (must be >= 0)", r.MaxDistanceNM)
	}
	if r.UpdatesPerSecond < 0 {
		return fmt.Errorf("invalid rendering updates_per_second: %d (must be >= 0)", r.UpdatesPerSecond)
	}
	if r.SnapshotSecs <= 0 {
		r.SnapshotSecs = 5
	}
	if r.HighlightSecs <= 0 {
		r.HighlightSecs = 10
	}
	return nil
}

// Seconds converts a seconds setting into a duration
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Millis converts a milliseconds setting into a duration
func Millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
