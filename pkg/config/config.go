package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"
)

// Config holds the configuration for the duskd daemon
type Config struct {
	// Service configuration
	ServiceName string
	HealthPort  int
	LogLevel    string

	// Location configuration
	LocationProvider string
	Latitude         float64
	Longitude        float64

	// Color scheme configuration
	TempDay         int
	TempNight       int
	BrightnessDay   float64
	BrightnessNight float64
	Gamma           string
	ElevationHigh   float64
	ElevationLow    float64
	UseTimeRanges   bool
	DawnStart       string
	DawnEnd         string
	DuskStart       string
	DuskEnd         string
	SchemeFile      string

	// Control socket configuration
	SocketPath string
	MaxClients int
	ReadStdin  bool

	// D-Bus configuration
	EnableDBus bool
	BusName    string

	// Color sink configuration
	Sink    string
	Display string

	// Fade configuration
	FadeLength int

	// MQTT telemetry configuration
	EnableMQTT   bool
	MQTTBroker   string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		ServiceName: "duskd",
		HealthPort:  8080,
		LogLevel:    "info",
		// Location defaults (Helsinki coordinates)
		LocationProvider: "geoclue2",
		Latitude:         60.1695,
		Longitude:        24.9354,
		TempDay:          6500,
		TempNight:        4500,
		BrightnessDay:    1.0,
		BrightnessNight:  1.0,
		Gamma:            "1.0",
		ElevationHigh:    3.0,
		ElevationLow:     -6.0,
		UseTimeRanges:    false,
		DawnStart:        "06:00",
		DawnEnd:          "07:00",
		DuskStart:        "20:00",
		DuskEnd:          "21:00",
		SchemeFile:       "",
		SocketPath:       DefaultSocketPath(),
		MaxClients:       16,
		ReadStdin:        false,
		EnableDBus:       true,
		BusName:          "fi.mkarjala.Duskd",
		Sink:             "auto",
		Display:          "",
		FadeLength:       40,
		EnableMQTT:       false,
		MQTTBroker:       "localhost",
		MQTTPort:         1883,
		MQTTUser:         "",
		MQTTPassword:     "",
		MQTTClientID:     "",
	}
}

// DefaultSocketPath returns the control socket path used when none is
// configured, preferring the user runtime directory.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/duskd.sock"
	}
	return "/tmp/duskd.sock"
}

// LoadFromEnv loads configuration from environment variables with DUSKD_ prefix
func (c *Config) LoadFromEnv() {
	// Service configuration
	if v := os.Getenv("DUSKD_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("DUSKD_HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HealthPort = port
		}
	}
	if v := os.Getenv("DUSKD_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	// Location configuration
	if v := os.Getenv("DUSKD_LOCATION_PROVIDER"); v != "" {
		c.LocationProvider = v
	}
	if v := os.Getenv("DUSKD_LATITUDE"); v != "" {
		if lat, err := strconv.ParseFloat(v, 64); err == nil {
			c.Latitude = lat
		}
	}
	if v := os.Getenv("DUSKD_LONGITUDE"); v != "" {
		if lon, err := strconv.ParseFloat(v, 64); err == nil {
			c.Longitude = lon
		}
	}

	// Color scheme configuration
	if v := os.Getenv("DUSKD_TEMP_DAY"); v != "" {
		if temp, err := strconv.Atoi(v); err == nil {
			c.TempDay = temp
		}
	}
	if v := os.Getenv("DUSKD_TEMP_NIGHT"); v != "" {
		if temp, err := strconv.Atoi(v); err == nil {
			c.TempNight = temp
		}
	}
	if v := os.Getenv("DUSKD_BRIGHTNESS_DAY"); v != "" {
		if b, err := strconv.ParseFloat(v, 64); err == nil {
			c.BrightnessDay = b
		}
	}
	if v := os.Getenv("DUSKD_BRIGHTNESS_NIGHT"); v != "" {
		if b, err := strconv.ParseFloat(v, 64); err == nil {
			c.BrightnessNight = b
		}
	}
	if v := os.Getenv("DUSKD_GAMMA"); v != "" {
		c.Gamma = v
	}
	if v := os.Getenv("DUSKD_ELEVATION_HIGH"); v != "" {
		if e, err := strconv.ParseFloat(v, 64); err == nil {
			c.ElevationHigh = e
		}
	}
	if v := os.Getenv("DUSKD_ELEVATION_LOW"); v != "" {
		if e, err := strconv.ParseFloat(v, 64); err == nil {
			c.ElevationLow = e
		}
	}
	if v := os.Getenv("DUSKD_USE_TIME_RANGES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.UseTimeRanges = b
		}
	}
	if v := os.Getenv("DUSKD_DAWN_START"); v != "" {
		c.DawnStart = v
	}
	if v := os.Getenv("DUSKD_DAWN_END"); v != "" {
		c.DawnEnd = v
	}
	if v := os.Getenv("DUSKD_DUSK_START"); v != "" {
		c.DuskStart = v
	}
	if v := os.Getenv("DUSKD_DUSK_END"); v != "" {
		c.DuskEnd = v
	}
	if v := os.Getenv("DUSKD_SCHEME_FILE"); v != "" {
		c.SchemeFile = v
	}

	// Control socket configuration
	if v := os.Getenv("DUSKD_SOCKET_PATH"); v != "" {
		c.SocketPath = v
	}
	if v := os.Getenv("DUSKD_MAX_CLIENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxClients = n
		}
	}
	if v := os.Getenv("DUSKD_READ_STDIN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.ReadStdin = b
		}
	}

	// D-Bus configuration
	if v := os.Getenv("DUSKD_ENABLE_DBUS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.EnableDBus = b
		}
	}
	if v := os.Getenv("DUSKD_BUS_NAME"); v != "" {
		c.BusName = v
	}

	// Color sink configuration
	if v := os.Getenv("DUSKD_SINK"); v != "" {
		c.Sink = v
	}
	if v := os.Getenv("DUSKD_DISPLAY"); v != "" {
		c.Display = v
	}

	// Fade configuration
	if v := os.Getenv("DUSKD_FADE_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.FadeLength = n
		}
	}

	// MQTT telemetry configuration
	if v := os.Getenv("DUSKD_ENABLE_MQTT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.EnableMQTT = b
		}
	}
	if v := os.Getenv("DUSKD_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("DUSKD_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MQTTPort = port
		}
	}
	if v := os.Getenv("DUSKD_MQTT_USER"); v != "" {
		c.MQTTUser = v
	}
	if v := os.Getenv("DUSKD_MQTT_PASSWORD"); v != "" {
		c.MQTTPassword = v
	}
	if v := os.Getenv("DUSKD_MQTT_CLIENT_ID"); v != "" {
		c.MQTTClientID = v
	}
}

// LoadFromFlags parses command-line flags and overrides config values
func (c *Config) LoadFromFlags() {
	// Service flags
	pflag.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	pflag.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health check HTTP port")
	pflag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")

	// Location flags
	pflag.StringVar(&c.LocationProvider, "location-provider", c.LocationProvider, "Location provider (geoclue2, manual)")
	pflag.Float64Var(&c.Latitude, "latitude", c.Latitude, "Geographic latitude for solar elevation")
	pflag.Float64Var(&c.Longitude, "longitude", c.Longitude, "Geographic longitude for solar elevation")

	// Color scheme flags
	pflag.IntVar(&c.TempDay, "temp-day", c.TempDay, "Daytime color temperature in Kelvin")
	pflag.IntVar(&c.TempNight, "temp-night", c.TempNight, "Night color temperature in Kelvin")
	pflag.Float64Var(&c.BrightnessDay, "brightness-day", c.BrightnessDay, "Daytime brightness")
	pflag.Float64Var(&c.BrightnessNight, "brightness-night", c.BrightnessNight, "Night brightness")
	pflag.StringVar(&c.Gamma, "gamma", c.Gamma, "Gamma correction (G or R:G:B)")
	pflag.Float64Var(&c.ElevationHigh, "elevation-high", c.ElevationHigh, "Solar elevation where daytime begins (degrees)")
	pflag.Float64Var(&c.ElevationLow, "elevation-low", c.ElevationLow, "Solar elevation where night begins (degrees)")
	pflag.BoolVar(&c.UseTimeRanges, "use-time-ranges", c.UseTimeRanges, "Schedule by clock time instead of solar elevation")
	pflag.StringVar(&c.DawnStart, "dawn-start", c.DawnStart, "Dawn transition start (HH:MM)")
	pflag.StringVar(&c.DawnEnd, "dawn-end", c.DawnEnd, "Dawn transition end (HH:MM)")
	pflag.StringVar(&c.DuskStart, "dusk-start", c.DuskStart, "Dusk transition start (HH:MM)")
	pflag.StringVar(&c.DuskEnd, "dusk-end", c.DuskEnd, "Dusk transition end (HH:MM)")
	pflag.StringVar(&c.SchemeFile, "scheme-file", c.SchemeFile, "YAML color scheme file overriding scheme flags")

	// Control socket flags
	pflag.StringVar(&c.SocketPath, "socket-path", c.SocketPath, "Control socket path")
	pflag.IntVar(&c.MaxClients, "max-clients", c.MaxClients, "Maximum concurrent control socket clients")
	pflag.BoolVar(&c.ReadStdin, "read-stdin", c.ReadStdin, "Read commands from standard input")

	// D-Bus flags
	pflag.BoolVar(&c.EnableDBus, "enable-dbus", c.EnableDBus, "Expose the D-Bus control surface")
	pflag.StringVar(&c.BusName, "bus-name", c.BusName, "D-Bus well-known name")

	// Color sink flags
	pflag.StringVar(&c.Sink, "sink", c.Sink, "Color sink (auto, randr, dummy)")
	pflag.StringVar(&c.Display, "display", c.Display, "X display for the randr sink")

	// Fade flags
	pflag.IntVar(&c.FadeLength, "fade-length", c.FadeLength, "Fade duration in ticks of 100ms")

	// MQTT telemetry flags
	pflag.BoolVar(&c.EnableMQTT, "enable-mqtt", c.EnableMQTT, "Publish state changes over MQTT")
	pflag.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	pflag.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	pflag.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	pflag.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	pflag.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	pflag.Parse()
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("Service name is required")
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("Health port must be between 1 and 65535")
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("Latitude must be between -90 and 90")
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("Longitude must be between -180 and 180")
	}
	if c.LocationProvider != "geoclue2" && c.LocationProvider != "manual" {
		return fmt.Errorf("invalid location provider: %s (must be geoclue2 or manual)", c.LocationProvider)
	}
	if c.Sink != "auto" && c.Sink != "randr" && c.Sink != "dummy" {
		return fmt.Errorf("invalid sink: %s (must be auto, randr, or dummy)", c.Sink)
	}
	if c.SocketPath == "" && !c.ReadStdin && !c.EnableDBus {
		return fmt.Errorf("no control surface enabled")
	}
	if c.MaxClients <= 0 {
		return fmt.Errorf("Max clients must be positive")
	}
	if c.FadeLength <= 0 {
		return fmt.Errorf("Fade length must be positive")
	}
	if c.EnableMQTT {
		if c.MQTTBroker == "" {
			return fmt.Errorf("MQTT broker is required")
		}
		if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
			return fmt.Errorf("MQTT port must be between 1 and 65535")
		}
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}
