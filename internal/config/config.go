// Package config resolves the node and collector settings once at startup.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"capteur/internal/client"
	"capteur/internal/network"
	"capteur/internal/node"

	"github.com/spf13/viper"
)

const envPrefix = "CAPTEUR"

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Node      NodeConfig      `mapstructure:"node"`
	Wifi      WifiConfig      `mapstructure:"wifi"`
	API       APIConfig       `mapstructure:"api"`
	Drivers   DriversConfig   `mapstructure:"drivers"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Collector CollectorConfig `mapstructure:"collector"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type NodeConfig struct {
	DeviceID      string        `mapstructure:"device_id"`
	SamplePeriod  time.Duration `mapstructure:"sample_period"`
	Warmup        time.Duration `mapstructure:"warmup"`
	SensorTimeout time.Duration `mapstructure:"sensor_timeout"`
	BodyCapacity  int           `mapstructure:"body_capacity"`
	StrictWeekday bool          `mapstructure:"strict_weekday"`
}

type WifiConfig struct {
	SSID             string        `mapstructure:"ssid"`
	Password         string        `mapstructure:"password"`
	PowerMode        string        `mapstructure:"power_mode"`
	DHCPPollInterval time.Duration `mapstructure:"dhcp_poll_interval"`
	LinkPollInterval time.Duration `mapstructure:"link_poll_interval"`
}

type APIConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

// DriversConfig selects the hardware backends of the node.
type DriversConfig struct {
	Sensor    string        `mapstructure:"sensor"`  // sim | iio
	Network   string        `mapstructure:"network"` // sim | host
	IIODir    string        `mapstructure:"iio_dir"`
	Interface string        `mapstructure:"interface"`
	FailJoins int           `mapstructure:"sim_fail_joins"`
	DHCPDelay time.Duration `mapstructure:"sim_dhcp_delay"`
	FaultRate float64       `mapstructure:"sim_fault_rate"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type CollectorConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	LatestTTL       time.Duration `mapstructure:"latest_ttl"`
	DB              DBConfig      `mapstructure:"db"`
	MQTT            MQTTConfig    `mapstructure:"mqtt"`
	Influx          InfluxConfig  `mapstructure:"influx"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"` // sqlite | postgres
	DSN    string `mapstructure:"dsn"`
}

type MQTTConfig struct {
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

type InfluxConfig struct {
	URL    string `mapstructure:"url"`
	Token  string `mapstructure:"token"`
	Org    string `mapstructure:"org"`
	Bucket string `mapstructure:"bucket"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("node.device_id", "")
	v.SetDefault("node.sample_period", node.DefaultSamplePeriod)
	v.SetDefault("node.warmup", node.DefaultWarmup)
	v.SetDefault("node.sensor_timeout", time.Second)
	v.SetDefault("node.body_capacity", node.DefaultBodyCapacity)
	v.SetDefault("node.strict_weekday", false)

	v.SetDefault("wifi.ssid", "")
	v.SetDefault("wifi.password", "")
	v.SetDefault("wifi.power_mode", "powersave")
	v.SetDefault("wifi.dhcp_poll_interval", network.DefaultDHCPPollInterval)
	v.SetDefault("wifi.link_poll_interval", network.DefaultLinkPollInterval)

	v.SetDefault("api.base_url", "")
	v.SetDefault("api.insecure_skip_verify", true)
	v.SetDefault("api.timeout", 10*time.Second)

	v.SetDefault("drivers.sensor", "sim")
	v.SetDefault("drivers.network", "sim")
	v.SetDefault("drivers.iio_dir", "/sys/bus/iio/devices/iio:device0")
	v.SetDefault("drivers.interface", "")
	v.SetDefault("drivers.sim_fail_joins", 0)
	v.SetDefault("drivers.sim_dhcp_delay", 500*time.Millisecond)
	v.SetDefault("drivers.sim_fault_rate", 0.05)

	v.SetDefault("metrics.addr", "")

	v.SetDefault("collector.port", "8080")
	v.SetDefault("collector.shutdown_timeout", 10*time.Second)
	v.SetDefault("collector.latest_ttl", 10*time.Minute)
	v.SetDefault("collector.db.driver", "sqlite")
	v.SetDefault("collector.db.dsn", "")
	v.SetDefault("collector.mqtt.broker", "")
	v.SetDefault("collector.mqtt.client_id", "capteur-collector")
	v.SetDefault("collector.mqtt.topic_prefix", "capteur")
	v.SetDefault("collector.influx.url", "")
	v.SetDefault("collector.influx.token", "")
	v.SetDefault("collector.influx.org", "")
	v.SetDefault("collector.influx.bucket", "capteur")
}

// legacyEnv maps keys to the variable names used by existing deployments.
var legacyEnv = map[string]string{
	"wifi.ssid":      "WIFI_NETWORK",
	"wifi.password":  "WIFI_PASSWORD",
	"node.device_id": "CAPTEUR_ID",
	"api.base_url":   "API_URL",
}

// Load reads config.yml from the first of paths that has one (default
// "configs" then "."), then applies environment overrides. A missing file is
// not an error.
func Load(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		paths = []string{"configs", "."}
	}

	v := viper.New()
	setDefaults(v)
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", legacy, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Collector.DB.DSN == "" {
		dsn, err := defaultDSN(cfg.Collector.DB.Driver)
		if err != nil {
			return nil, err
		}
		cfg.Collector.DB.DSN = dsn
	}
	return &cfg, nil
}

const defaultSQLitePath = "capteur.db"

// defaultDSN builds the DSN when none is configured. Postgres settings come
// from PSQL_HOST, PSQL_PORT, PSQL_DB, PSQL_USER and PSQL_PASSWORD; each of the
// last three may instead name a secret file through its _FILE variant.
func defaultDSN(driver string) (string, error) {
	if driver != "postgres" {
		return defaultSQLitePath, nil
	}
	host := os.Getenv("PSQL_HOST")
	if host == "" {
		return "", nil
	}
	port := os.Getenv("PSQL_PORT")
	if port == "" {
		port = "5432"
	}
	var parts [3]string
	for i, name := range []string{"PSQL_USER", "PSQL_PASSWORD", "PSQL_DB"} {
		v, err := secretEnv(name)
		if err != nil {
			return "", err
		}
		parts[i] = v
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(parts[0], parts[1]),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + parts[2],
		RawQuery: "sslmode=disable",
	}
	return u.String(), nil
}

// secretEnv reads NAME_FILE when set, NAME otherwise.
func secretEnv(name string) (string, error) {
	if path := os.Getenv(name + "_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s_FILE: %w", name, err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return os.Getenv(name), nil
}

var (
	ErrMissingDeviceID = errors.New("config: node.device_id is required")
	ErrMissingBaseURL  = errors.New("config: api.base_url is required")
	ErrUnknownDriver   = errors.New("config: unknown driver")
)

// Validate checks the settings the node needs.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Node.DeviceID) == "" {
		errs = append(errs, ErrMissingDeviceID)
	} else if err := node.CheckBodyCapacity(c.Node.DeviceID, c.Node.BodyCapacity); err != nil {
		errs = append(errs, fmt.Errorf("config: node.device_id %q with node.body_capacity %d: %w",
			c.Node.DeviceID, c.Node.BodyCapacity, err))
	}
	if strings.TrimSpace(c.API.BaseURL) == "" {
		errs = append(errs, ErrMissingBaseURL)
	}
	switch c.Drivers.Sensor {
	case "sim", "iio":
	default:
		errs = append(errs, fmt.Errorf("%w: sensor %q", ErrUnknownDriver, c.Drivers.Sensor))
	}
	switch c.Drivers.Network {
	case "sim", "host":
	default:
		errs = append(errs, fmt.Errorf("%w: network %q", ErrUnknownDriver, c.Drivers.Network))
	}
	return errors.Join(errs...)
}

// ValidateCollector checks the settings the collector needs.
func (c *Config) ValidateCollector() error {
	switch c.Collector.DB.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: db %q", ErrUnknownDriver, c.Collector.DB.Driver)
	}
	if c.Collector.DB.DSN == "" {
		return errors.New("config: collector.db.dsn is required")
	}
	return nil
}

// NodeOptions translates the file layout into the node's runtime settings.
func (c *Config) NodeOptions() node.Config {
	return node.Config{
		DeviceID: c.Node.DeviceID,
		Network: network.Config{
			SSID:             c.Wifi.SSID,
			Passphrase:       c.Wifi.Password,
			PowerMode:        network.ParsePowerMode(c.Wifi.PowerMode),
			DHCPPollInterval: c.Wifi.DHCPPollInterval,
			LinkPollInterval: c.Wifi.LinkPollInterval,
		},
		Measure: node.MeasureConfig{
			Period:        c.Node.SamplePeriod,
			Warmup:        c.Node.Warmup,
			SensorTimeout: c.Node.SensorTimeout,
		},
		BodyCapacity:  c.Node.BodyCapacity,
		StrictWeekday: c.Node.StrictWeekday,
	}
}

func (c *Config) ClientOptions() client.Config {
	return client.Config{
		BaseURL:            c.API.BaseURL,
		InsecureSkipVerify: c.API.InsecureSkipVerify,
		Timeout:            c.API.Timeout,
	}
}
