package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Env      string // "dev" | "prod"
	Identity string // sender name stamped on responses

	Log        LogConfig
	Bus        BusConfig
	DB         DBConfig
	Gates      map[string]int64 // gate role -> gate id
	Controller ControllerConfig
	Dedup      DedupConfig
	Ops        OpsConfig
}

type LogConfig struct {
	Level  string
	Format string // empty = by environment
	Output string
}

type BusConfig struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	RequestTopic   string
	ResponseTopic  string
	QoS            byte
	ConnectTimeout time.Duration
}

type DBConfig struct {
	Driver  string // "sqlite" | "postgres"
	Path    string // sqlite
	DSN     string // postgres
	SeedDev bool   // insert the demo binding on start (dev only)
}

type ControllerConfig struct {
	QueueSize      int
	HandlerTimeout time.Duration // 0 = none
}

type DedupConfig struct {
	Enabled       bool
	TTL           time.Duration
	SweepInterval time.Duration
	RedisAddr     string // empty = in-memory store
	RedisPassword string
	RedisDB       int
}

type OpsConfig struct {
	HTTPAddr      string // empty = disabled
	GRPCAddr      string // empty = disabled
	CheckInterval time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("identity", "db_controller")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stderr")

	v.SetDefault("bus.broker_url", "tcp://localhost:1883")
	v.SetDefault("bus.request_topic", "/database")
	v.SetDefault("bus.response_topic", "/database")
	v.SetDefault("bus.qos", 0)
	v.SetDefault("bus.connect_timeout", 10*time.Second)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.path", "./data/parked.db")
	v.SetDefault("db.seed_dev", false)

	v.SetDefault("gates.entry_gate", 1)
	v.SetDefault("gates.departure_gate", 2)

	v.SetDefault("controller.queue_size", 256)
	v.SetDefault("controller.handler_timeout", 0)

	v.SetDefault("dedup.enabled", true)
	v.SetDefault("dedup.ttl", 10*time.Minute)
	v.SetDefault("dedup.sweep_interval", time.Minute)

	v.SetDefault("ops.http_addr", ":8080")
	v.SetDefault("ops.grpc_addr", ":9090")
	v.SetDefault("ops.check_interval", 5*time.Second)
}

// NewFlagSet declares the command-line flags Load understands.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML config file")
	fs.String("env", "", "environment: dev or prod")
	fs.String("identity", "", "sender identity used on published responses")
	fs.String("broker", "", "MQTT broker URL, e.g. tcp://localhost:1883")
	fs.String("db-driver", "", "datastore driver: sqlite or postgres")
	fs.String("db-path", "", "SQLite database file")
	fs.String("db-dsn", "", "PostgreSQL connection string")
	fs.String("ops-addr", "", "listen address for /healthz, /readyz and /metrics")
	fs.String("grpc-addr", "", "listen address for the gRPC health service")
	fs.String("log-level", "", "debug, info, warn or error")
	return fs
}

var flagKeys = map[string]string{
	"env":       "env",
	"identity":  "identity",
	"broker":    "bus.broker_url",
	"db-driver": "db.driver",
	"db-path":   "db.path",
	"db-dsn":    "db.dsn",
	"ops-addr":  "ops.http_addr",
	"grpc-addr": "ops.grpc_addr",
	"log-level": "log.level",
}

// Load builds the configuration.  Priority, highest first: flags, PARKED_*
// environment variables, the --config file, defaults.  It returns
// pflag.ErrHelp when -h/--help was given.
func Load(args []string) (Config, error) {
	fs := NewFlagSet("parked-controller")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	v := viper.New()
	setDefaults(v)

	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return Config{}, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	v.SetEnvPrefix("PARKED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		Env:      strings.ToLower(strings.TrimSpace(v.GetString("env"))),
		Identity: strings.TrimSpace(v.GetString("identity")),
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Bus: BusConfig{
			BrokerURL:      v.GetString("bus.broker_url"),
			ClientID:       v.GetString("bus.client_id"),
			Username:       v.GetString("bus.username"),
			Password:       v.GetString("bus.password"),
			RequestTopic:   v.GetString("bus.request_topic"),
			ResponseTopic:  v.GetString("bus.response_topic"),
			ConnectTimeout: v.GetDuration("bus.connect_timeout"),
		},
		DB: DBConfig{
			Driver:  strings.ToLower(v.GetString("db.driver")),
			Path:    v.GetString("db.path"),
			DSN:     v.GetString("db.dsn"),
			SeedDev: v.GetBool("db.seed_dev"),
		},
		Gates: make(map[string]int64),
		Controller: ControllerConfig{
			QueueSize:      v.GetInt("controller.queue_size"),
			HandlerTimeout: v.GetDuration("controller.handler_timeout"),
		},
		Dedup: DedupConfig{
			Enabled:       v.GetBool("dedup.enabled"),
			TTL:           v.GetDuration("dedup.ttl"),
			SweepInterval: v.GetDuration("dedup.sweep_interval"),
			RedisAddr:     v.GetString("dedup.redis_addr"),
			RedisPassword: v.GetString("dedup.redis_password"),
			RedisDB:       v.GetInt("dedup.redis_db"),
		},
		Ops: OpsConfig{
			HTTPAddr:      v.GetString("ops.http_addr"),
			GRPCAddr:      v.GetString("ops.grpc_addr"),
			CheckInterval: v.GetDuration("ops.check_interval"),
		},
	}

	for _, key := range v.AllKeys() {
		if role, ok := strings.CutPrefix(key, "gates."); ok && role != "" {
			cfg.Gates[role] = v.GetInt64(key)
		}
	}

	// fail-soft: treat unknown as dev
	if cfg.Env != "dev" && cfg.Env != "prod" {
		cfg.Env = "dev"
	}
	if cfg.Bus.ClientID == "" {
		cfg.Bus.ClientID = cfg.Identity
	}

	qos := v.GetInt("bus.qos")
	if qos < 0 || qos > 2 {
		return Config{}, fmt.Errorf("bus.qos must be 0, 1 or 2, got %d", qos)
	}
	cfg.Bus.QoS = byte(qos)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.Identity == "" {
		errs = append(errs, errors.New("identity must not be empty"))
	}
	if c.Bus.RequestTopic == "" || c.Bus.ResponseTopic == "" {
		errs = append(errs, errors.New("bus topics must not be empty"))
	}
	switch c.DB.Driver {
	case "sqlite":
	case "postgres":
		if c.DB.DSN == "" {
			errs = append(errs, errors.New("db.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported db.driver %q", c.DB.Driver))
	}
	if c.Controller.QueueSize <= 0 {
		errs = append(errs, errors.New("controller.queue_size must be positive"))
	}
	return errors.Join(errs...)
}
