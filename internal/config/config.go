package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "MATCHBOOK_"

const (
	ModeQueue = "queue" // single processing goroutine fed by a queue
	ModeLock  = "lock"  // mutex around each process call
)

var (
	ErrInvalidMode  = errors.New("invalid engine mode")
	ErrInvalidPort  = errors.New("invalid port")
	ErrInvalidQueue = errors.New("invalid queue size")
)

type Server struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Address is the listen address in host:port form.
func (s Server) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type Engine struct {
	Mode             string `yaml:"mode"`
	QueueSize        int    `yaml:"queue_size"`
	TradeLogCapacity int    `yaml:"trade_log_capacity"` // 0 keeps every trade
}

type Log struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type Kafka struct {
	Brokers      []string      `yaml:"brokers"` // empty disables publishing
	Topic        string        `yaml:"topic"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

type Config struct {
	Server Server `yaml:"server"`
	Engine Engine `yaml:"engine"`
	Log    Log    `yaml:"log"`
	Kafka  Kafka  `yaml:"kafka"`
}

func Default() Config {
	return Config{
		Server: Server{
			Host:            "127.0.0.1",
			Port:            3000,
			ShutdownTimeout: 5 * time.Second,
		},
		Engine: Engine{
			Mode:      ModeQueue,
			QueueSize: 1024,
		},
		Log: Log{
			Level: "info",
		},
		Kafka: Kafka{
			Topic:        "trades",
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// Load builds the configuration.
// Priority: ENV > .env file > YAML file > defaults
//
// The YAML file is read from path, or from MATCHBOOK_CONFIG when path is
// empty; no file at all is fine. ${VAR} references in the file are expanded.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	// A missing .env file is not an error.
	_ = godotenv.Load(envFiles...)

	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		raw = []byte(os.ExpandEnv(string(raw)))
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) Validate() error {
	switch cfg.Engine.Mode {
	case ModeQueue, ModeLock:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, cfg.Engine.Mode)
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, cfg.Server.Port)
	}
	if cfg.Engine.QueueSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQueue, cfg.Engine.QueueSize)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	lookupString("HOST", &cfg.Server.Host)
	lookupList("ALLOWED_ORIGINS", &cfg.Server.AllowedOrigins)
	lookupString("MODE", &cfg.Engine.Mode)
	lookupString("LOG_LEVEL", &cfg.Log.Level)
	lookupList("KAFKA_BROKERS", &cfg.Kafka.Brokers)
	lookupString("KAFKA_TOPIC", &cfg.Kafka.Topic)

	if err := lookupInt("PORT", &cfg.Server.Port); err != nil {
		return err
	}
	if err := lookupInt("QUEUE_SIZE", &cfg.Engine.QueueSize); err != nil {
		return err
	}
	if err := lookupInt("TRADE_LOG_CAPACITY", &cfg.Engine.TradeLogCapacity); err != nil {
		return err
	}
	if err := lookupBool("LOG_PRETTY", &cfg.Log.Pretty); err != nil {
		return err
	}
	return nil
}

func lookupString(key string, dst *string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
		*dst = v
	}
}

// lookupList reads a comma separated list, dropping empty entries.
func lookupList(key string, dst *[]string) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func lookupInt(key string, dst *int) error {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = n
	return nil
}

func lookupBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = b
	return nil
}
